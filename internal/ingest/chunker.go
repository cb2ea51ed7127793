package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pageproof/pageproof/internal/models"
)

// Chunker slices a page's lines into retrieval chunks. chunkSize is the
// target word count per chunk, chunkOverlap the number of trailing lines
// repeated at the start of the next chunk.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 120
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ChunkPage builds chunks from one page's spans. Chunk text keeps the page's
// line structure, one visual line per text line, so later matching against
// span windows stays faithful to the layout. startIndex is the next global
// chunk index for the document; the returned chunks continue from it.
func (c *Chunker) ChunkPage(docID string, pageNumber int, spans []*models.Span, startIndex int) []*models.Chunk {
	lines := GroupIntoLines(spans)
	if len(lines) == 0 {
		return nil
	}

	var chunks []*models.Chunk
	start := 0
	for start < len(lines) {
		words := 0
		end := start
		for end < len(lines) {
			words += len(lines[end])
			end++
			if words >= c.chunkSize {
				break
			}
		}

		window := lines[start:end]
		texts := make([]string, len(window))
		for i, line := range window {
			parts := make([]string, len(line))
			for j, span := range line {
				parts[j] = span.Text
			}
			texts[i] = strings.Join(parts, " ")
		}
		first := window[0][0]
		lastLine := window[len(window)-1]
		last := lastLine[len(lastLine)-1]

		chunks = append(chunks, &models.Chunk{
			ID:         fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8]),
			DocumentID: docID,
			ChunkIndex: startIndex + len(chunks),
			Page:       pageNumber,
			Text:       strings.Join(texts, "\n"),
			SpanStart:  first.ID,
			SpanEnd:    last.ID,
		})

		if end >= len(lines) {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}
