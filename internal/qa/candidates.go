package qa

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/config"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/storage"
)

// minCandidateLineLength skips fragments too short to be meaningful evidence.
const minCandidateLineLength = 3

// Builder expands cited chunks with their neighbours and scores every text
// line as an evidence candidate.
type Builder struct {
	store  storage.Storage
	cfg    config.EvidenceConfig
	logger *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(store storage.Storage, cfg config.EvidenceConfig, logger *zap.Logger) *Builder {
	return &Builder{store: store, cfg: cfg, logger: logger}
}

// Build returns scored candidates sorted by descending score. Each cited
// chunk contributes its own lines plus the lines of the chunks directly
// before and after it in the chunking sequence. Duplicate (page, line) pairs
// keep their best score.
func (b *Builder) Build(ctx context.Context, docID, question, answer string, cited []*models.Chunk) ([]*Candidate, error) {
	chunks, err := b.expandNeighbors(ctx, docID, cited)
	if err != nil {
		return nil, err
	}

	qWeight, aWeight := normalizeWeights(b.cfg.QuestionWeight, b.cfg.AnswerWeight)
	qTerms := Tokenize(question)
	aTerms := Tokenize(answer)

	best := make(map[string]*Candidate)
	for _, chunk := range chunks {
		for _, line := range strings.Split(chunk.Text, "\n") {
			line = strings.TrimSpace(line)
			if len(line) < minCandidateLineLength {
				continue
			}
			qs := WeightedOverlapScore(qTerms, line)
			as := WeightedOverlapScore(aTerms, line)
			combined := qWeight*qs + aWeight*as
			if combined <= 0 {
				continue
			}
			cand := &Candidate{
				Page:          chunk.Page,
				LineText:      line,
				QuestionScore: qs,
				AnswerScore:   as,
				CombinedScore: combined,
				SourceChunkID: chunk.ID,
			}
			key := fmt.Sprintf("%d|%s", cand.Page, normalizeMatchText(line))
			if prev, ok := best[key]; !ok || cand.CombinedScore > prev.CombinedScore {
				best[key] = cand
			}
		}
	}

	candidates := make([]*Candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}

	Rescore(DetectIntent(question), candidates)

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		if candidates[i].Page != candidates[j].Page {
			return candidates[i].Page < candidates[j].Page
		}
		return candidates[i].LineText < candidates[j].LineText
	})

	b.logger.Debug("built evidence candidates",
		zap.String("document_id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Int("candidates", len(candidates)))
	return candidates, nil
}

// expandNeighbors fetches the cited chunks' successors first, then their
// predecessors, deduplicated, in one batch per document.
func (b *Builder) expandNeighbors(ctx context.Context, docID string, cited []*models.Chunk) ([]*models.Chunk, error) {
	seen := make(map[int]bool)
	var indexes []int
	add := func(idx int) {
		if idx < 0 || seen[idx] {
			return
		}
		seen[idx] = true
		indexes = append(indexes, idx)
	}
	for _, chunk := range cited {
		add(chunk.ChunkIndex)
	}
	for _, chunk := range cited {
		add(chunk.ChunkIndex + 1)
	}
	for _, chunk := range cited {
		add(chunk.ChunkIndex - 1)
	}

	chunks, err := b.store.GetChunksByIndexes(ctx, docID, indexes)
	if err != nil {
		return nil, fmt.Errorf("expand neighbors: %w", err)
	}
	return chunks, nil
}

// normalizeWeights scales the two weights to sum to 1, falling back to the
// standard 0.2/0.8 split when both are zero or negative.
func normalizeWeights(qWeight, aWeight float64) (float64, float64) {
	if qWeight < 0 {
		qWeight = 0
	}
	if aWeight < 0 {
		aWeight = 0
	}
	sum := qWeight + aWeight
	if sum == 0 {
		return 0.2, 0.8
	}
	return qWeight / sum, aWeight / sum
}
