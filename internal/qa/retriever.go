package qa

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/config"
	"github.com/pageproof/pageproof/internal/llm"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/storage"
	"github.com/pageproof/pageproof/internal/vector"
)

// embedBatchSize caps how many chunk texts go into one embedding request.
const embedBatchSize = 64

// Retriever finds the chunks of a document most relevant to a question.
// Chunk embeddings are computed lazily on first use and persisted, so asking
// the same document again does not re-embed it.
type Retriever struct {
	store    storage.Storage
	embedder llm.Embedder
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(store storage.Storage, embedder llm.Embedder, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, cfg: cfg, logger: logger}
}

// Retrieve returns up to MaxContextChunks chunks ordered by ascending cosine
// distance. Chunks beyond MaxVectorDistance or without enough keyword overlap
// with the question are filtered out. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, docID, question string) ([]*RetrievedChunk, error) {
	chunks, err := r.store.GetChunksByDocumentID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	if err := r.ensureEmbeddings(ctx, docID, chunks); err != nil {
		return nil, err
	}

	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vectors[i] = chunk.Embedding
	}
	neighbors := vector.NearestNeighbors(queryVec, vectors, r.cfg.TopK)

	terms := Tokenize(question)
	var retrieved []*RetrievedChunk
	for _, nb := range neighbors {
		if nb.Distance > r.cfg.MaxVectorDistance {
			continue
		}
		chunk := chunks[nb.Ordinal]
		if len(terms) > 0 && OverlapCount(terms, chunk.Text) < r.cfg.MinKeywordOverlap {
			continue
		}
		retrieved = append(retrieved, &RetrievedChunk{Chunk: chunk, Distance: nb.Distance})
		if len(retrieved) >= r.cfg.MaxContextChunks {
			break
		}
	}

	r.logger.Debug("retrieved chunks",
		zap.String("document_id", docID),
		zap.Int("candidates", len(neighbors)),
		zap.Int("kept", len(retrieved)))
	return retrieved, nil
}

// ensureEmbeddings embeds and persists any chunks that do not have an
// embedding yet. Updates are keyed by chunk id, so a crashed or repeated run
// just overwrites the same rows.
func (r *Retriever) ensureEmbeddings(ctx context.Context, docID string, chunks []*models.Chunk) error {
	var missing []*models.Chunk
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			missing = append(missing, chunk)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	r.logger.Info("embedding chunks",
		zap.String("document_id", docID),
		zap.Int("count", len(missing)))

	for start := 0; start < len(missing); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]
		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Text
		}
		vecs, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		for i, chunk := range batch {
			if err := r.store.UpdateChunkEmbedding(ctx, chunk.ID, vecs[i]); err != nil {
				return fmt.Errorf("store embedding: %w", err)
			}
			chunk.Embedding = vecs[i]
		}
	}
	return nil
}
