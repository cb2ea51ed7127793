package qa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/config"
	"github.com/pageproof/pageproof/internal/llm"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/storage"
)

// FallbackAnswer is returned with empty evidence whenever the pipeline cannot
// produce a grounded answer: nothing retrievable, an invalid model response,
// or too few resolvable evidence lines.
const FallbackAnswer = "I don't have enough grounded evidence in this document to answer that confidently."

// Pipeline runs the full question answering flow for one document:
// retrieval, answer generation, candidate building, selection, and bbox
// resolution.
type Pipeline struct {
	store     storage.Storage
	retriever *Retriever
	generator *Generator
	builder   *Builder
	resolver  *Resolver
	cfg       config.EvidenceConfig
	logger    *zap.Logger
}

// NewPipeline wires the pipeline stages from shared dependencies.
func NewPipeline(store storage.Storage, embedder llm.Embedder, chat llm.ChatClient, cfg *config.Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		retriever: NewRetriever(store, embedder, cfg.Retrieval, logger),
		generator: NewGenerator(chat, cfg.Evidence.RequireCitationsOrDefault(), logger),
		builder:   NewBuilder(store, cfg.Evidence, logger),
		resolver:  NewResolver(store, cfg.Evidence.MatchThreshold, logger),
		cfg:       cfg.Evidence,
		logger:    logger,
	}
}

// Ask answers a question about one document. Precondition failures surface as
// errors (ErrEmptyQuestion, storage.ErrNotFound, ErrDocumentNotReady) before
// any model call; pipeline-quality failures return the fallback response with
// a nil error.
func (p *Pipeline) Ask(ctx context.Context, documentID, question string) (*models.AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !doc.Ready() {
		return nil, fmt.Errorf("document %s has status %s: %w", doc.ID, doc.Status, ErrDocumentNotReady)
	}

	retrieved, err := p.retriever.Retrieve(ctx, documentID, question)
	if err != nil {
		return nil, err
	}
	if len(retrieved) == 0 {
		p.logger.Info("no retrievable chunks", zap.String("document_id", documentID))
		return fallbackResponse(), nil
	}

	generated, err := p.generator.Generate(ctx, question, retrieved)
	if err != nil {
		if errors.Is(err, ErrGenerationInvalid) {
			p.logger.Info("model response rejected",
				zap.String("document_id", documentID),
				zap.Error(err))
			return fallbackResponse(), nil
		}
		return nil, err
	}

	candidates, err := p.builder.Build(ctx, documentID, question, generated.Answer, generated.Cited)
	if err != nil {
		return nil, err
	}
	selected := SelectEvidence(candidates, p.cfg)

	evidence := make([]models.EvidenceItem, 0, len(selected))
	for _, cand := range selected {
		item, err := p.resolver.Resolve(ctx, documentID, cand)
		if err != nil {
			return nil, err
		}
		if item != nil {
			evidence = append(evidence, *item)
		}
	}

	if len(evidence) < p.cfg.MinEvidenceItems {
		p.logger.Info("insufficient evidence",
			zap.String("document_id", documentID),
			zap.Int("resolved", len(evidence)),
			zap.Int("required", p.cfg.MinEvidenceItems))
		return fallbackResponse(), nil
	}

	sort.SliceStable(evidence, func(i, j int) bool {
		if evidence[i].Page != evidence[j].Page {
			return evidence[i].Page < evidence[j].Page
		}
		if evidence[i].BBox.Y1 != evidence[j].BBox.Y1 {
			return evidence[i].BBox.Y1 < evidence[j].BBox.Y1
		}
		return evidence[i].BBox.X1 < evidence[j].BBox.X1
	})

	return &models.AskResponse{Answer: generated.Answer, Evidence: evidence}, nil
}

func fallbackResponse() *models.AskResponse {
	return &models.AskResponse{Answer: FallbackAnswer, Evidence: []models.EvidenceItem{}}
}
