package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/config"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/storage"
)

// Processor runs the ingestion pipeline for one document: extract pages,
// persist spans, chunk the text, and flip the document status.
type Processor struct {
	store   storage.Storage
	chunker *Chunker
	logger  *zap.Logger
	extract func(path string) ([]*PageContent, error)
}

func NewProcessor(store storage.Storage, cfg config.IngestConfig, logger *zap.Logger) *Processor {
	return &Processor{
		store:   store,
		chunker: NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:  logger,
		extract: ExtractPages,
	}
}

// IngestFile creates a document record for a PDF on disk and processes it
// synchronously. Used by the drop-directory watcher and the CLI.
func (p *Processor) IngestFile(ctx context.Context, path string) (*models.Document, error) {
	doc := &models.Document{
		ID:          uuid.New().String(),
		Filename:    filepath.Base(path),
		ContentType: "application/pdf",
		Status:      models.DocumentStatusProcessing,
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := p.Process(ctx, doc.ID, path); err != nil {
		return doc, err
	}
	doc.Status = models.DocumentStatusReady
	return doc, nil
}

// Process extracts a stored PDF and persists its pages, spans, and chunks.
// On any failure the document is marked errored with the failure message so
// clients polling its status see why it never became ready.
func (p *Processor) Process(ctx context.Context, docID, pdfPath string) error {
	if err := p.process(ctx, docID, pdfPath); err != nil {
		p.logger.Error("document processing failed",
			zap.String("document_id", docID),
			zap.Error(err))
		if serr := p.store.UpdateDocumentStatus(ctx, docID, models.DocumentStatusError, err.Error()); serr != nil {
			p.logger.Error("failed to record error status",
				zap.String("document_id", docID),
				zap.Error(serr))
		}
		return err
	}
	return nil
}

func (p *Processor) process(ctx context.Context, docID, pdfPath string) error {
	pages, err := p.extract(pdfPath)
	if err != nil {
		return fmt.Errorf("extract pages: %w", err)
	}
	if len(pages) == 0 {
		return fmt.Errorf("document has no pages")
	}

	var chunks []*models.Chunk
	spanCount := 0
	for _, page := range pages {
		if err := p.store.CreatePage(ctx, &models.Page{
			DocumentID: docID,
			Number:     page.Number,
			Width:      page.Width,
			Height:     page.Height,
		}); err != nil {
			return fmt.Errorf("create page %d: %w", page.Number, err)
		}
		if len(page.Spans) == 0 {
			continue
		}
		for _, span := range page.Spans {
			span.DocumentID = docID
		}
		if err := p.store.BatchCreateSpans(ctx, page.Spans); err != nil {
			return fmt.Errorf("store spans for page %d: %w", page.Number, err)
		}
		spanCount += len(page.Spans)
		chunks = append(chunks, p.chunker.ChunkPage(docID, page.Number, page.Spans, len(chunks))...)
	}

	if len(chunks) > 0 {
		if err := p.store.BatchCreateChunks(ctx, chunks); err != nil {
			return fmt.Errorf("store chunks: %w", err)
		}
	}
	if err := p.store.SetDocumentPageInfo(ctx, docID, len(pages), pages[0].Width, pages[0].Height); err != nil {
		return fmt.Errorf("set page info: %w", err)
	}
	if err := p.store.UpdateDocumentStatus(ctx, docID, models.DocumentStatusReady, ""); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}

	p.logger.Info("document processed",
		zap.String("document_id", docID),
		zap.Int("pages", len(pages)),
		zap.Int("spans", spanCount),
		zap.Int("chunks", len(chunks)))
	return nil
}
