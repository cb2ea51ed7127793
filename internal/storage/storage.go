// Package storage defines the persistence interface for documents, pages,
// spans, and chunks.
package storage

import (
	"context"
	"errors"

	"github.com/pageproof/pageproof/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines document, page, span, and chunk persistence operations.
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status, errorMessage string) error
	SetDocumentPageInfo(ctx context.Context, id string, totalPages int, width, height float64) error
	DeleteDocument(ctx context.Context, id string) error
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	// Page operations
	CreatePage(ctx context.Context, page *models.Page) error
	GetPage(ctx context.Context, docID string, number int) (*models.Page, error)

	// Span operations
	BatchCreateSpans(ctx context.Context, spans []*models.Span) error
	GetSpansByPage(ctx context.Context, docID string, number int) ([]*models.Span, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error)
	GetChunksByIndexes(ctx context.Context, docID string, indexes []int) ([]*models.Chunk, error)
	UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error

	// Stats
	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	CountSpans(ctx context.Context) (int64, error)

	Close() error
}
