// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pageproof/pageproof/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT,
		status TEXT NOT NULL,
		total_pages INTEGER NOT NULL DEFAULT 0,
		page_width REAL NOT NULL DEFAULT 0,
		page_height REAL NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		width_pts REAL NOT NULL,
		height_pts REAL NOT NULL,
		UNIQUE(document_id, page_number),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS spans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		order_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		x1 REAL NOT NULL,
		y1 REAL NOT NULL,
		x2 REAL NOT NULL,
		y2 REAL NOT NULL,
		UNIQUE(document_id, page_number, order_index),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_spans_document_page ON spans(document_id, page_number, order_index);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		page_number INTEGER NOT NULL,
		text TEXT NOT NULL,
		span_start INTEGER NOT NULL,
		span_end INTEGER NOT NULL,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(document_id, chunk_index),
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.DocumentStatusProcessing
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, content_type, status, total_pages, page_width, page_height, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.ContentType, doc.Status, doc.TotalPages,
		doc.PageWidth, doc.PageHeight, doc.ErrorMessage, doc.CreatedAt, doc.UpdatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, content_type, status, total_pages, page_width, page_height, error_message, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.ContentType, &doc.Status, &doc.TotalPages,
		&doc.PageWidth, &doc.PageHeight, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateDocumentStatus sets the document status and error message.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id, status, errorMessage string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, errorMessage, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetDocumentPageInfo records the page count and first-page geometry.
func (s *SQLiteStorage) SetDocumentPageInfo(ctx context.Context, id string, totalPages int, width, height float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET total_pages = ?, page_width = ?, page_height = ?, updated_at = ? WHERE id = ?`,
		totalPages, width, height, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument removes a document and its dependent rows.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM chunks WHERE document_id = ?`,
		`DELETE FROM spans WHERE document_id = ?`,
		`DELETE FROM pages WHERE document_id = ?`,
		`DELETE FROM documents WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListDocuments returns documents with offset and limit, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, content_type, status, total_pages, page_width, page_height, error_message, created_at, updated_at
		 FROM documents ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.ContentType, &doc.Status, &doc.TotalPages,
			&doc.PageWidth, &doc.PageHeight, &doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// CreatePage inserts a page and assigns its generated ID.
func (s *SQLiteStorage) CreatePage(ctx context.Context, page *models.Page) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO pages (document_id, page_number, width_pts, height_pts) VALUES (?, ?, ?, ?)`,
		page.DocumentID, page.Number, page.Width, page.Height,
	)
	if err != nil {
		return err
	}
	page.ID, err = result.LastInsertId()
	return err
}

// GetPage returns one page of a document by page number.
func (s *SQLiteStorage) GetPage(ctx context.Context, docID string, number int) (*models.Page, error) {
	var page models.Page
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, page_number, width_pts, height_pts
		 FROM pages WHERE document_id = ? AND page_number = ?`, docID, number,
	).Scan(&page.ID, &page.DocumentID, &page.Number, &page.Width, &page.Height)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("page %d of document %s: %w", number, docID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// BatchCreateSpans inserts spans in a transaction and assigns their generated IDs.
func (s *SQLiteStorage) BatchCreateSpans(ctx context.Context, spans []*models.Span) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO spans (document_id, page_number, order_index, text, x1, y1, x2, y2)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, span := range spans {
		result, err := stmt.ExecContext(ctx, span.DocumentID, span.Page, span.OrderIndex,
			span.Text, span.BBox.X1, span.BBox.Y1, span.BBox.X2, span.BBox.Y2)
		if err != nil {
			return err
		}
		if span.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetSpansByPage returns the spans of one page ordered by order_index.
func (s *SQLiteStorage) GetSpansByPage(ctx context.Context, docID string, number int) ([]*models.Span, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, page_number, order_index, text, x1, y1, x2, y2
		 FROM spans WHERE document_id = ? AND page_number = ? ORDER BY order_index`,
		docID, number,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spans []*models.Span
	for rows.Next() {
		var span models.Span
		if err := rows.Scan(&span.ID, &span.DocumentID, &span.Page, &span.OrderIndex,
			&span.Text, &span.BBox.X1, &span.BBox.Y1, &span.BBox.X2, &span.BBox.Y2); err != nil {
			return nil, err
		}
		spans = append(spans, &span)
	}
	return spans, rows.Err()
}

// BatchCreateChunks inserts multiple chunks in a transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, document_id, chunk_index, page_number, text, span_start, span_end, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Page,
			chunk.Text, chunk.SpanStart, chunk.SpanEnd, encodeEmbedding(chunk.Embedding), chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, page_number, text, span_start, span_end, embedding, created_at
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetChunksByIndexes returns the chunks of a document matching the given
// chunk indexes, ordered by chunk_index. Missing indexes are skipped.
func (s *SQLiteStorage) GetChunksByIndexes(ctx context.Context, docID string, indexes []int) ([]*models.Chunk, error) {
	if len(indexes) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(indexes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(indexes)+1)
	args = append(args, docID)
	for _, idx := range indexes {
		args = append(args, idx)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, chunk_index, page_number, text, span_start, span_end, embedding, created_at
		 FROM chunks WHERE document_id = ? AND chunk_index IN (`+placeholders+`) ORDER BY chunk_index`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// UpdateChunkEmbedding stores the embedding for a chunk. Re-running it for
// the same chunk is harmless.
func (s *SQLiteStorage) UpdateChunkEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET embedding = ? WHERE id = ?`,
		encodeEmbedding(embedding), chunkID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("chunk %s: %w", chunkID, ErrNotFound)
	}
	return nil
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Page,
			&chunk.Text, &chunk.SpanStart, &chunk.SpanEnd, &blob, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		chunk.Embedding = decodeEmbedding(blob)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// encodeEmbedding packs a vector as little-endian float32 bytes; nil stays nil.
func encodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountSpans returns the total number of spans.
func (s *SQLiteStorage) CountSpans(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spans`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
