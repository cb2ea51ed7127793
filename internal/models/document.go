// Package models defines core data structures for documents, pages, spans,
// chunks, and question answering.
package models

import "time"

// Document processing states.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusError      = "error"
)

// Document represents an uploaded PDF and its processing state.
type Document struct {
	ID           string    `json:"id" db:"id"`
	Filename     string    `json:"filename" db:"filename"`
	ContentType  string    `json:"content_type" db:"content_type"`
	Status       string    `json:"status" db:"status"`
	TotalPages   int       `json:"total_pages" db:"total_pages"`
	PageWidth    float64   `json:"page_width" db:"page_width"`
	PageHeight   float64   `json:"page_height" db:"page_height"`
	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Ready reports whether the document finished processing successfully.
func (d *Document) Ready() bool {
	return d.Status == DocumentStatusReady
}

// Page records the geometry of one document page in PDF points.
type Page struct {
	ID         int64   `json:"id" db:"id"`
	DocumentID string  `json:"document_id" db:"document_id"`
	Number     int     `json:"number" db:"page_number"`
	Width      float64 `json:"width" db:"width_pts"`
	Height     float64 `json:"height" db:"height_pts"`
}

// BBox is an axis-aligned rectangle in page coordinates. The origin is the
// top-left corner of the page with y increasing downward, so X2 > X1 and
// Y2 > Y1 for any valid box.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the box has positive area.
func (b BBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Union returns the smallest box covering both b and other.
func (b BBox) Union(other BBox) BBox {
	out := b
	if other.X1 < out.X1 {
		out.X1 = other.X1
	}
	if other.Y1 < out.Y1 {
		out.Y1 = other.Y1
	}
	if other.X2 > out.X2 {
		out.X2 = other.X2
	}
	if other.Y2 > out.Y2 {
		out.Y2 = other.Y2
	}
	return out
}

// Span is one extracted word with its bounding box. OrderIndex follows
// reading order within a page.
type Span struct {
	ID         int64  `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	Page       int    `json:"page" db:"page_number"`
	OrderIndex int    `json:"order_index" db:"order_index"`
	Text       string `json:"text" db:"text"`
	BBox       BBox   `json:"bbox"`
}

// Chunk is a contiguous slice of document text used as the retrieval unit.
// Text preserves line structure: extracted lines are joined with "\n".
// Embedding stays nil until it is computed.
type Chunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Page       int       `json:"page" db:"page_number"`
	Text       string    `json:"text" db:"text"`
	SpanStart  int64     `json:"span_start" db:"span_start"`
	SpanEnd    int64     `json:"span_end" db:"span_end"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
