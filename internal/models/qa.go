package models

import (
	"fmt"
	"strings"
)

// AskRequest is the question payload for a single document.
type AskRequest struct {
	Question string `json:"question"`
}

// Validate trims the question and rejects empty input.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// EvidenceItem is one grounded evidence region on a page. PageWidth and
// PageHeight are included when page geometry is known so clients can scale
// the box to rendered coordinates.
type EvidenceItem struct {
	Page       int      `json:"page"`
	Text       string   `json:"text"`
	BBox       BBox     `json:"bbox"`
	PageWidth  *float64 `json:"page_width,omitempty"`
	PageHeight *float64 `json:"page_height,omitempty"`
}

// AskResponse is the answer plus its supporting evidence. Evidence is always
// present, possibly empty, and ordered by page then vertical position.
type AskResponse struct {
	Answer   string         `json:"answer"`
	Evidence []EvidenceItem `json:"evidence"`
}
