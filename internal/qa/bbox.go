package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/storage"
)

// Resolver matches candidate lines back to span geometry on their page.
type Resolver struct {
	store     storage.Storage
	threshold float64
	logger    *zap.Logger
}

// NewResolver creates a Resolver. threshold is the minimum fuzzy match ratio
// a span window must reach.
func NewResolver(store storage.Storage, threshold float64, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, threshold: threshold, logger: logger}
}

// Resolve finds the contiguous run of spans on the candidate's page whose
// joined text best matches the candidate line. Returns (nil, nil) when no run
// reaches the match threshold; such candidates are silently dropped rather
// than shipped with a guessed box.
func (r *Resolver) Resolve(ctx context.Context, docID string, cand *Candidate) (*models.EvidenceItem, error) {
	spans, err := r.store.GetSpansByPage(ctx, docID, cand.Page)
	if err != nil {
		return nil, fmt.Errorf("load spans: %w", err)
	}
	if len(spans) == 0 {
		return nil, nil
	}

	want := normalizeMatchText(cand.LineText)
	wordCount := len(strings.Fields(want))
	if wordCount == 0 {
		return nil, nil
	}

	bestRatio := 0.0
	bestStart, bestEnd := -1, -1
	// Try windows of the line's word count plus or minus one to absorb
	// splitting differences between extraction and chunking.
	for _, size := range []int{wordCount, wordCount + 1, wordCount - 1} {
		if size < 1 || size > len(spans) {
			continue
		}
		for start := 0; start+size <= len(spans); start++ {
			joined := joinSpanTexts(spans[start : start+size])
			ratio := matchRatio(want, joined)
			if ratio > bestRatio {
				bestRatio = ratio
				bestStart, bestEnd = start, start+size
			}
		}
	}

	if bestRatio < r.threshold {
		r.logger.Debug("no span match for candidate",
			zap.String("document_id", docID),
			zap.Int("page", cand.Page),
			zap.Float64("best_ratio", bestRatio))
		return nil, nil
	}

	box := spans[bestStart].BBox
	for _, span := range spans[bestStart+1 : bestEnd] {
		box = box.Union(span.BBox)
	}
	if !box.Valid() {
		return nil, nil
	}

	item := &models.EvidenceItem{
		Page: cand.Page,
		Text: cand.LineText,
		BBox: box,
	}
	page, err := r.store.GetPage(ctx, docID, cand.Page)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load page: %w", err)
		}
		// Page geometry unknown: ship the box without dimensions.
	} else {
		item.PageWidth = &page.Width
		item.PageHeight = &page.Height
	}
	return item, nil
}

func joinSpanTexts(spans []*models.Span) string {
	parts := make([]string, len(spans))
	for i, span := range spans {
		parts[i] = span.Text
	}
	return normalizeMatchText(strings.Join(parts, " "))
}
