// Package ingest turns uploaded PDFs into pages, positioned word spans, and
// text chunks ready for retrieval.
package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pageproof/pageproof/internal/models"
)

// Default page geometry (US Letter in points) when a PDF omits its MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// PageContent is the extraction result for one page. Spans are in reading
// order with top-left-origin boxes.
type PageContent struct {
	Number int
	Width  float64
	Height float64
	Spans  []*models.Span
}

// ExtractPages reads a PDF and returns per-page word spans with geometry.
// Pages without extractable text come back with empty spans so page
// numbering stays aligned with the document.
func ExtractPages(path string) ([]*PageContent, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]*PageContent, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		pc := &PageContent{Number: i, Width: defaultPageWidth, Height: defaultPageHeight}
		if !page.V.IsNull() {
			pc.Width, pc.Height = pageSize(page)
			pc.Spans = buildSpans(page.Content().Text, i, pc.Height)
		}
		pages = append(pages, pc)
	}
	return pages, nil
}

// pageSize resolves the MediaBox, walking up the page tree because the box
// is often inherited from a parent node.
func pageSize(page pdf.Page) (float64, float64) {
	v := page.V
	for !v.IsNull() {
		if mb := v.Key("MediaBox"); !mb.IsNull() && mb.Len() == 4 {
			w := mb.Index(2).Float64() - mb.Index(0).Float64()
			h := mb.Index(3).Float64() - mb.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

// buildSpans groups raw text fragments into words. Fragments are first
// bucketed into visual lines by baseline, then each line is split on
// whitespace fragments and horizontal gaps. PDF coordinates grow upward, so
// boxes are flipped to top-left origin here.
func buildSpans(frags []pdf.Text, pageNumber int, pageHeight float64) []*models.Span {
	var visible []pdf.Text
	for _, frag := range frags {
		if strings.TrimSpace(frag.S) != "" || frag.S == " " {
			visible = append(visible, frag)
		}
	}
	if len(visible) == 0 {
		return nil
	}

	// Lines top to bottom, fragments left to right within a line.
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Y != visible[j].Y {
			return visible[i].Y > visible[j].Y
		}
		return visible[i].X < visible[j].X
	})

	var lines [][]pdf.Text
	var current []pdf.Text
	currentY := visible[0].Y
	for _, frag := range visible {
		tol := fontSizeOf(frag) * 0.4
		if tol < 2 {
			tol = 2
		}
		if len(current) > 0 && currentY-frag.Y > tol {
			lines = append(lines, current)
			current = nil
		}
		if len(current) == 0 {
			currentY = frag.Y
		}
		current = append(current, frag)
	}
	if len(current) > 0 {
		lines = append(lines, current)
	}

	var spans []*models.Span
	order := 0
	for _, line := range lines {
		for _, word := range splitLineIntoWords(line) {
			span := wordToSpan(word, pageNumber, pageHeight)
			if span == nil {
				continue
			}
			span.OrderIndex = order
			order++
			spans = append(spans, span)
		}
	}
	return spans
}

// splitLineIntoWords cuts one visual line at whitespace fragments and at
// horizontal gaps wider than a quarter of the font size.
func splitLineIntoWords(line []pdf.Text) [][]pdf.Text {
	var words [][]pdf.Text
	var word []pdf.Text
	flush := func() {
		if len(word) > 0 {
			words = append(words, word)
			word = nil
		}
	}
	for _, frag := range line {
		if strings.TrimSpace(frag.S) == "" {
			flush()
			continue
		}
		if len(word) > 0 {
			prev := word[len(word)-1]
			gap := frag.X - (prev.X + prev.W)
			if gap > fontSizeOf(frag)*0.25 {
				flush()
			}
		}
		word = append(word, frag)
	}
	flush()
	return words
}

// wordToSpan merges a word's fragments into one span with a flipped bbox.
func wordToSpan(word []pdf.Text, pageNumber int, pageHeight float64) *models.Span {
	var text strings.Builder
	x1 := word[0].X
	x2 := word[0].X + word[0].W
	baseline := word[0].Y
	size := fontSizeOf(word[0])
	for _, frag := range word {
		text.WriteString(frag.S)
		if frag.X < x1 {
			x1 = frag.X
		}
		if right := frag.X + frag.W; right > x2 {
			x2 = right
		}
		if s := fontSizeOf(frag); s > size {
			size = s
		}
	}
	trimmed := strings.TrimSpace(text.String())
	if trimmed == "" || x2 <= x1 {
		return nil
	}
	// Approximate ascent and descent from the font size.
	return &models.Span{
		Page: pageNumber,
		Text: trimmed,
		BBox: models.BBox{
			X1: x1,
			Y1: pageHeight - baseline - size*0.8,
			X2: x2,
			Y2: pageHeight - baseline + size*0.2,
		},
	}
}

func fontSizeOf(frag pdf.Text) float64 {
	if frag.FontSize > 0 {
		return frag.FontSize
	}
	return 10
}
