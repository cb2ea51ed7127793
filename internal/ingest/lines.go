package ingest

import (
	"sort"

	"github.com/pageproof/pageproof/internal/models"
)

// GroupIntoLines buckets word spans into visual lines by vertical overlap of
// their boxes. Input order does not matter; output lines run top to bottom
// and each line left to right.
func GroupIntoLines(spans []*models.Span) [][]*models.Span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]*models.Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci := yCenter(sorted[i])
		cj := yCenter(sorted[j])
		if ci != cj {
			return ci < cj
		}
		return sorted[i].BBox.X1 < sorted[j].BBox.X1
	})

	var lines [][]*models.Span
	var line []*models.Span
	lineCenter := 0.0
	for _, span := range sorted {
		tol := (span.BBox.Y2 - span.BBox.Y1) * 0.6
		if tol < 2 {
			tol = 2
		}
		if len(line) > 0 && yCenter(span)-lineCenter > tol {
			lines = append(lines, sortLineByX(line))
			line = nil
		}
		if len(line) == 0 {
			lineCenter = yCenter(span)
		}
		line = append(line, span)
	}
	if len(line) > 0 {
		lines = append(lines, sortLineByX(line))
	}
	return lines
}

func sortLineByX(line []*models.Span) []*models.Span {
	sort.SliceStable(line, func(i, j int) bool {
		return line[i].BBox.X1 < line[j].BBox.X1
	})
	return line
}

func yCenter(span *models.Span) float64 {
	return (span.BBox.Y1 + span.BBox.Y2) / 2
}
