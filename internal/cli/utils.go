// Package cli provides output helpers for the PageProof command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/pkg/utils"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch s {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// WriteAskResponse writes an answer and its evidence to w in the given format.
func WriteAskResponse(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", resp.Answer)
	if len(resp.Evidence) == 0 {
		fmt.Fprintln(w, "\n(no supporting evidence)")
		return nil
	}
	fmt.Fprintf(w, "\nEvidence (%d):\n", len(resp.Evidence))
	for i, ev := range resp.Evidence {
		fmt.Fprintf(w, "  %d. page %d [%.1f, %.1f, %.1f, %.1f]\n",
			i+1, ev.Page, ev.BBox.X1, ev.BBox.Y1, ev.BBox.X2, ev.BBox.Y2)
		fmt.Fprintf(w, "     %s\n", utils.Truncate(ev.Text, 160))
	}
	return nil
}

// WriteDocument writes a document record to w in the given format.
func WriteDocument(w io.Writer, doc *models.Document, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, doc)
	}
	fmt.Fprintf(w, "id:       %s\n", doc.ID)
	fmt.Fprintf(w, "filename: %s\n", doc.Filename)
	fmt.Fprintf(w, "status:   %s\n", doc.Status)
	if doc.TotalPages > 0 {
		fmt.Fprintf(w, "pages:    %d (%.0fx%.0f pts)\n", doc.TotalPages, doc.PageWidth, doc.PageHeight)
	}
	if doc.ErrorMessage != "" {
		fmt.Fprintf(w, "error:    %s\n", doc.ErrorMessage)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
