package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pageproof/pageproof/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteAskResponse_Text(t *testing.T) {
	resp := &models.AskResponse{
		Answer: "The fee is $500.",
		Evidence: []models.EvidenceItem{{
			Page: 2,
			Text: "The fee is $500.",
			BBox: models.BBox{X1: 10, Y1: 100, X2: 200, Y2: 112},
		}},
	}
	var buf bytes.Buffer
	if err := WriteAskResponse(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "The fee is $500.") {
		t.Errorf("missing answer: %s", out)
	}
	if !strings.Contains(out, "page 2") {
		t.Errorf("missing evidence page: %s", out)
	}
}

func TestWriteAskResponse_TextNoEvidence(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAskResponse(&buf, &models.AskResponse{Answer: "n/a", Evidence: []models.EvidenceItem{}}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "no supporting evidence") {
		t.Errorf("output: %s", buf.String())
	}
}

func TestWriteAskResponse_JSON(t *testing.T) {
	resp := &models.AskResponse{Answer: "yes", Evidence: []models.EvidenceItem{}}
	var buf bytes.Buffer
	if err := WriteAskResponse(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.AskResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Answer != "yes" {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestWriteDocument_Text(t *testing.T) {
	doc := &models.Document{
		ID: "d1", Filename: "contract.pdf", Status: models.DocumentStatusReady,
		TotalPages: 3, PageWidth: 612, PageHeight: 792,
	}
	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"d1", "contract.pdf", "ready", "3 (612x792 pts)"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in output: %s", want, out)
		}
	}
}

func TestWriteDocument_TextWithError(t *testing.T) {
	doc := &models.Document{ID: "d1", Filename: "bad.pdf", Status: models.DocumentStatusError, ErrorMessage: "open PDF: EOF"}
	var buf bytes.Buffer
	if err := WriteDocument(&buf, doc, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "open PDF: EOF") {
		t.Errorf("output: %s", buf.String())
	}
}
