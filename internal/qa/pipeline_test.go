package qa

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/config"
	"github.com/pageproof/pageproof/internal/llm"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/storage"
)

func pipelineConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	// Mock embeddings are arbitrary directions; disable the distance gate so
	// retrieval is driven by content in these tests.
	cfg.Retrieval.MaxVectorDistance = 4.0
	return cfg
}

type pipelineFixture struct {
	store storage.Storage
	chat  *llm.ScriptedChat
	cfg   *config.Config
}

func newPipelineFixture(t *testing.T, responses ...string) (*Pipeline, *pipelineFixture) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "t.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	chat := &llm.ScriptedChat{Responses: responses}
	cfg := pipelineConfig()
	p := NewPipeline(store, llm.NewMockEmbedder(8), chat, cfg, zap.NewNop())
	return p, &pipelineFixture{store: store, chat: chat, cfg: cfg}
}

// seedReadyDocument creates a ready document with one chunk and matching
// spans per entry. Each entry becomes its own page.
func seedReadyDocument(t *testing.T, store storage.Storage, docID string, pageTexts ...string) {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateDocument(ctx, &models.Document{ID: docID, Filename: docID + ".pdf"}); err != nil {
		t.Fatal(err)
	}
	for i, text := range pageTexts {
		page := i + 1
		if err := store.CreatePage(ctx, &models.Page{DocumentID: docID, Number: page, Width: 612, Height: 792}); err != nil {
			t.Fatal(err)
		}
		var spans []*models.Span
		for j, word := range splitWords(text) {
			x := float64(10 + j*40)
			y := float64(100 + i*10)
			spans = append(spans, &models.Span{
				DocumentID: docID,
				Page:       page,
				OrderIndex: j,
				Text:       word,
				BBox:       models.BBox{X1: x, Y1: y, X2: x + 35, Y2: y + 12},
			})
		}
		if err := store.BatchCreateSpans(ctx, spans); err != nil {
			t.Fatal(err)
		}
		chunk := &models.Chunk{
			ID:         fmt.Sprintf("%s-c%d", docID, i),
			DocumentID: docID,
			ChunkIndex: i,
			Page:       page,
			Text:       text,
			SpanStart:  spans[0].ID,
			SpanEnd:    spans[len(spans)-1].ID,
		}
		if err := store.BatchCreateChunks(ctx, []*models.Chunk{chunk}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SetDocumentPageInfo(ctx, docID, len(pageTexts), 612, 792); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateDocumentStatus(ctx, docID, models.DocumentStatusReady, ""); err != nil {
		t.Fatal(err)
	}
}

func splitWords(text string) []string {
	var words []string
	word := ""
	for _, r := range text {
		switch r {
		case ' ', '\n':
			if word != "" {
				words = append(words, word)
				word = ""
			}
		default:
			word += string(r)
		}
	}
	if word != "" {
		words = append(words, word)
	}
	return words
}

func TestPipeline_HappyPath(t *testing.T) {
	p, fx := newPipelineFixture(t,
		`{"answer": "The total fee is $500.", "citations": [{"chunk_id": "d1-c0"}]}`)
	seedReadyDocument(t, fx.store, "d1", "The total fee is $500.")

	resp, err := p.Ask(context.Background(), "d1", "What is the total fee?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "The total fee is $500." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Evidence) != 1 {
		t.Fatalf("expected 1 evidence item, got %d", len(resp.Evidence))
	}
	ev := resp.Evidence[0]
	if ev.Page != 1 || ev.Text != "The total fee is $500." {
		t.Errorf("evidence: %+v", ev)
	}
	if !ev.BBox.Valid() {
		t.Errorf("bbox invalid: %+v", ev.BBox)
	}
	if ev.PageWidth == nil || *ev.PageWidth != 612 {
		t.Errorf("page width: %v", ev.PageWidth)
	}
}

func TestPipeline_EmptyQuestion(t *testing.T) {
	p, fx := newPipelineFixture(t)
	seedReadyDocument(t, fx.store, "d1", "some content here")

	_, err := p.Ask(context.Background(), "d1", "   ")
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}
	if len(fx.chat.Calls) != 0 {
		t.Error("no model call should happen for an empty question")
	}
}

func TestPipeline_UnknownDocument(t *testing.T) {
	p, _ := newPipelineFixture(t)
	_, err := p.Ask(context.Background(), "missing", "question?")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPipeline_DocumentNotReady(t *testing.T) {
	p, fx := newPipelineFixture(t)
	ctx := context.Background()
	if err := fx.store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}

	_, err := p.Ask(ctx, "d1", "question?")
	if !errors.Is(err, ErrDocumentNotReady) {
		t.Errorf("expected ErrDocumentNotReady, got %v", err)
	}
}

func TestPipeline_NoChunksFallsBack(t *testing.T) {
	p, fx := newPipelineFixture(t)
	ctx := context.Background()
	if err := fx.store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := fx.store.UpdateDocumentStatus(ctx, "d1", models.DocumentStatusReady, ""); err != nil {
		t.Fatal(err)
	}

	resp, err := p.Ask(ctx, "d1", "What is the fee?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != FallbackAnswer {
		t.Errorf("answer = %q", resp.Answer)
	}
	if resp.Evidence == nil || len(resp.Evidence) != 0 {
		t.Errorf("fallback evidence should be empty, not nil: %v", resp.Evidence)
	}
	if len(fx.chat.Calls) != 0 {
		t.Error("no model call should happen when nothing is retrievable")
	}
}

func TestPipeline_InvalidGenerationFallsBack(t *testing.T) {
	p, fx := newPipelineFixture(t, "not json at all")
	seedReadyDocument(t, fx.store, "d1", "The total fee is $500.")

	resp, err := p.Ask(context.Background(), "d1", "What is the total fee?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != FallbackAnswer || len(resp.Evidence) != 0 {
		t.Errorf("expected fallback, got %+v", resp)
	}
}

func TestPipeline_TransportErrorIsHardFailure(t *testing.T) {
	p, fx := newPipelineFixture(t)
	fx.chat.Err = fmt.Errorf("upstream unavailable")
	seedReadyDocument(t, fx.store, "d1", "The total fee is $500.")

	_, err := p.Ask(context.Background(), "d1", "What is the total fee?")
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrGenerationInvalid) {
		t.Error("transport errors must not fall back silently")
	}
}

func TestPipeline_UnresolvableEvidenceFallsBack(t *testing.T) {
	p, fx := newPipelineFixture(t,
		`{"answer": "The fee is $500.", "citations": [{"chunk_id": "d1-c0"}]}`)
	// Chunk text and spans disagree completely, so bbox resolution drops
	// every selected candidate.
	ctx := context.Background()
	if err := fx.store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}
	if err := fx.store.CreatePage(ctx, &models.Page{DocumentID: "d1", Number: 1, Width: 612, Height: 792}); err != nil {
		t.Fatal(err)
	}
	spans := []*models.Span{
		{DocumentID: "d1", Page: 1, OrderIndex: 0, Text: "unrelated", BBox: models.BBox{X1: 1, Y1: 1, X2: 2, Y2: 2}},
		{DocumentID: "d1", Page: 1, OrderIndex: 1, Text: "words", BBox: models.BBox{X1: 3, Y1: 1, X2: 4, Y2: 2}},
	}
	if err := fx.store.BatchCreateSpans(ctx, spans); err != nil {
		t.Fatal(err)
	}
	chunk := &models.Chunk{ID: "d1-c0", DocumentID: "d1", ChunkIndex: 0, Page: 1, Text: "The fee is $500.", SpanStart: 1, SpanEnd: 2}
	if err := fx.store.BatchCreateChunks(ctx, []*models.Chunk{chunk}); err != nil {
		t.Fatal(err)
	}
	if err := fx.store.UpdateDocumentStatus(ctx, "d1", models.DocumentStatusReady, ""); err != nil {
		t.Fatal(err)
	}

	resp, err := p.Ask(ctx, "d1", "What is the fee?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Answer != FallbackAnswer || len(resp.Evidence) != 0 {
		t.Errorf("expected fallback when no candidate resolves, got %+v", resp)
	}
}

func TestPipeline_EvidenceOrderedByPageThenY(t *testing.T) {
	p, fx := newPipelineFixture(t,
		`{"answer": "the fee is 500 dollars", "citations": [{"chunk_id": "d1-c0"}, {"chunk_id": "d1-c1"}]}`)
	// Page 2's chunk is cited first but evidence must come back page 1 first.
	seedReadyDocument(t, fx.store, "d1",
		"the fee is 500 dollars",
		"the fee is 500 dollars",
	)

	resp, err := p.Ask(context.Background(), "d1", "What is the fee amount?")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Evidence) != 2 {
		t.Fatalf("expected 2 evidence items, got %d", len(resp.Evidence))
	}
	if resp.Evidence[0].Page != 1 || resp.Evidence[1].Page != 2 {
		t.Errorf("evidence pages out of order: %d, %d", resp.Evidence[0].Page, resp.Evidence[1].Page)
	}
}

func TestPipeline_LazyEmbeddingPersists(t *testing.T) {
	p, fx := newPipelineFixture(t,
		`{"answer": "The total fee is $500.", "citations": [{"chunk_id": "d1-c0"}]}`)
	seedReadyDocument(t, fx.store, "d1", "The total fee is $500.")

	ctx := context.Background()
	if _, err := p.Ask(ctx, "d1", "What is the total fee?"); err != nil {
		t.Fatal(err)
	}

	chunks, err := fx.store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			t.Errorf("chunk %s embedding should be persisted after first ask", chunk.ID)
		}
	}
}
