package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/config"
	"github.com/pageproof/pageproof/internal/ingest"
	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/qa"
	"github.com/pageproof/pageproof/internal/storage"
)

type scriptedAsker struct {
	resp *models.AskResponse
	err  error
}

func (a *scriptedAsker) Ask(ctx context.Context, documentID, question string) (*models.AskResponse, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.resp, nil
}

func newTestServer(t *testing.T, asker Asker) (*Server, storage.Storage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "t.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "t.db")
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")

	processor := ingest.NewProcessor(store, cfg.Ingest, zap.NewNop())
	return NewServer(store, processor, asker, cfg, zap.NewNop()), store
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestHandleUploadDocument(t *testing.T) {
	s, store := newTestServer(t, &scriptedAsker{})
	body, contentType := multipartBody(t, "file", "contract.pdf", "%PDF-1.4 not really")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var doc models.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.Filename != "contract.pdf" {
		t.Errorf("document: %+v", doc)
	}
	if doc.Status != models.DocumentStatusProcessing {
		t.Errorf("initial status = %q", doc.Status)
	}

	// The body is not a parseable PDF, so background processing must flip
	// the document to errored.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := store.GetDocument(context.Background(), doc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Status == models.DocumentStatusError {
			if stored.ErrorMessage == "" {
				t.Error("error message should be recorded")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("document never left status %q", stored.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHandleUploadDocument_MissingFile(t *testing.T) {
	s, _ := newTestServer(t, &scriptedAsker{})
	body, contentType := multipartBody(t, "wrong_field", "a.pdf", "%PDF")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleUploadDocument_RejectsNonPDF(t *testing.T) {
	s, _ := newTestServer(t, &scriptedAsker{})
	body, contentType := multipartBody(t, "file", "notes.txt", "plain text")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleUploadDocument_TooLarge(t *testing.T) {
	s, _ := newTestServer(t, &scriptedAsker{})
	s.config.Storage.MaxUploadBytes = 64
	body, contentType := multipartBody(t, "file", "big.pdf", strings.Repeat("x", 4096))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleGetDocument(t *testing.T) {
	s, store := newTestServer(t, &scriptedAsker{})
	ctx := context.Background()
	if err := store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc models.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID != "d1" {
		t.Errorf("document: %+v", doc)
	}
}

func TestHandleGetDocument_NotFound(t *testing.T) {
	s, _ := newTestServer(t, &scriptedAsker{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	width := 612.0
	asker := &scriptedAsker{resp: &models.AskResponse{
		Answer: "The fee is $500.",
		Evidence: []models.EvidenceItem{{
			Page:      1,
			Text:      "The fee is $500.",
			BBox:      models.BBox{X1: 10, Y1: 100, X2: 200, Y2: 112},
			PageWidth: &width,
		}},
	}}
	s, _ := newTestServer(t, asker)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/d1/ask",
		strings.NewReader(`{"question": "What is the fee?"}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp models.AskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "The fee is $500." || len(resp.Evidence) != 1 {
		t.Errorf("response: %+v", resp)
	}
	if resp.Evidence[0].PageWidth == nil || *resp.Evidence[0].PageWidth != 612 {
		t.Errorf("page width: %v", resp.Evidence[0].PageWidth)
	}
}

func TestHandleAsk_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty question", qa.ErrEmptyQuestion, http.StatusBadRequest},
		{"unknown document", storage.ErrNotFound, http.StatusNotFound},
		{"not ready", qa.ErrDocumentNotReady, http.StatusConflict},
		{"upstream failure", fmt.Errorf("model unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, &scriptedAsker{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/d1/ask",
				strings.NewReader(`{"question": "anything"}`))
			rec := httptest.NewRecorder()
			s.Router().ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body["error"] == "" {
				t.Error("error body should carry a message")
			}
		})
	}
}

func TestHandleAsk_InvalidBody(t *testing.T) {
	s, _ := newTestServer(t, &scriptedAsker{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/d1/ask",
		strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	s, store := newTestServer(t, &scriptedAsker{})
	ctx := context.Background()
	if err := store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["documents"].(float64) != 1 {
		t.Errorf("documents = %v", resp["documents"])
	}
	if _, ok := resp["config"]; !ok {
		t.Error("status should include config info")
	}
}

func TestHandleListDocuments(t *testing.T) {
	s, store := newTestServer(t, &scriptedAsker{})
	ctx := context.Background()
	if err := store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Documents []*models.Document `json:"documents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].ID != "d1" {
		t.Errorf("documents: %+v", resp.Documents)
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, &scriptedAsker{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	s, store := newTestServer(t, &scriptedAsker{})
	ctx := context.Background()
	if err := store.CreateDocument(ctx, &models.Document{ID: "d1", Filename: "d1.pdf"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/documents/d1", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := store.GetDocument(ctx, "d1"); err == nil {
		t.Error("document should be gone")
	}
}
