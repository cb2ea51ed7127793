package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pageproof/pageproof/internal/models"
	"github.com/pageproof/pageproof/internal/qa"
	"github.com/pageproof/pageproof/internal/storage"
)

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Storage.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		s.respondError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		Filename:    header.Filename,
		ContentType: "application/pdf",
		Status:      models.DocumentStatusProcessing,
	}

	if err := os.MkdirAll(s.config.Storage.UploadDir, 0755); err != nil {
		s.logger.Error("upload dir unavailable", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	path := filepath.Join(s.config.Storage.UploadDir, doc.ID+".pdf")
	out, err := os.Create(path)
	if err != nil {
		s.logger.Error("failed to create upload file", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
			return
		}
		s.logger.Error("failed to write upload file", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	out.Close()

	if err := s.storage.CreateDocument(r.Context(), doc); err != nil {
		os.Remove(path)
		s.logger.Error("failed to create document", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename))

	// Processing continues after the response; clients poll the document
	// status until it flips to ready.
	go func() {
		_ = s.processor.Process(context.Background(), doc.ID, path)
	}()

	s.respondJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 100)
	docs, err := s.storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("get document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.storage.DeleteDocument(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("delete document failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	os.Remove(filepath.Join(s.config.Storage.UploadDir, id+".pdf"))
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.qa.Ask(r.Context(), id, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, qa.ErrEmptyQuestion):
			s.respondError(w, http.StatusBadRequest, "question must not be empty")
		case errors.Is(err, storage.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "document not found")
		case errors.Is(err, qa.ErrDocumentNotReady):
			s.respondError(w, http.StatusConflict, "document is not ready")
		default:
			s.logger.Error("ask failed",
				zap.String("document_id", id),
				zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "failed to answer question")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	spanCount, err := s.storage.CountSpans(ctx)
	if err != nil {
		s.logger.Error("status: count spans failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"documents": docCount,
		"chunks":    chunkCount,
		"spans":     spanCount,
		"config": map[string]interface{}{
			"chat_model":           s.config.OpenAI.ChatModel,
			"embedding_model":      s.config.OpenAI.EmbeddingModel,
			"embedding_dimensions": s.config.OpenAI.EmbeddingDimensions,
			"chunk_size":           s.config.Ingest.ChunkSize,
			"chunk_overlap":        s.config.Ingest.ChunkOverlap,
			"database_path":        s.config.Storage.DatabasePath,
			"upload_dir":           s.config.Storage.UploadDir,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath, s.config.Storage.UploadDir)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
