package document

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"finsight/backend/internal/middleware"
)

var validExts = map[string]bool{
	".pdf": true, ".md": true, ".txt": true,
}

type Handler struct {
	service       *Service
	uploadDir     string
	maxUploadSize int64
}

func NewHandler(service *Service, uploadDir string, maxUploadSize int64) *Handler {
	return &Handler{service: service, uploadDir: uploadDir, maxUploadSize: maxUploadSize}
}

// Upload accepts a multipart document plus an optional pre-parsed report
// JSON and responds as soon as the ingestion task is queued.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !validExts[ext] {
		h.writeError(ctx, w, "BAD_REQUEST", "Unsupported file type", http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", h.uploadDir)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	path, hash, err := h.saveFile(file, header.Filename)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save upload", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}

	reportPath := ""
	if reportFile, reportHeader, rerr := r.FormFile("report"); rerr == nil {
		defer reportFile.Close()
		if filepath.Ext(reportHeader.Filename) != ".json" {
			h.cleanup(ctx, path)
			h.writeError(ctx, w, "BAD_REQUEST", "Report must be a JSON file", http.StatusBadRequest)
			return
		}
		reportPath, _, err = h.saveFile(reportFile, reportHeader.Filename)
		if err != nil {
			h.cleanup(ctx, path)
			slog.ErrorContext(ctx, "failed to save report", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save report", http.StatusInternalServerError)
			return
		}
	}

	doc, j, err := h.service.Upload(ctx, header.Filename, path, reportPath, hash)
	if err != nil {
		h.cleanup(ctx, path)
		if reportPath != "" {
			h.cleanup(ctx, reportPath)
		}
		if errors.Is(err, ErrDuplicate) {
			h.writeError(ctx, w, "CONFLICT", "Document already uploaded", http.StatusConflict)
			return
		}
		slog.ErrorContext(ctx, "upload failed", "error", err, "filename", header.Filename)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, http.StatusCreated, map[string]interface{}{
		"status":      "started",
		"job_id":      j.ID,
		"document_id": doc.ID,
		"message":     "document accepted for processing",
	})
}

func (h *Handler) saveFile(src multipart.File, originalName string) (path, hash string, err error) {
	filename := fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(originalName))
	path = filepath.Clean(filepath.Join(h.uploadDir, filename))

	dst, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	defer dst.Close()

	sum := sha256.New()
	if _, err := io.Copy(io.MultiWriter(dst, sum), src); err != nil {
		return "", "", err
	}
	return path, fmt.Sprintf("%x", sum.Sum(nil)), nil
}

func (h *Handler) cleanup(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil {
		slog.WarnContext(ctx, "failed to clean up uploaded file", "error", err, "path", path)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := h.service.List(ctx)
	if err != nil {
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	doc, err := h.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]interface{}{"data": doc})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.service.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	writeJSON(ctx, w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
