package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"finsight/backend/internal/middleware"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type JobRepo interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type CompanyRepo interface {
	Count(ctx context.Context) (int, error)
}

type VectorStore interface {
	CountChunks(ctx context.Context) (int, error)
}

type Handler struct {
	docRepo     DocumentRepo
	jobRepo     JobRepo
	companyRepo CompanyRepo
	vectorStore VectorStore
}

func NewHandler(d DocumentRepo, j JobRepo, c CompanyRepo, v VectorStore) *Handler {
	return &Handler{docRepo: d, jobRepo: j, companyRepo: c, vectorStore: v}
}

type StatsResponse struct {
	Documents    int            `json:"documents"`
	Companies    int            `json:"companies"`
	StoredChunks int            `json:"stored_chunks"`
	Jobs         map[string]int `json:"jobs"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	slog.InfoContext(ctx, "getting stats", "correlationId", correlationID)

	dCount, err := h.docRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count documents", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
		return
	}

	jobs, err := h.jobRepo.CountByStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count jobs", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count jobs", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = map[string]int{}
	}

	cCount, err := h.companyRepo.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count companies", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count companies", http.StatusInternalServerError)
		return
	}

	// Chunk count comes from the vector store, not postgres. A cold or
	// unreachable store degrades to zero rather than failing the endpoint.
	chunks, err := h.vectorStore.CountChunks(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to count stored chunks", "error", err, "correlationId", correlationID)
		chunks = 0
	}

	resp := StatsResponse{
		Documents:    dCount,
		Companies:    cCount,
		StoredChunks: chunks,
		Jobs:         jobs,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
