package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"finsight/backend/internal/middleware"
	"finsight/backend/internal/retrieval"
)

// maxQueryLength bounds request bodies before they reach the embedder.
const maxQueryLength = 4096

type Answerer interface {
	Answer(ctx context.Context, query string) *retrieval.Answer
}

type Handler struct {
	answerer Answerer
}

func NewHandler(a Answerer) *Handler {
	return &Handler{answerer: a}
}

type Request struct {
	Query string `json:"query"`
}

type Response struct {
	Status   string                   `json:"status"`
	Query    string                   `json:"query"`
	Response string                   `json:"response"`
	Company  string                   `json:"company,omitempty"`
	Sources  []retrieval.SearchResult `json:"sources"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := middleware.GetCorrelationID(ctx)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.WarnContext(ctx, "invalid query payload", "error", err, "correlationId", correlationID)
		h.writeError(ctx, w, "INVALID_JSON", "request body must be valid JSON", http.StatusBadRequest)
		return
	}

	q := strings.TrimSpace(req.Query)
	if q == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "query is required", http.StatusBadRequest)
		return
	}
	if len(q) > maxQueryLength {
		h.writeError(ctx, w, "VALIDATION_ERROR", "query is too long", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "answering query", "query", q, "correlationId", correlationID)

	ans := h.answerer.Answer(ctx, q)

	sources := ans.Sources
	if sources == nil {
		sources = []retrieval.SearchResult{}
	}

	resp := Response{
		Status:   "success",
		Query:    q,
		Response: ans.Response,
		Company:  ans.Company,
		Sources:  sources,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
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
