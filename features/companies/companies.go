// Package companies is the registry of companies resolved during ingestion,
// keyed by normalized name.
package companies

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type Company struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repository interface {
	UpsertCompany(ctx context.Context, key, displayName string) error
	List(ctx context.Context) ([]Company, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// UpsertCompany keeps the most recent display name for a key. Re-ingesting
// under the same normalized key refreshes the name rather than duplicating.
func (r *PostgresRepo) UpsertCompany(ctx context.Context, key, displayName string) error {
	query := `INSERT INTO companies (key, display_name) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET display_name = EXCLUDED.display_name, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, key, displayName)
	return err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Company, error) {
	query := `SELECT key, display_name, created_at, updated_at FROM companies ORDER BY key`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.Key, &c.DisplayName, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count)
	return count, err
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.repo.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list companies", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "INTERNAL_ERROR", "message": err.Error()},
		})
		return
	}
	if list == nil {
		list = []Company{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": list,
		"meta": map[string]int{"count": len(list)},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
