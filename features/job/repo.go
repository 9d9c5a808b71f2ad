package job

import (
	"context"
	"database/sql"
	"encoding/json"
)

type Repository interface {
	Create(ctx context.Context, job *ExtractionJob) error
	Get(ctx context.Context, id string) (*ExtractionJob, error)
	List(ctx context.Context) ([]ExtractionJob, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	MarkRetried(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, job *ExtractionJob) error {
	// The id is assigned by the caller so it can be embedded in the task
	// payload before the row exists.
	query := `INSERT INTO extraction_jobs (id, document_id, status, payload) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, job.ID, job.DocumentID, job.Status, job.Payload).
		Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*ExtractionJob, error) {
	j := &ExtractionJob{}
	var payload []byte
	query := `SELECT id, document_id, status, error, payload, retries, created_at, updated_at FROM extraction_jobs WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&j.ID, &j.DocumentID, &j.Status, &j.Error, &payload, &j.Retries, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Payload = json.RawMessage(payload)
	return j, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]ExtractionJob, error) {
	query := `SELECT id, document_id, status, error, payload, retries, created_at, updated_at FROM extraction_jobs ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []ExtractionJob
	for rows.Next() {
		var j ExtractionJob
		var payload []byte
		if err := rows.Scan(&j.ID, &j.DocumentID, &j.Status, &j.Error, &payload, &j.Retries, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		j.Payload = json.RawMessage(payload)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	query := `UPDATE extraction_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, status, errMsg)
	return err
}

func (r *PostgresRepo) MarkRetried(ctx context.Context, id string) error {
	query := `UPDATE extraction_jobs SET status = $2, error = '', retries = retries + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, StatusSubmitted)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM extraction_jobs`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM extraction_jobs GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
