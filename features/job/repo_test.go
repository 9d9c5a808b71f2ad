package job_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"finsight/backend/features/job"
)

func TestPostgresRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	j := &job.ExtractionJob{
		ID:         "job-1",
		DocumentID: "doc-1",
		Status:     job.StatusSubmitted,
		Payload:    []byte(`{"document_id":"doc-1"}`),
	}

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO extraction_jobs (id, document_id, status, payload) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at")).
		WithArgs(j.ID, j.DocumentID, j.Status, []byte(j.Payload)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err = repo.Create(context.Background(), j)
	assert.NoError(t, err)
	assert.Equal(t, now, j.CreatedAt)
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "status", "error", "payload", "retries", "created_at", "updated_at"}).
		AddRow("job-1", "doc-1", job.StatusFailed, "extraction timed out", []byte(`{}`), 1, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, status, error, payload, retries, created_at, updated_at FROM extraction_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnRows(rows)

	j, err := repo.Get(context.Background(), "job-1")
	assert.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, "extraction timed out", j.Error)
	assert.True(t, j.Terminal())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "document_id", "status", "error", "payload", "retries", "created_at", "updated_at"}).
		AddRow("job-2", "doc-2", job.StatusCompleted, "", []byte(`{}`), 0, now, now).
		AddRow("job-1", "doc-1", job.StatusError, "submit extraction: boom", []byte(`{}`), 0, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, status, error, payload, retries, created_at, updated_at FROM extraction_jobs ORDER BY created_at DESC")).
		WillReturnRows(rows)

	jobs, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
}

func TestPostgresRepo_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE extraction_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1")).
		WithArgs("job-1", job.StatusCompleted, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateStatus(context.Background(), "job-1", job.StatusCompleted, "")
	assert.NoError(t, err)
}

func TestPostgresRepo_MarkRetried(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE extraction_jobs SET status = $2, error = '', retries = retries + 1, updated_at = NOW() WHERE id = $1")).
		WithArgs("job-1", job.StatusSubmitted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkRetried(context.Background(), "job-1")
	assert.NoError(t, err)
}

func TestPostgresRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM extraction_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestPostgresRepo_CountByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow(job.StatusCompleted, 7).
		AddRow(job.StatusFailed, 2)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM extraction_jobs GROUP BY status")).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 7, counts[job.StatusCompleted])
	assert.Equal(t, 2, counts[job.StatusFailed])
}
