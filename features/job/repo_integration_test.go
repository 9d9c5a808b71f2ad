package job_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/backend/features/document"
	"finsight/backend/features/job"
	"finsight/backend/internal/testutils"
)

func TestJobRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	jobRepo := job.NewPostgresRepo(s.DB)
	docRepo := document.NewPostgresRepo(s.DB)
	ctx := context.Background()

	doc := &document.Document{
		Filename:    "report.pdf",
		Path:        "/uploads/report.pdf",
		ContentHash: "hash-job-test",
		Status:      job.StatusSubmitted,
	}
	require.NoError(t, docRepo.Save(ctx, doc))

	j1 := &job.ExtractionJob{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		Status:     job.StatusSubmitted,
		Payload:    json.RawMessage(`{"document_id": "` + doc.ID + `"}`),
	}
	require.NoError(t, jobRepo.Create(ctx, j1))

	// Ordering below depends on distinct created_at values.
	time.Sleep(100 * time.Millisecond)

	j2 := &job.ExtractionJob{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		Status:     job.StatusSubmitted,
		Payload:    json.RawMessage(`{"document_id": "` + doc.ID + `"}`),
	}
	require.NoError(t, jobRepo.Create(ctx, j2))

	jobs, err := jobRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, j2.ID, jobs[0].ID, "newest job should be first")
	assert.Equal(t, j1.ID, jobs[1].ID, "oldest job should be last")

	// Status transitions round-trip.
	require.NoError(t, jobRepo.UpdateStatus(ctx, j1.ID, job.StatusFailed, "extraction timed out"))
	got, err := jobRepo.Get(ctx, j1.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, got.Status)
	assert.Equal(t, "extraction timed out", got.Error)
	assert.True(t, got.Terminal())

	require.NoError(t, jobRepo.MarkRetried(ctx, j1.ID))
	got, err = jobRepo.Get(ctx, j1.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StatusSubmitted, got.Status)
	assert.Empty(t, got.Error)
	assert.Equal(t, 1, got.Retries)

	counts, err := jobRepo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[job.StatusSubmitted])

	// Hard-deleting the document cascades to its jobs.
	_, err = s.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", doc.ID)
	require.NoError(t, err)

	count, err := jobRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count, "jobs should be deleted via cascade when document is hard deleted")
}
