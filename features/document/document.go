// Package document owns uploaded financial documents: the metadata rows,
// content-hash dedupe, and handing each upload off to the ingestion queue.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"finsight/backend/features/job"
	"finsight/backend/internal/config"
	"finsight/backend/internal/ingest"
	"finsight/backend/internal/middleware"
)

// ErrDuplicate rejects an upload whose content hash is already stored.
var ErrDuplicate = errors.New("duplicate document")

type Document struct {
	ID              string                 `json:"id"`
	Filename        string                 `json:"filename"`
	Path            string                 `json:"-"`
	ContentHash     string                 `json:"-"`
	Status          string                 `json:"status"`
	CompanyName     string                 `json:"company_name,omitempty"`
	CompanyKey      string                 `json:"company_key,omitempty"`
	ExtractedFields map[string]interface{} `json:"extracted_fields,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateCompany(ctx context.Context, id, companyName, companyKey string) error
	UpdateExtractedFields(ctx context.Context, id string, fields map[string]interface{}) error
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type ChunkStore interface {
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type JobCreator interface {
	Create(ctx context.Context, j *job.ExtractionJob) error
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
}

type Service struct {
	repo       Repository
	jobs       JobCreator
	pub        EventPublisher
	chunkStore ChunkStore
}

func NewService(repo Repository, jobs JobCreator, pub EventPublisher, chunkStore ChunkStore) *Service {
	return &Service{repo: repo, jobs: jobs, pub: pub, chunkStore: chunkStore}
}

// Upload records the document, creates its extraction-job row, and enqueues
// the ingestion task. It returns immediately; the worker does the rest.
func (s *Service) Upload(ctx context.Context, filename, path, reportPath, hash string) (*Document, *job.ExtractionJob, error) {
	exists, err := s.repo.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, ErrDuplicate
	}

	doc := &Document{
		Filename:    filename,
		Path:        path,
		ContentHash: hash,
		Status:      job.StatusSubmitted,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, nil, err
	}

	j := &job.ExtractionJob{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		Status:     job.StatusSubmitted,
	}
	task := ingest.TaskPayload{
		JobID:         j.ID,
		DocumentID:    doc.ID,
		Filename:      filename,
		Path:          path,
		ReportPath:    reportPath,
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal task payload: %w", err)
	}
	j.Payload = payload

	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, nil, err
	}

	if err := s.pub.Publish(config.TopicIngestTask, payload); err != nil {
		// The row exists but nothing will pick it up; surface that on the
		// job so the retry endpoint can requeue it.
		slog.ErrorContext(ctx, "failed to publish ingestion task", "job_id", j.ID, "error", err)
		if uerr := s.jobs.UpdateStatus(ctx, j.ID, job.StatusError, "failed to enqueue ingestion task"); uerr != nil {
			slog.ErrorContext(ctx, "failed to record enqueue failure", "job_id", j.ID, "error", uerr)
		}
		j.Status = job.StatusError
		return doc, j, nil
	}

	slog.InfoContext(ctx, "ingestion task published", "job_id", j.ID, "document_id", doc.ID, "filename", filename)
	return doc, j, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// Delete removes the document's vector records first, then soft-deletes the
// row. Chunk deletion failing aborts so the store never holds orphans the
// metadata no longer knows about.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.chunkStore.DeleteChunksByDocument(ctx, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
