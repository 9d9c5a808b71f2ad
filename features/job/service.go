package job

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"finsight/backend/internal/config"
)

// ErrNotRetryable rejects retry requests for jobs that are still running or
// already completed.
var ErrNotRetryable = errors.New("job is not in a terminal failed state")

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

func (s *Service) Create(ctx context.Context, j *ExtractionJob) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = StatusSubmitted
	}
	return s.repo.Create(ctx, j)
}

func (s *Service) Get(ctx context.Context, id string) (*ExtractionJob, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]ExtractionJob, error) {
	return s.repo.List(ctx)
}

func (s *Service) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return s.repo.UpdateStatus(ctx, id, status, errMsg)
}

// Retry requeues a terminal-failed job with its original task payload.
func (s *Service) Retry(ctx context.Context, id string) error {
	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !j.Terminal() {
		return ErrNotRetryable
	}

	if err := s.pub.Publish(config.TopicIngestTask, j.Payload); err != nil {
		return err
	}
	return s.repo.MarkRetried(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountByStatus(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByStatus(ctx)
}
