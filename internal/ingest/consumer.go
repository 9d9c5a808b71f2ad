package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"finsight/backend/internal/middleware"
)

// touchInterval keeps long-running extractions inside nsqd's message timeout.
const touchInterval = 30 * time.Second

// TaskConsumer consumes ingest.task messages and drives the pipeline. Each
// message is one document; failures are recorded on the job record rather
// than requeued, so the retry endpoint stays the single re-run path.
type TaskConsumer struct {
	pipeline *Pipeline
}

func NewTaskConsumer(p *Pipeline) *TaskConsumer {
	return &TaskConsumer{pipeline: p}
}

func (c *TaskConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task TaskPayload
	if err := json.Unmarshal(m.Body, &task); err != nil {
		// Poison pill: invalid JSON, don't retry
		slog.Error("poison pill: invalid task json", "error", err)
		return nil
	}

	correlationID := task.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)

	if task.JobID == "" || task.DocumentID == "" || task.Path == "" {
		slog.ErrorContext(ctx, "missing required task fields, dropping", "job_id", task.JobID, "document_id", task.DocumentID)
		return nil
	}

	slog.InfoContext(ctx, "ingestion task received", "job_id", task.JobID, "document_id", task.DocumentID, "filename", task.Filename)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(touchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.Touch()
			}
		}
	}()

	err := c.pipeline.Run(ctx, task)
	close(done)
	if err != nil {
		slog.ErrorContext(ctx, "ingestion run failed", "job_id", task.JobID, "error", err)
	}
	return nil
}
