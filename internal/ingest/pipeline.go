// Package ingest runs the document ingestion pipeline: submit the uploaded
// file to the extraction service, poll the job to completion, then chunk,
// embed, and store the output under the resolved company.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"finsight/backend/internal/adapter/ade"
	"finsight/backend/internal/apperr"
	"finsight/backend/internal/company"
	"finsight/backend/internal/text"
)

// Job lifecycle statuses, durably recorded in extraction_jobs.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusError      = "error"
)

// ErrPollCeiling marks an extraction job abandoned after the elapsed-time
// ceiling. The job transitions to failed rather than polling forever.
var ErrPollCeiling = errors.New("extraction polling exceeded time ceiling")

// PollPolicy controls the additive-backoff poll loop against the extraction
// service.
type PollPolicy struct {
	InitialDelay time.Duration
	DelayStep    time.Duration
	MaxDelay     time.Duration
	Ceiling      time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialDelay: 5 * time.Second,
		DelayStep:    3 * time.Second,
		MaxDelay:     30 * time.Second,
		Ceiling:      15 * time.Minute,
	}
}

type Pipeline struct {
	extractor Extractor
	embedder  Embedder
	store     ChunkStore
	jobs      JobRecorder
	docs      DocumentUpdater
	companies CompanyRegistry

	poll         PollPolicy
	chunkSize    int
	chunkOverlap int
}

func NewPipeline(
	extractor Extractor,
	embedder Embedder,
	store ChunkStore,
	jobs JobRecorder,
	docs DocumentUpdater,
	companies CompanyRegistry,
	poll PollPolicy,
	chunkSize, chunkOverlap int,
) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = text.DefaultChunkSize
		chunkOverlap = text.DefaultChunkOverlap
	}
	return &Pipeline{
		extractor:    extractor,
		embedder:     embedder,
		store:        store,
		jobs:         jobs,
		docs:         docs,
		companies:    companies,
		poll:         poll,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Run drives one document from uploaded file to stored chunks, recording
// every state transition. The returned error is for the caller's logging;
// terminal state is already persisted when Run returns.
func (p *Pipeline) Run(ctx context.Context, task TaskPayload) error {
	data, err := os.ReadFile(task.Path)
	if err != nil {
		return p.fail(ctx, task, StatusError, fmt.Sprintf("read upload: %v", err))
	}

	if err := p.jobs.UpdateStatus(ctx, task.JobID, StatusProcessing, ""); err != nil {
		slog.WarnContext(ctx, "failed to mark job processing", "job_id", task.JobID, "error", err)
	}
	_ = p.docs.UpdateStatus(ctx, task.DocumentID, StatusProcessing)

	adeJobID, err := p.extractor.SubmitJob(ctx, task.Filename, data)
	if err != nil {
		return p.fail(ctx, task, StatusError, fmt.Sprintf("submit extraction: %v", err))
	}
	slog.InfoContext(ctx, "extraction job submitted", "job_id", task.JobID, "ade_job_id", adeJobID)

	status, err := p.pollUntilDone(ctx, adeJobID)
	if err != nil {
		if errors.Is(err, ErrPollCeiling) {
			return p.fail(ctx, task, StatusFailed, "extraction timed out")
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return p.fail(ctx, task, StatusError, fmt.Sprintf("poll extraction: %v", err))
	}
	if status.Status == ade.StatusFailed {
		return p.fail(ctx, task, StatusFailed, "extraction service reported failure")
	}

	result, err := p.extractor.FetchOutput(ctx, status.OutputURL)
	if err != nil {
		return p.fail(ctx, task, StatusError, fmt.Sprintf("fetch extraction output: %v", err))
	}

	if err := p.process(ctx, task, result); err != nil {
		// A document with nothing usable in it stays failed; re-running the
		// extraction cannot produce text that is not there.
		if errors.Is(err, apperr.ErrData) {
			return p.fail(ctx, task, StatusFailed, err.Error())
		}
		return p.fail(ctx, task, StatusError, err.Error())
	}

	if err := p.jobs.UpdateStatus(ctx, task.JobID, StatusCompleted, ""); err != nil {
		slog.WarnContext(ctx, "failed to mark job completed", "job_id", task.JobID, "error", err)
	}
	_ = p.docs.UpdateStatus(ctx, task.DocumentID, StatusCompleted)
	slog.InfoContext(ctx, "ingestion completed", "job_id", task.JobID, "document_id", task.DocumentID)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, task TaskPayload, status, msg string) error {
	slog.ErrorContext(ctx, "ingestion failed", "job_id", task.JobID, "document_id", task.DocumentID, "status", status, "reason", msg)
	if err := p.jobs.UpdateStatus(ctx, task.JobID, status, msg); err != nil {
		slog.ErrorContext(ctx, "failed to record job failure", "job_id", task.JobID, "error", err)
	}
	_ = p.docs.UpdateStatus(ctx, task.DocumentID, status)
	return errors.New(msg)
}

// pollUntilDone waits out the extraction job with additive backoff: initial
// delay, growing by a fixed step per attempt, capped. Poll-call timeouts are
// retried; the elapsed ceiling turns into ErrPollCeiling so a hung remote
// job can never pin the worker.
func (p *Pipeline) pollUntilDone(ctx context.Context, adeJobID string) (*ade.JobStatus, error) {
	delay := p.poll.InitialDelay
	deadline := time.Now().Add(p.poll.Ceiling)

	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := p.extractor.GetJobStatus(ctx, adeJobID)
		switch {
		case err != nil && errors.Is(err, ade.ErrTimeout):
			slog.WarnContext(ctx, "poll timed out, retrying", "ade_job_id", adeJobID)
		case err != nil:
			return nil, err
		case status.Status == ade.StatusCompleted || status.Status == ade.StatusFailed:
			return status, nil
		default:
			slog.DebugContext(ctx, "extraction still running", "ade_job_id", adeJobID, "status", status.Status)
		}

		if time.Now().After(deadline) {
			return nil, ErrPollCeiling
		}
		delay += p.poll.DelayStep
		if delay > p.poll.MaxDelay {
			delay = p.poll.MaxDelay
		}
	}
}

type piece struct {
	content   string
	page      int
	chunkType string
}

func (p *Pipeline) process(ctx context.Context, task TaskPayload, result *ade.ParseResult) error {
	pieces, err := p.pieces(result)
	if err != nil {
		return err
	}

	contents := make([]string, len(pieces))
	for i, pc := range pieces {
		contents[i] = pc.content
	}

	name := companyFromExtraction(result.Extraction)
	if name == "" {
		name = company.ExtractFromDocument(contents)
	}
	key := text.NormalizeCompany(name)
	if key != "" {
		if err := p.companies.UpsertCompany(ctx, key, name); err != nil {
			slog.WarnContext(ctx, "failed to upsert company", "key", key, "error", err)
		}
		if err := p.docs.UpdateCompany(ctx, task.DocumentID, name, key); err != nil {
			slog.WarnContext(ctx, "failed to record document company", "document_id", task.DocumentID, "error", err)
		}
		slog.InfoContext(ctx, "company resolved", "document_id", task.DocumentID, "company", name, "key", key)
	} else {
		slog.WarnContext(ctx, "no company identified in document", "document_id", task.DocumentID)
	}

	if len(result.Extraction) > 0 {
		if err := p.docs.UpdateExtractedFields(ctx, task.DocumentID, result.Extraction); err != nil {
			slog.WarnContext(ctx, "failed to save extracted fields", "document_id", task.DocumentID, "error", err)
		}
	}

	if task.ReportPath != "" {
		reportPieces, err := loadReportPieces(task.ReportPath)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable report file", "path", task.ReportPath, "error", err)
		} else {
			pieces = append(pieces, reportPieces...)
		}
	}

	records, err := p.buildRecords(ctx, task, pieces, name, key)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: document produced no embeddable chunks", apperr.ErrData)
	}

	// Re-ingest replaces: clear the document's prior records first, then
	// upsert under deterministic IDs.
	if err := p.store.DeleteChunksByDocument(ctx, task.DocumentID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}
	if err := p.store.UpsertChunks(ctx, records); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	slog.InfoContext(ctx, "chunks stored", "document_id", task.DocumentID, "count", len(records))
	return nil
}

// pieces flattens the extraction output into embeddable units. Structured
// chunks from the service keep their page and type; a markdown-only result
// falls back to word-window chunking.
func (p *Pipeline) pieces(result *ade.ParseResult) ([]piece, error) {
	if len(result.Chunks) > 0 {
		out := make([]piece, 0, len(result.Chunks))
		for _, c := range result.Chunks {
			ct := c.ChunkType
			if ct == "" {
				ct = "text"
			}
			out = append(out, piece{content: c.Content(), page: c.Page(), chunkType: ct})
		}
		return out, nil
	}

	chunks, err := text.ChunkText(text.CleanText(result.Markdown), p.chunkSize, p.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("chunk markdown: %w", err)
	}
	out := make([]piece, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, piece{content: c, chunkType: "text"})
	}
	return out, nil
}

// buildRecords filters whitespace-only pieces, batch-embeds the rest, and
// assigns deterministic per-(document, index) IDs.
func (p *Pipeline) buildRecords(ctx context.Context, task TaskPayload, pieces []piece, companyName, companyKey string) ([]Record, error) {
	kept := make([]piece, 0, len(pieces))
	texts := make([]string, 0, len(pieces))
	for _, pc := range pieces {
		if strings.TrimSpace(pc.content) == "" {
			continue
		}
		kept = append(kept, pc)
		texts = append(texts, pc.content)
	}
	if len(kept) == 0 {
		return nil, nil
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(kept) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(kept))
	}

	records := make([]Record, len(kept))
	for i, pc := range kept {
		records[i] = Record{
			ID:          RecordID(task.DocumentID, i),
			Vector:      vectors[i],
			Content:     pc.content,
			CompanyName: companyName,
			CompanyKey:  companyKey,
			DocumentID:  task.DocumentID,
			Source:      task.Filename,
			Page:        pc.page,
			ChunkType:   pc.chunkType,
			ChunkIndex:  i,
		}
	}
	return records, nil
}

// RecordID derives a stable UUID from the document and chunk index, so a
// re-ingested document overwrites its own records.
func RecordID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s#%d", documentID, chunkIndex)).String()
}

func companyFromExtraction(fields map[string]interface{}) string {
	for _, k := range []string{"company_name", "company", "issuer"} {
		if v, ok := fields[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// loadReportPieces reads a pre-parsed report JSON shaped like the extraction
// output (chunks[].markdown with grounding pages).
func loadReportPieces(path string) ([]piece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report ade.ParseResult
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	out := make([]piece, 0, len(report.Chunks))
	for _, c := range report.Chunks {
		ct := c.ChunkType
		if ct == "" {
			ct = "report"
		}
		out = append(out, piece{content: c.Content(), page: c.Page(), chunkType: ct})
	}
	return out, nil
}
