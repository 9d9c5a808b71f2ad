package ingest

import (
	"context"

	"finsight/backend/internal/adapter/ade"
)

// Record is the persisted unit in the vector collection: one embedded chunk
// plus the payload the retrieval path filters and attributes by. The ID is
// deterministic per (document, chunk index) so re-ingesting a document
// replaces its records instead of duplicating them.
type Record struct {
	ID          string
	Vector      []float32
	Content     string
	CompanyName string
	CompanyKey  string
	DocumentID  string
	Source      string
	Page        int
	ChunkType   string
	ChunkIndex  int
}

// Embedder converts chunk texts into fixed-dimension vectors, preserving
// order. Texts must be non-empty; the pipeline filters blanks first.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore persists embedded chunks. Upserts are idempotent by record ID.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, records []Record) error
	DeleteChunksByDocument(ctx context.Context, documentID string) error
}

// Extractor is the async document-extraction collaborator.
type Extractor interface {
	SubmitJob(ctx context.Context, filename string, data []byte) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*ade.JobStatus, error)
	FetchOutput(ctx context.Context, outputURL string) (*ade.ParseResult, error)
}

// JobRecorder durably records extraction-job state transitions.
type JobRecorder interface {
	UpdateStatus(ctx context.Context, jobID, status, errMsg string) error
}

// DocumentUpdater records per-document results of a completed ingestion.
type DocumentUpdater interface {
	UpdateCompany(ctx context.Context, documentID, companyName, companyKey string) error
	UpdateExtractedFields(ctx context.Context, documentID string, fields map[string]interface{}) error
	UpdateStatus(ctx context.Context, documentID, status string) error
}

// CompanyRegistry upserts resolved companies for later listing and lookup.
type CompanyRegistry interface {
	UpsertCompany(ctx context.Context, key, displayName string) error
}
