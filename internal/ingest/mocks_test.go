package ingest_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"finsight/backend/internal/adapter/ade"
	"finsight/backend/internal/ingest"
)

// Mocks

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) SubmitJob(ctx context.Context, filename string, data []byte) (string, error) {
	args := m.Called(ctx, filename, data)
	return args.String(0), args.Error(1)
}

func (m *MockExtractor) GetJobStatus(ctx context.Context, jobID string) (*ade.JobStatus, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ade.JobStatus), args.Error(1)
}

func (m *MockExtractor) FetchOutput(ctx context.Context, outputURL string) (*ade.ParseResult, error) {
	args := m.Called(ctx, outputURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ade.ParseResult), args.Error(1)
}

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

type MockChunkStore struct{ mock.Mock }

func (m *MockChunkStore) UpsertChunks(ctx context.Context, records []ingest.Record) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockChunkStore) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

type MockJobRecorder struct{ mock.Mock }

func (m *MockJobRecorder) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

type MockDocumentUpdater struct{ mock.Mock }

func (m *MockDocumentUpdater) UpdateCompany(ctx context.Context, documentID, companyName, companyKey string) error {
	args := m.Called(ctx, documentID, companyName, companyKey)
	return args.Error(0)
}

func (m *MockDocumentUpdater) UpdateExtractedFields(ctx context.Context, documentID string, fields map[string]interface{}) error {
	args := m.Called(ctx, documentID, fields)
	return args.Error(0)
}

func (m *MockDocumentUpdater) UpdateStatus(ctx context.Context, documentID, status string) error {
	args := m.Called(ctx, documentID, status)
	return args.Error(0)
}

type MockCompanyRegistry struct{ mock.Mock }

func (m *MockCompanyRegistry) UpsertCompany(ctx context.Context, key, displayName string) error {
	args := m.Called(ctx, key, displayName)
	return args.Error(0)
}
