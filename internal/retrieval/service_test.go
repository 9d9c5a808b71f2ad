package retrieval_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finsight/backend/internal/retrieval"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) Search(ctx context.Context, vector []float32, limit int, companyKey string) ([]retrieval.SearchResult, error) {
	args := m.Called(ctx, vector, limit, companyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]retrieval.SearchResult), args.Error(1)
}

func (m *MockStore) TopCompany(ctx context.Context, vector []float32) (string, float32, error) {
	args := m.Called(ctx, vector)
	return args.String(0), args.Get(1).(float32), args.Error(2)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func TestService_Answer_CompanyScoped(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)
	svc := retrieval.NewService(embedder, store, gen, nil)

	vec := []float32{0.1, 0.2}
	chunk := retrieval.SearchResult{
		Content:     "Total revenue was 500000 in 2024",
		CompanyName: "ACME CORPORATION",
		Source:      "acme-10k.pdf",
		Page:        12,
		Score:       0.88,
	}

	// Semantic resolution embeds the normalized candidate, top-1 matches the
	// stored spelling above threshold.
	embedder.On("Embed", mock.Anything, "ACME").Return(vec, nil).Once()
	store.On("TopCompany", mock.Anything, vec).Return("ACME CORPORATION", float32(0.9), nil).Once()

	embedder.On("Embed", mock.Anything, "What is the total revenue of Acme Corp in 2024?").Return(vec, nil).Once()
	store.On("Search", mock.Anything, vec, 10, "ACME CORPORATION").Return([]retrieval.SearchResult{chunk}, nil).Once()

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "Total revenue was 500000 in 2024") &&
			strings.Contains(prompt, "What is the total revenue of Acme Corp in 2024?")
	})).Return("Revenue was 500000.", nil).Once()

	ans := svc.Answer(context.Background(), "What is the total revenue of Acme Corp in 2024?")

	assert.Equal(t, "Revenue was 500000.", ans.Response)
	assert.Equal(t, "ACME CORPORATION", ans.Company)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "acme-10k.pdf", ans.Sources[0].Source)
	assert.Equal(t, 12, ans.Sources[0].Page)
	embedder.AssertExpectations(t)
	store.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestService_Answer_GlobalWhenNoCompany(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)
	svc := retrieval.NewService(embedder, store, gen, nil)

	vec := []float32{0.3}
	embedder.On("Embed", mock.Anything, mock.Anything).Return(vec, nil).Once()
	store.On("Search", mock.Anything, vec, 10, "").Return([]retrieval.SearchResult{{Content: "something"}}, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return("answer", nil).Once()

	ans := svc.Answer(context.Background(), "what is working capital")
	assert.Equal(t, "answer", ans.Response)
	assert.Empty(t, ans.Company)
	store.AssertExpectations(t)
}

func TestService_Answer_UnfilteredRetry(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)
	svc := retrieval.NewService(embedder, store, gen, nil)

	vec := []float32{0.1}
	// Resolution finds nothing above threshold, candidate kept.
	embedder.On("Embed", mock.Anything, "TESLA").Return(vec, nil).Once()
	store.On("TopCompany", mock.Anything, vec).Return("", float32(0), nil).Once()

	embedder.On("Embed", mock.Anything, "Summary of Tesla").Return(vec, nil).Once()
	store.On("Search", mock.Anything, vec, 10, "TESLA").Return([]retrieval.SearchResult{}, nil).Once()

	// Retry drops the filter and strips the company from the query text.
	embedder.On("Embed", mock.Anything, "Summary of").Return(vec, nil).Once()
	store.On("Search", mock.Anything, vec, 10, "").Return([]retrieval.SearchResult{{Content: "global hit"}}, nil).Once()

	gen.On("Generate", mock.Anything, mock.Anything).Return("from global", nil).Once()

	ans := svc.Answer(context.Background(), "Summary of Tesla")
	assert.Equal(t, "from global", ans.Response)
	require.Len(t, ans.Sources, 1)
	assert.Equal(t, "global hit", ans.Sources[0].Content)
	store.AssertExpectations(t)
	embedder.AssertExpectations(t)
}

func TestService_Answer_NoDataMarker(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)
	svc := retrieval.NewService(embedder, store, gen, nil)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	store.On("Search", mock.Anything, mock.Anything, 10, "").Return([]retrieval.SearchResult{}, nil).Once()

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, retrieval.NoContextMarker)
	})).Return("no idea", nil).Once()

	ans := svc.Answer(context.Background(), "anything at all")
	assert.Equal(t, "no idea", ans.Response)
	assert.Empty(t, ans.Sources)
	gen.AssertExpectations(t)
}

func TestService_Answer_FailureDegradesToFallback(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)
	svc := retrieval.NewService(embedder, store, gen, nil)

	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("embedder down"))

	ans := svc.Answer(context.Background(), "what is ebitda")
	assert.Equal(t, retrieval.FallbackAnswer, ans.Response)
	assert.Empty(t, ans.Sources)
}

func TestService_Answer_GeneratorFailure(t *testing.T) {
	embedder := new(MockEmbedder)
	store := new(MockStore)
	gen := new(MockGenerator)
	svc := retrieval.NewService(embedder, store, gen, nil)

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	store.On("Search", mock.Anything, mock.Anything, 10, "").Return([]retrieval.SearchResult{{Content: "ctx"}}, nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("llm down"))

	ans := svc.Answer(context.Background(), "anything")
	assert.Equal(t, retrieval.FallbackAnswer, ans.Response)
}

func TestExpandQuery(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		expand bool
	}{
		{"cfo query", "Who is the CFO of Tesla?", true},
		{"ceo query", "who is the ceo", true},
		{"plain query", "total revenue in 2024", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retrieval.ExpandQuery(tt.query)
			if tt.expand {
				assert.Greater(t, len(got), len(tt.query))
				assert.Contains(t, got, tt.query)
			} else {
				assert.Equal(t, tt.query, got)
			}
		})
	}
}

