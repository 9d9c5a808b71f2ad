// Package retrieval implements the question-answering pipeline: resolve the
// company behind a query, embed it, run a company-scoped similarity search,
// and synthesize an answer from the retrieved context with the LLM.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"finsight/backend/internal/company"
	"finsight/backend/internal/text"
)

// FallbackAnswer is returned when any pipeline step fails. The user gets a
// textual degradation instead of an HTTP error; the cause goes to the log.
const FallbackAnswer = "error generating response"

// NoContextMarker is the context block used when retrieval found nothing.
const NoContextMarker = "No context retrieved."

const defaultTopK = 10

const promptTemplate = `You are a financial analysis assistant. Use the provided context below to answer accurately and concisely. If the answer is not found in the context, say 'The context does not contain that information.'

Context:
%s

Question: %s`

// SearchResult is one ranked record from the chunk store together with the
// attribution metadata surfaced as evidence.
type SearchResult struct {
	Content     string  `json:"content"`
	Score       float32 `json:"score"`
	CompanyName string  `json:"company_name,omitempty"`
	DocumentID  string  `json:"document_id,omitempty"`
	Source      string  `json:"source,omitempty"`
	Page        int     `json:"page,omitempty"`
	ChunkType   string  `json:"chunk_type,omitempty"`
	ChunkIndex  int     `json:"chunk_index"`
}

// Answer is the synthesized response plus its contributing records.
type Answer struct {
	Response string         `json:"response"`
	Company  string         `json:"company,omitempty"`
	Sources  []SearchResult `json:"sources"`
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore runs ranked similarity search, optionally scoped to a
// normalized company key. An empty key means global search.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, limit int, companyKey string) ([]SearchResult, error)
	TopCompany(ctx context.Context, vector []float32) (string, float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	embedder  Embedder
	store     VectorStore
	generator Generator
	logger    *QueryLogger
	topK      int
}

func NewService(e Embedder, s VectorStore, g Generator, l *QueryLogger) *Service {
	return &Service{embedder: e, store: s, generator: g, logger: l, topK: defaultTopK}
}

// Answer runs the full pipeline. Failures never propagate: the answer
// degrades to FallbackAnswer and the cause is logged for diagnosis.
func (s *Service) Answer(ctx context.Context, query string) *Answer {
	start := time.Now()
	ans, err := s.answer(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "answer pipeline failed", "error", err, "query", query)
		ans = &Answer{Response: FallbackAnswer, Sources: []SearchResult{}}
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:      query,
			Company:    ans.Company,
			NumResults: len(ans.Sources),
			Duration:   time.Since(start),
			Failed:     err != nil,
		})
	}
	return ans
}

func (s *Service) answer(ctx context.Context, query string) (*Answer, error) {
	// 1. Resolve company; absent means global search.
	candidate := company.ExtractFromQuery(query)
	resolved := ""
	companyKey := ""
	if candidate != "" {
		resolved = company.ResolveSemantic(ctx, candidate, s.embedder, s.store)
		companyKey = text.NormalizeCompany(resolved)
		slog.InfoContext(ctx, "company resolved from query", "candidate", candidate, "resolved", resolved, "key", companyKey)
	} else {
		slog.InfoContext(ctx, "no company detected, searching globally")
	}

	// 2-3. Expand and embed.
	expanded := ExpandQuery(query)
	vec, err := s.embedder.Embed(ctx, expanded)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// 4. Scoped search with a single unfiltered retry.
	results, err := s.store.Search(ctx, vec, s.topK, companyKey)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}
	if len(results) == 0 && companyKey != "" {
		slog.InfoContext(ctx, "filtered search empty, retrying globally", "key", companyKey)
		stripped := stripCompany(expanded, candidate)
		vec, err = s.embedder.Embed(ctx, stripped)
		if err != nil {
			return nil, fmt.Errorf("embedding stripped query: %w", err)
		}
		results, err = s.store.Search(ctx, vec, s.topK, "")
		if err != nil {
			return nil, fmt.Errorf("fallback chunk search: %w", err)
		}
	}

	// 5. Assemble context in ranked order.
	contextBlock := NoContextMarker
	if len(results) > 0 {
		texts := make([]string, len(results))
		for i, r := range results {
			texts[i] = r.Content
		}
		contextBlock = strings.Join(texts, "\n\n")
	}

	// 6. One LLM call.
	response, err := s.generator.Generate(ctx, fmt.Sprintf(promptTemplate, contextBlock, query))
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	if results == nil {
		results = []SearchResult{}
	}
	return &Answer{Response: response, Company: resolved, Sources: results}, nil
}

// ExpandQuery appends retrieval hints for executive-title queries. A pure
// string transformation that improves the embedding's match, nothing more.
func ExpandQuery(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "cfo"):
		return query + " Chief Financial Officer finance management leadership executive officer"
	case strings.Contains(lower, "ceo"):
		return query + " Chief Executive Officer company leadership management"
	}
	return query
}

func stripCompany(query, name string) string {
	if name == "" {
		return query
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return query
	}
	return strings.TrimSpace(text.CleanText(re.ReplaceAllString(query, " ")))
}
