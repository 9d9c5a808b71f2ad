// Package weaviate implements the chunk store on a Weaviate collection:
// idempotent batch upserts keyed by record ID and company-scoped
// similarity search over the FinancialChunk class.
package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"finsight/backend/internal/apperr"
	"finsight/backend/internal/ingest"
	"finsight/backend/internal/retrieval"
	"finsight/backend/internal/vector"
)

type Store struct {
	client *weaviate.Client
}

func NewStore(client *weaviate.Client) *Store {
	return &Store{client: client}
}

// UpsertChunks writes records in one batch. Weaviate's batch API replaces
// objects whose ID already exists, so re-ingesting a document overwrites its
// previous records instead of duplicating them.
func (s *Store) UpsertChunks(ctx context.Context, records []ingest.Record) error {
	if len(records) == 0 {
		return nil
	}

	objects := make([]*models.Object, len(records))
	for i, r := range records {
		objects[i] = &models.Object{
			Class: vector.ClassName,
			ID:    strfmt.UUID(r.ID),
			Properties: map[string]interface{}{
				"content":     r.Content,
				"companyName": r.CompanyName,
				"companyKey":  r.CompanyKey,
				"documentId":  r.DocumentID,
				"source":      r.Source,
				"page":        r.Page,
				"chunkType":   r.ChunkType,
				"chunkIndex":  r.ChunkIndex,
			},
			Vector: models.C11yVector(r.Vector),
		}
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch upsert: %v", apperr.ErrExternalService, err)
	}
	for _, obj := range resp {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("%w: batch upsert object %s: %s", apperr.ErrExternalService, obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// Search runs a ranked nearVector query, scoped to a normalized company key
// when one is supplied. Zero results under a filter is the caller's problem
// to handle — the retrieval pipeline decides whether to retry unfiltered.
func (s *Store) Search(ctx context.Context, vec []float32, limit int, companyKey string) ([]retrieval.SearchResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "companyName"},
		{Name: "companyKey"},
		{Name: "documentId"},
		{Name: "source"},
		{Name: "page"},
		{Name: "chunkType"},
		{Name: "chunkIndex"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	query := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithLimit(limit).
		WithFields(fields...)

	if companyKey != "" {
		query = query.WithWhere(filters.Where().
			WithPath([]string{"companyKey"}).
			WithOperator(filters.Equal).
			WithValueString(companyKey))
	}

	res, err := query.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", apperr.ErrExternalService, err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("%w: vector search graphql: %v", apperr.ErrExternalService, res.Errors[0].Message)
	}

	var results []retrieval.SearchResult
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return results, nil
	}
	rows, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return results, nil
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		r := retrieval.SearchResult{}
		if v, ok := props["content"].(string); ok {
			r.Content = v
		}
		if v, ok := props["companyName"].(string); ok {
			r.CompanyName = v
		}
		if v, ok := props["documentId"].(string); ok {
			r.DocumentID = v
		}
		if v, ok := props["source"].(string); ok {
			r.Source = v
		}
		if v, ok := props["page"].(float64); ok {
			r.Page = int(v)
		}
		if v, ok := props["chunkType"].(string); ok {
			r.ChunkType = v
		}
		if v, ok := props["chunkIndex"].(float64); ok {
			r.ChunkIndex = int(v)
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				r.Score = float32(certainty)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// TopCompany returns the company name on the record closest to the vector.
// Used by the semantic company resolver; "" when the store is empty.
func (s *Store) TopCompany(ctx context.Context, vec []float32) (string, float32, error) {
	results, err := s.Search(ctx, vec, 1, "")
	if err != nil {
		return "", 0, err
	}
	if len(results) == 0 {
		return "", 0, nil
	}
	return results[0].CompanyName, results[0].Score, nil
}

// DeleteChunksByDocument removes every record derived from a document.
func (s *Store) DeleteChunksByDocument(ctx context.Context, documentID string) error {
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(vector.ClassName).
		WithOutput("minimal").
		WithWhere(filters.Where().
			WithPath([]string{"documentId"}).
			WithOperator(filters.Equal).
			WithValueString(documentID)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch delete: %v", apperr.ErrExternalService, err)
	}
	return nil
}

// CountChunks reports the number of stored records, for the stats endpoint.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	res, err := s.client.GraphQL().Aggregate().
		WithClassName(vector.ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: aggregate count: %v", apperr.ErrExternalService, err)
	}
	if len(res.Errors) > 0 {
		return 0, fmt.Errorf("%w: aggregate count graphql: %v", apperr.ErrExternalService, res.Errors[0].Message)
	}

	agg, ok := res.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	rows, ok := agg[vector.ClassName].([]interface{})
	if !ok || len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	meta, ok := row["meta"].(map[string]interface{})
	if !ok {
		return 0, nil
	}
	count, _ := meta["count"].(float64)
	return int(count), nil
}
