package vector

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/weaviate/weaviate/entities/models"

	"finsight/backend/internal/apperr"
)

// ClassName is the collection holding embedded financial-document chunks.
const ClassName = "FinancialChunk"

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
	DeleteClass(ctx context.Context, className string) error
}

var dimensionMarkerRe = regexp.MustCompile(`dimension=(\d+)`)

func chunkProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{"text"}},
		{Name: "companyName", DataType: []string{"string"}},
		{Name: "companyKey", DataType: []string{"string"}},
		{Name: "documentId", DataType: []string{"string"}},
		{Name: "source", DataType: []string{"string"}},
		{Name: "page", DataType: []string{"int"}},
		{Name: "chunkType", DataType: []string{"string"}},
		{Name: "chunkIndex", DataType: []string{"int"}},
	}
}

func chunkClass(dimension int) *models.Class {
	return &models.Class{
		Class: ClassName,
		// The dimension marker is read back by EnsureSchema; Weaviate does
		// not record vector width on the class itself.
		Description:     fmt.Sprintf("Embedded financial document chunk (dimension=%d)", dimension),
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: chunkProperties(),
	}
}

// EnsureSchema idempotently creates the chunk class: a no-op when it already
// exists with the same dimension, a hard error when the recorded dimension
// differs. Recovering from a mismatch means calling RecreateSchema
// explicitly — it drops stored vectors and is never the default path.
func EnsureSchema(ctx context.Context, client SchemaClient, dimension int) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	if !exists {
		return client.CreateClass(ctx, chunkClass(dimension))
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	if m := dimensionMarkerRe.FindStringSubmatch(class.Description); m != nil {
		existing, _ := strconv.Atoi(m[1])
		if existing != dimension {
			return fmt.Errorf("%w: class %s exists with dimension %d, configured dimension is %d; recreate explicitly to change it",
				apperr.ErrConfiguration, ClassName, existing, dimension)
		}
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}
	for _, p := range chunkProperties() {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, ClassName, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecreateSchema drops the chunk class and creates it fresh. Destructive,
// opt-in only.
func RecreateSchema(ctx context.Context, client SchemaClient, dimension int) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}
	if exists {
		if err := client.DeleteClass(ctx, ClassName); err != nil {
			return err
		}
	}
	return client.CreateClass(ctx, chunkClass(dimension))
}
