package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateSchemaClient adapts the weaviate client's fluent schema API to the
// SchemaClient interface so EnsureSchema stays mockable.
type WeaviateSchemaClient struct {
	Client *weaviate.Client
}

func NewWeaviateSchemaClient(client *weaviate.Client) *WeaviateSchemaClient {
	return &WeaviateSchemaClient{Client: client}
}

func (a *WeaviateSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.Client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *WeaviateSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	return a.Client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *WeaviateSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.Client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *WeaviateSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.Client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

func (a *WeaviateSchemaClient) DeleteClass(ctx context.Context, className string) error {
	return a.Client.Schema().ClassDeleter().WithClassName(className).Do(ctx)
}
