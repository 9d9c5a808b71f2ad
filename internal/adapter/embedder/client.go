// Package embedder wraps a sentence-embedding inference server
// (MiniLM-style, fixed 384-dimension output). Texts in, vectors out; the
// batch call preserves input order. Callers are expected to filter out
// empty or whitespace-only texts before embedding — the server rejects them.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"finsight/backend/internal/apperr"
)

// Dimension is the embedding width the vector store collection is created
// with. Every vector returned by the service must have this length.
const Dimension = 384

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Embed converts a single text into its vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one round trip. The response is checked for
// length and dimension so a misconfigured model fails here, not at storage.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{"inputs": texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding request: %v", apperr.ErrExternalService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: embedding service returned %d", apperr.ErrExternalService, resp.StatusCode)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding embedding response: %v", apperr.ErrExternalService, err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: embedding count mismatch: sent %d texts, got %d vectors", apperr.ErrExternalService, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != Dimension {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", apperr.ErrExternalService, i, len(v), Dimension)
		}
	}
	return vectors, nil
}
