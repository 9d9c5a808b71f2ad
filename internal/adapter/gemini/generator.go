// Package gemini wraps the hosted language model used for answer synthesis.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"finsight/backend/internal/apperr"
)

const defaultModel = "gemini-1.5-flash"

type Generator struct {
	client *genai.Client
	model  string
}

func NewGenerator(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Generator, error) {
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Generator{client: client, model: defaultModel}, nil
}

// Close releases the underlying client. Call once at process exit.
func (g *Generator) Close() error {
	return g.client.Close()
}

// Generate sends one prompt and returns the concatenated text response.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	slog.DebugContext(ctx, "generating answer", "model", g.model, "prompt_length", len(prompt))

	model := g.client.GenerativeModel(g.model)
	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.ErrorContext(ctx, "generation failed", "error", err)
		return "", fmt.Errorf("%w: llm generation: %v", apperr.ErrExternalService, err)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: llm returned no candidates", apperr.ErrExternalService)
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: llm returned no text parts", apperr.ErrExternalService)
	}
	return sb.String(), nil
}
