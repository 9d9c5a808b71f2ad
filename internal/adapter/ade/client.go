// Package ade wraps the external document-extraction service (agentic
// document extraction). Parsing is asynchronous: submit a file, poll the job,
// fetch the output once the service reports completion.
package ade

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"finsight/backend/internal/apperr"
)

// Job states as reported by the extraction service.
const (
	StatusCompleted  = "completed"
	StatusProcessing = "processing"
	StatusRunning    = "running"
	StatusFailed     = "failed"
)

// ErrTimeout marks a request that hit the client's deadline. The ingestion
// poll loop treats it as retryable; every other failure is fatal for the job.
var ErrTimeout = errors.New("extraction request timed out")

// Grounding locates a chunk within the source document.
type Grounding struct {
	Page int `json:"page"`
}

// Chunk is one extracted span with its metadata.
type Chunk struct {
	ChunkID   string      `json:"chunk_id"`
	Text      string      `json:"text"`
	Markdown  string      `json:"markdown"`
	ChunkType string      `json:"chunk_type"`
	Grounding []Grounding `json:"grounding"`
}

// ParseResult is the raw output of a completed extraction job.
type ParseResult struct {
	Markdown   string                 `json:"markdown"`
	Chunks     []Chunk                `json:"chunks"`
	Extraction map[string]interface{} `json:"extraction"`
}

// Page returns the chunk's first grounding page, or 0 when ungrounded.
func (c Chunk) Page() int {
	if len(c.Grounding) == 0 {
		return 0
	}
	return c.Grounding[0].Page
}

// Content prefers the plain text form, falling back to markdown.
func (c Chunk) Content() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Markdown
}

// JobStatus is a poll response.
type JobStatus struct {
	Status    string `json:"status"`
	OutputURL string `json:"output_url"`
}

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// SubmitJob uploads the document and returns the externally assigned job id.
func (c *Client) SubmitJob(ctx context.Context, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/parse/jobs", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: extraction job submit returned %d", apperr.ErrExternalService, resp.StatusCode)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding submit response: %v", apperr.ErrExternalService, err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("%w: extraction job submit returned no job id", apperr.ErrExternalService)
	}
	return out.JobID, nil
}

// GetJobStatus polls the service for job progress.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/parse/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: extraction job status returned %d", apperr.ErrExternalService, resp.StatusCode)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: decoding status response: %v", apperr.ErrExternalService, err)
	}
	return &status, nil
}

// FetchOutput downloads the completed job's parse result from the location
// the status poll reported.
func (c *Client) FetchOutput(ctx context.Context, outputURL string) (*ParseResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, wrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: extraction output fetch returned %d", apperr.ErrExternalService, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading extraction output: %v", apperr.ErrExternalService, err)
	}

	var result ParseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding extraction output: %v", apperr.ErrExternalService, err)
	}
	return &result, nil
}

func wrapTransport(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrExternalService, err)
}
