// Package apperr defines the error kinds shared across the ingestion and
// retrieval pipelines. Callers classify failures with errors.Is and wrap
// with fmt.Errorf("%w: ...") to preserve the kind.
package apperr

import "errors"

var (
	// ErrExternalService marks a failed or non-success response from the
	// extraction, embedding, vector-store, or LLM collaborator.
	ErrExternalService = errors.New("external service error")

	// ErrConfiguration marks invalid parameters or missing required fields.
	ErrConfiguration = errors.New("configuration error")

	// ErrData marks inputs with nothing usable in them (no extractable
	// text, no company found where one is required).
	ErrData = errors.New("data error")
)
