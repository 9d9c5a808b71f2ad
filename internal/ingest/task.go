package ingest

// TaskPayload is the NSQ message published per uploaded document. JobID is
// the durable extraction-job record created at upload time; the remote
// extraction job id is only known once the worker submits the file.
type TaskPayload struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Path       string `json:"path"`

	// ReportPath points at an optional pre-parsed report JSON uploaded
	// alongside the document.
	ReportPath string `json:"report_path,omitempty"`

	CorrelationID string `json:"correlation_id,omitempty"`
}
