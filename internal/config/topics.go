package config

const (
	// TopicIngestTask is the NSQ topic carrying document ingestion tasks,
	// one message per uploaded document.
	TopicIngestTask = "ingest.task"

	// IngestChannel is the consumer channel name for the ingestion worker.
	IngestChannel = "ingestion-worker"
)
