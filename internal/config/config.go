package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"finsight"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"finsight"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	// VectorRecreate drops and recreates the chunk collection at startup.
	// Destructive, opt-in only.
	VectorRecreate bool `envconfig:"VECTOR_RECREATE" default:"false"`

	ADEURL    string `envconfig:"ADE_URL" default:"http://ade:8000"`
	ADEAPIKey string `envconfig:"ADE_API_KEY"`

	EmbedderURL string `envconfig:"EMBEDDER_URL" default:"http://embedder:8082"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`

	NSQLookupd    string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost      string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP      string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	NSQMaxMsgSize int64  `envconfig:"NSQ_MAX_MSG_SIZE" default:"10485760"` // 10MB

	EnableAPI            bool   `envconfig:"ENABLE_API" default:"true"`
	EnableIngestWorker   bool   `envconfig:"ENABLE_INGEST_WORKER" default:"true"`
	IngestionConcurrency int    `envconfig:"INGESTION_CONCURRENCY" default:"4"`
	MigrationPath        string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"512"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"50"`

	// Extraction polling
	PollInitialDelaySeconds int `envconfig:"POLL_INITIAL_DELAY_SECONDS" default:"5"`
	PollDelayStepSeconds    int `envconfig:"POLL_DELAY_STEP_SECONDS" default:"3"`
	PollMaxDelaySeconds     int `envconfig:"POLL_MAX_DELAY_SECONDS" default:"30"`
	PollCeilingMinutes      int `envconfig:"POLL_CEILING_MINUTES" default:"15"`

	// Outbound HTTP
	RemoteCallTimeoutSeconds int `envconfig:"REMOTE_CALL_TIMEOUT_SECONDS" default:"60"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	UploadDir       string `envconfig:"UPLOAD_DIR" default:"./uploads"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell, so a missing .env is not an error.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.ADEURL == "" {
		return fmt.Errorf("%w: ADE_URL", ErrMissingRequired)
	}
	if c.EmbedderURL == "" {
		return fmt.Errorf("%w: EMBEDDER_URL", ErrMissingRequired)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	return nil
}

func (c *Config) PollInitialDelay() time.Duration {
	return time.Duration(c.PollInitialDelaySeconds) * time.Second
}

func (c *Config) PollDelayStep() time.Duration {
	return time.Duration(c.PollDelayStepSeconds) * time.Second
}

func (c *Config) PollMaxDelay() time.Duration {
	return time.Duration(c.PollMaxDelaySeconds) * time.Second
}

func (c *Config) PollCeiling() time.Duration {
	return time.Duration(c.PollCeilingMinutes) * time.Minute
}

func (c *Config) RemoteCallTimeout() time.Duration {
	return time.Duration(c.RemoteCallTimeoutSeconds) * time.Second
}
