package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"
)

// Config adds server-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	EmbeddingEndpoint     string
	EmbeddingModel        string
	EmbeddingTimeout      time.Duration
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	EmbeddingCacheTTL     time.Duration
	DirectoryFile         string
	ClaudeAPIKey          string
	ClaudeModel           string
	SummaryTimeout        time.Duration
	DatabaseURL           string
	DBMaxConns            int
	DBSlowQuery           time.Duration
	SlackWebhookURL       string
	JWTSecret             string
	DetailToken           string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.EmbeddingEndpoint, "embedding-endpoint", "", "base URL of the text embedding service (POST /embed)")
	fs.StringVar(&c.EmbeddingModel, "embedding-model", "BAAI/bge-small-en-v1.5", "embedding model name sent with each request")
	fs.DurationVar(&c.EmbeddingTimeout, "embedding-timeout", 10*time.Second, "timeout for a single embedding request")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "Redis address for the embedding cache (empty = no cache)")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "Redis database number")
	fs.DurationVar(&c.EmbeddingCacheTTL, "embedding-cache-ttl", 24*time.Hour, "lifetime of cached embeddings (0 = no expiry)")
	fs.StringVar(&c.DirectoryFile, "directory-file", "", "physician directory file (.csv, .tsv, .parquet, .json, .jsonl)")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude summarizer (empty = transcript excerpt only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-haiku-4-5", "Claude model used for summaries")
	fs.DurationVar(&c.SummaryTimeout, "summary-timeout", 20*time.Second, "deadline for one summarizer call before falling back")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.IntVar(&c.DBMaxConns, "db-max-conns", 10, "maximum PostgreSQL pool connections")
	fs.DurationVar(&c.DBSlowQuery, "db-slow-query", 0, "only log successful queries slower than this (0 = log all)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for high-acuity notifications")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HS256 secret for nurse tokens (empty = encounter routes open)")
	fs.StringVar(&c.DetailToken, "detail-token", "", "comma-separated bearer tokens guarding /api/triage/detail (empty = open)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Classifiers cannot be built without embeddings
	if c.EmbeddingEndpoint == "" {
		errs = append(errs, errors.New("EMBEDDING_ENDPOINT is required"))
	}
	if c.EmbeddingTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid EMBEDDING_TIMEOUT %s (must be > 0)", c.EmbeddingTimeout))
	}
	if c.EmbeddingCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("invalid EMBEDDING_CACHE_TTL %s (must be >= 0)", c.EmbeddingCacheTTL))
	}

	if c.DirectoryFile == "" {
		errs = append(errs, errors.New("DIRECTORY_FILE is required"))
	}

	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}
	if c.SummaryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid SUMMARY_TIMEOUT %s (must be > 0)", c.SummaryTimeout))
	}

	if c.DBMaxConns <= 0 || c.DBMaxConns > 1000 {
		errs = append(errs, fmt.Errorf("invalid DB_MAX_CONNS %d (must be 1..1000)", c.DBMaxConns))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// IntakeConfig configures the transcript intake pipeline.
type IntakeConfig struct {
	APIBaseURL      string
	APIToken        string
	NurseID         string
	PatientID       string
	SilenceTimeout  time.Duration
	IdleTimeout     time.Duration
	CreateTimeout   time.Duration
	SubmitTimeout   time.Duration
	FlushTimeout    time.Duration
	NATSURL         string
	NATSSubject     string
	EventFile       string
	ShutdownSeconds int
}

// RegisterFlags binds IntakeConfig fields to the given FlagSet with defaults inline
func (c *IntakeConfig) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.APIBaseURL, "api-base-url", "http://localhost:8080", "base URL of the medtriage server")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token sent to the server")
	fs.StringVar(&c.NurseID, "nurse-id", "", "nurse id recorded on created encounters")
	fs.StringVar(&c.PatientID, "patient-id", "VoiceCapturePatient", "patient id recorded on created encounters")
	fs.DurationVar(&c.SilenceTimeout, "silence-timeout", 5*time.Second, "silence before buffered utterances are flushed")
	fs.DurationVar(&c.IdleTimeout, "idle-timeout", 30*time.Minute, "idle time before a drained session and its encounter are released")
	fs.DurationVar(&c.CreateTimeout, "encounter-timeout", 5*time.Second, "timeout for creating an encounter")
	fs.DurationVar(&c.SubmitTimeout, "submit-timeout", 10*time.Second, "timeout for submitting a transcript")
	fs.DurationVar(&c.FlushTimeout, "flush-timeout", 15*time.Second, "budget for the final flush on shutdown")
	fs.StringVar(&c.NATSURL, "nats-url", "", "NATS server URL for capture events")
	fs.StringVar(&c.NATSSubject, "nats-subject", "capture.events", "NATS subject carrying capture events")
	fs.StringVar(&c.EventFile, "event-file", "", "newline-delimited JSON capture events to replay (- = stdin)")
	fs.IntVar(&c.ShutdownSeconds, "shutdown-seconds", 10, "seconds for component shutdown (1..300)")
}

// Validate checks all configuration fields for correctness.
func (c *IntakeConfig) Validate() error {
	var errs []error

	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	for name, d := range map[string]time.Duration{
		"SILENCE_TIMEOUT":   c.SilenceTimeout,
		"IDLE_TIMEOUT":      c.IdleTimeout,
		"ENCOUNTER_TIMEOUT": c.CreateTimeout,
		"SUBMIT_TIMEOUT":    c.SubmitTimeout,
		"FLUSH_TIMEOUT":     c.FlushTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s %s (must be > 0)", name, d))
		}
	}

	// exactly one event source
	switch {
	case c.NATSURL == "" && c.EventFile == "":
		errs = append(errs, errors.New("one of NATS_URL or EVENT_FILE is required"))
	case c.NATSURL != "" && c.EventFile != "":
		errs = append(errs, errors.New("NATS_URL and EVENT_FILE are mutually exclusive"))
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		errs = append(errs, errors.New("NATS_SUBJECT is required with NATS_URL"))
	}

	if c.ShutdownSeconds <= 0 || c.ShutdownSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_SECONDS %d (must be 1..300)", c.ShutdownSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
