package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medtriage/internal/encounter"
)

// CaptureNurseNote labels interactions submitted by the intake pipeline.
const CaptureNurseNote = "Voice Capture"

const (
	DefaultCreateTimeout = 5 * time.Second
	DefaultSubmitTimeout = 10 * time.Second
)

// FallbackID synthesizes an encounter id in the store's format.
func FallbackID() string {
	return encounter.NewID()
}

// ClientConfig configures an APIClient.
type ClientConfig struct {
	BaseURL       string
	Token         string
	NurseID       string
	PatientID     string
	CreateTimeout time.Duration
	SubmitTimeout time.Duration
}

// APIClient talks to the encounter and interaction endpoints of the server.
type APIClient struct {
	cfg    ClientConfig
	http   *http.Client
	logger log.Logger
}

// NewAPIClient creates a client for the server at cfg.BaseURL.
func NewAPIClient(cfg ClientConfig, logger log.Logger) *APIClient {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = DefaultCreateTimeout
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &APIClient{
		cfg:    cfg,
		http:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		logger: logger,
	}
}

type createEncounterBody struct {
	NurseID   string `json:"nurse_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

type submitBody struct {
	EncounterID string `json:"encounter_id"`
	Transcript  string `json:"transcript"`
	NurseNote   string `json:"nurse_note"`
}

// CreateEncounter creates an encounter for the configured nurse and patient.
func (c *APIClient) CreateEncounter(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CreateTimeout)
	defer cancel()

	resp, err := c.post(ctx, "/api/encounters", createEncounterBody{
		NurseID:   c.cfg.NurseID,
		PatientID: c.cfg.PatientID,
	})
	if err != nil {
		return "", fmt.Errorf("create encounter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return "", fmt.Errorf("create encounter: %w", err)
	}

	var out struct {
		MongoID string `json:"_id"`
		ID      string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("create encounter: decode response: %w", err)
	}
	if out.MongoID != "" {
		return out.MongoID, nil
	}
	if out.ID != "" {
		return out.ID, nil
	}
	return "", fmt.Errorf("create encounter: %w", errEmptyEncounterID)
}

// Submit posts one transcript to the interaction log.
func (c *APIClient) Submit(ctx context.Context, encounterID, transcript string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.SubmitTimeout)
	defer cancel()

	resp, err := c.post(ctx, "/api/interactions/log", submitBody{
		EncounterID: encounterID,
		Transcript:  transcript,
		NurseNote:   CaptureNurseNote,
	})
	if err != nil {
		return fmt.Errorf("submit interaction: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Info(ctx, "interaction log responded",
		"encounter_id", encounterID,
		"status", resp.StatusCode,
	)
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("submit interaction: %w", err)
	}
	return nil
}

func (c *APIClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return c.http.Do(req) //nolint:gosec // G704: base URL is from trusted config
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
