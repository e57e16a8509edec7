package triageapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("invalid request body")

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// transcriptText converts the raw transcript field to text. An absent or
// null field yields nil. Strings are unquoted and any other JSON value is
// used as its compact JSON text.
func transcriptText(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		return &s, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	s := buf.String()
	return &s, nil
}

type triageRequest struct {
	Transcript json.RawMessage `json:"transcript"`
}

func (a *API) runTriage(w http.ResponseWriter, r *http.Request) (*triage.Result, bool) {
	var req triageRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err, "decode triage request")
		return nil, false
	}
	transcript, err := transcriptText(req.Transcript)
	if err != nil {
		a.fail(w, r, err, "decode transcript")
		return nil, false
	}
	if transcript == nil {
		a.fail(w, r, triage.ErrMissingTranscript, "missing transcript")
		return nil, false
	}

	result, err := a.triager.Triage(r.Context(), transcript)
	if err != nil {
		a.fail(w, r, err, "triage failed")
		return nil, false
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("medtriage.triage.id", result.ID),
		attribute.Int("medtriage.triage.esi", result.ESI),
		attribute.String("medtriage.triage.specialty", result.Specialty),
	)
	return result, true
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	result, ok := a.runTriage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result.Response())
}

func (a *API) handleTriageDetail(w http.ResponseWriter, r *http.Request) {
	result, ok := a.runTriage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}
