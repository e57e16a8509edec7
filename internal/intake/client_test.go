package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medtriage/internal/encounter"
)

func TestAPIClient_CreateEncounter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"mongo style id", http.StatusCreated, `{"_id":"65f0c0ffee0000000000abcd","status":"pending"}`, "65f0c0ffee0000000000abcd", false},
		{"plain id", http.StatusOK, `{"id":"enc-42"}`, "enc-42", false},
		{"no id", http.StatusCreated, `{"status":"pending"}`, "", true},
		{"server error", http.StatusInternalServerError, `{"error":"db down"}`, "", true},
		{"bad json", http.StatusCreated, `not json`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got createEncounterBody
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/encounters" || r.Method != http.MethodPost {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewAPIClient(ClientConfig{BaseURL: srv.URL + "/", NurseID: "nurse-1", PatientID: "VoiceCapturePatient"}, log.Nop())
			id, err := c.CreateEncounter(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
			if got.NurseID != "nurse-1" || got.PatientID != "VoiceCapturePatient" {
				t.Errorf("body = %+v", got)
			}
		})
	}
}

func TestAPIClient_CreateEncounterTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewAPIClient(ClientConfig{BaseURL: srv.URL, CreateTimeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	if _, err := c.CreateEncounter(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("create did not respect its timeout")
	}
}

func TestAPIClient_Submit(t *testing.T) {
	t.Parallel()

	var (
		got  submitBody
		auth string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/interactions/log" {
			t.Errorf("path = %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewAPIClient(ClientConfig{BaseURL: srv.URL, Token: "tok"}, log.Nop())
	if err := c.Submit(context.Background(), "enc-1", "chest pain since noon"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	want := submitBody{EncounterID: "enc-1", Transcript: "chest pain since noon", NurseNote: CaptureNurseNote}
	if got != want {
		t.Errorf("body = %+v, want %+v", got, want)
	}
	if auth != "Bearer tok" {
		t.Errorf("authorization = %q", auth)
	}
}

func TestAPIClient_SubmitNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid encounter id"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewAPIClient(ClientConfig{BaseURL: srv.URL}, nil)
	err := c.Submit(context.Background(), "x", "y")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("err = %v, want 400 error", err)
	}
}

func TestFallbackID(t *testing.T) {
	t.Parallel()

	a, b := FallbackID(), FallbackID()
	if !encounter.ValidID(a) || a == b {
		t.Errorf("FallbackID = %q, %q", a, b)
	}
}
