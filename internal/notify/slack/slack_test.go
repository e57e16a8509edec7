package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medtriage/internal/physician"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

func sampleResult() *triage.Result {
	return &triage.Result{
		ID:                "01JN123",
		ESI:               1,
		Specialty:         "Cardiology",
		AssignedPhysician: physician.Assignment{ID: "c1", Name: "Dr. Heart"},
		Summary:           "Crushing chest pain radiating to the left arm.",
		Ward:              "Resuscitation",
		CreatedAt:         time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}
}

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	if err := n.Send(context.Background(), "65f0c0ffee0000000000abcd", sampleResult()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, summary, context = 6 blocks
	if len(blocks) != 6 {
		t.Errorf("blocks count = %d, want 6", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Resuscitation") {
		t.Errorf("header text = %q, want to contain ward", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Error("header should contain red circle for ESI 1")
	}

	fields := blocks[2].(map[string]any)["fields"].([]any)
	var joined []string
	for _, f := range fields {
		joined = append(joined, f.(map[string]any)["text"].(string))
	}
	all := strings.Join(joined, "\n")
	for _, want := range []string{"Cardiology", "Dr. Heart", "65f0c0ffee0000000000abcd"} {
		if !strings.Contains(all, want) {
			t.Errorf("fields %q missing %q", all, want)
		}
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	if err := n.Send(context.Background(), "x", &triage.Result{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_TruncatesLongSummary(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := sampleResult()
	r.Summary = strings.Repeat("é", 4000)
	n := New(srv.URL, log.Nop())
	if err := n.Send(context.Background(), "enc", r); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	text := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)

	prefix := "*Summary*\n\n"
	if n := utf8.RuneCountInString(text); n > maxSummaryLen+len(prefix) {
		t.Errorf("summary length = %d runes, expected <= %d", n, maxSummaryLen+len(prefix))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated summary to end with ...")
	}
	if !utf8.ValidString(text) {
		t.Error("truncation split a multi-byte rune")
	}
}

func TestSummaryBlock_FallbackTitle(t *testing.T) {
	t.Parallel()

	r := sampleResult()
	r.SummaryFallback = true
	text := summaryBlock(r)["text"].(map[string]any)["text"].(string)
	if !strings.HasPrefix(text, "*Transcript excerpt*") {
		t.Errorf("text = %q, want transcript excerpt title", text)
	}

	r.Summary = ""
	text = summaryBlock(r)["text"].(map[string]any)["text"].(string)
	if !strings.Contains(text, "No summary available") {
		t.Errorf("text = %q, want placeholder", text)
	}
}

func TestESIEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		esi  int
		want string
	}{
		{1, "\U0001f534"},
		{2, "\U0001f7e0"},
		{3, "\U0001f7e1"},
		{4, "\U0001f7e2"},
		{5, "\U0001f7e2"},
		{0, "\U0001f7e2"},
	}

	for _, tt := range tests {
		if got := esiEmoji(tt.esi); got != tt.want {
			t.Errorf("esiEmoji(%d) = %q, want %q", tt.esi, got, tt.want)
		}
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("Cardiology", "Dr. Heart", "Chest pain.", 1)
	f.Add("", "", "", 0)
	f.Add("<@U123> mention", "*bold*", "_italic_ ~strike~", 2)
	f.Add("spec\x00\x01\x02", "name\nline", "summary\ttab", 7)
	f.Add(strings.Repeat("A", 5000), "x", strings.Repeat("x", 10000), 3)

	f.Fuzz(func(t *testing.T, specialty, doctor, summary string, esi int) {
		result := &triage.Result{
			ID:                "fuzz-id",
			ESI:               esi,
			Specialty:         specialty,
			AssignedPhysician: physician.Assignment{Name: doctor},
			Summary:           summary,
			Ward:              triage.Ward(esi),
			CreatedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		data, err := json.Marshal(buildMessage("enc", result))
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 6 {
			t.Fatalf("blocks count = %d, want 6", len(blocks))
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(), "enc", sampleResult())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}
