package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medtriage/internal/capture"
	vc "github.com/linnemanlabs/medtriage/internal/cfg"
)

func TestOpenSource_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")
	body := `{"type":"turn","transcript":"chest pain","end_of_turn":true}` + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write events: %v", err)
	}

	src, closeSrc, err := openSource(vc.IntakeConfig{EventFile: path}, log.Nop())
	if err != nil {
		t.Fatalf("openSource: %v", err)
	}
	defer closeSrc()

	var got []capture.Event
	if err := src.Run(context.Background(), func(_ context.Context, ev capture.Event) {
		got = append(got, ev)
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 1 || got[0].Text != "chest pain" || !got[0].EndOfTurn {
		t.Errorf("events = %+v", got)
	}
}

func TestOpenSource_MissingFile(t *testing.T) {
	t.Parallel()

	_, _, err := openSource(vc.IntakeConfig{EventFile: filepath.Join(t.TempDir(), "nope.jsonl")}, log.Nop())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "open event file") {
		t.Errorf("error = %q", err)
	}
}
