// Package capture delivers speech-recognition session events to the intake
// aggregator from a message bus or a newline-delimited JSON stream.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind is the type of a capture event.
type Kind string

const (
	// KindBegin marks the start of a capture session
	KindBegin Kind = "begin"

	// KindTurn carries recognized speech
	KindTurn Kind = "turn"

	// KindError reports a recognizer failure
	KindError Kind = "error"
)

// Event is one recognizer event. Text is only meaningful for turns, and only
// turns with EndOfTurn set are finalized utterances.
type Event struct {
	Kind      Kind   `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"transcript,omitempty"`
	EndOfTurn bool   `json:"end_of_turn,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Handler receives events in delivery order.
type Handler func(ctx context.Context, ev Event)

// Source delivers events to h until ctx is done or the source is exhausted.
type Source interface {
	Run(ctx context.Context, h Handler) error
}

// DecodeEvent parses and validates one JSON event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	switch ev.Kind {
	case KindBegin, KindTurn, KindError:
		return ev, nil
	default:
		return Event{}, fmt.Errorf("decode event: unknown type %q", ev.Kind)
	}
}
