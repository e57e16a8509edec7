// Package intake aggregates finalized speech utterances per capture session
// and, after a period of silence, submits the joined transcript to the
// interaction log under the session's encounter.
package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/medtriage/internal/capture"
)

// DefaultSilenceTimeout is how long a session must be quiet before its
// buffered utterances are flushed.
const DefaultSilenceTimeout = 5 * time.Second

// DefaultIdleTimeout is how long a drained session keeps its encounter
// before it is released.
const DefaultIdleTimeout = 30 * time.Minute

var errEmptyEncounterID = errors.New("encounter service returned no id")

// defaultSession keys events that carry no session id.
const defaultSession = "default"

// EncounterCreator creates the encounter a session's transcripts are filed under.
type EncounterCreator interface {
	CreateEncounter(ctx context.Context) (string, error)
}

// InteractionSubmitter delivers one aggregated transcript.
type InteractionSubmitter interface {
	Submit(ctx context.Context, encounterID, transcript string) error
}

// Hooks receives callbacks for metrics. Nil fields are skipped.
type Hooks struct {
	OnUtterance   func()
	OnPartialTurn func()
	OnCaptureErr  func()
	OnEncounter   func(fallback bool)
	OnFlush       func(err error)
}

// Options tunes an Aggregator. The zero value is usable.
type Options struct {
	SilenceTimeout time.Duration

	// IdleTimeout releases a session once it has been drained and quiet this
	// long. A later utterance under the same id starts a new encounter.
	IdleTimeout time.Duration

	// NewID synthesizes an encounter id when creation fails.
	NewID func() string

	after afterFunc
}

// Aggregator buffers utterances per session and flushes each buffer once its
// session has been silent for the configured timeout.
type Aggregator struct {
	creator   EncounterCreator
	submitter InteractionSubmitter
	logger    log.Logger
	hooks     Hooks
	silence   time.Duration
	idle      time.Duration
	newID     func() string
	after     afterFunc

	// mu guards sessions, closed and every session's buffer and timer.
	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	inflight sync.WaitGroup
}

// session fields are guarded by Aggregator.mu. At most one drain runs per
// session, so flushes are submitted in the order they were taken and the
// encounter is acquired once.
type session struct {
	id    string
	buf   []string
	timer *silenceTimer
	idle  *silenceTimer

	queue       []string
	draining    bool
	encounterID string
}

// New creates an Aggregator.
func New(creator EncounterCreator, submitter InteractionSubmitter, logger log.Logger, hooks Hooks, opts Options) *Aggregator {
	if creator == nil || submitter == nil {
		panic(xerrors.New("intake aggregator requires an encounter creator and a submitter"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.SilenceTimeout <= 0 {
		opts.SilenceTimeout = DefaultSilenceTimeout
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.NewID == nil {
		opts.NewID = FallbackID
	}
	return &Aggregator{
		creator:   creator,
		submitter: submitter,
		logger:    logger,
		hooks:     hooks,
		silence:   opts.SilenceTimeout,
		idle:      opts.IdleTimeout,
		newID:     opts.NewID,
		after:     opts.after,
		sessions:  make(map[string]*session),
	}
}

// HandleEvent applies one capture event. It never blocks on network calls.
func (a *Aggregator) HandleEvent(ctx context.Context, ev capture.Event) {
	id := ev.SessionID
	if id == "" {
		id = defaultSession
	}
	L := a.logger.With("session_id", id)

	switch ev.Kind {
	case capture.KindBegin:
		L.Info(ctx, "capture session started")
		return

	case capture.KindError:
		L.Warn(ctx, "capture error", "error", ev.Err)
		if a.hooks.OnCaptureErr != nil {
			a.hooks.OnCaptureErr()
		}
		return

	case capture.KindTurn:
		if !ev.EndOfTurn {
			L.Info(ctx, "partial turn", "text", ev.Text)
			if a.hooks.OnPartialTurn != nil {
				a.hooks.OnPartialTurn()
			}
			return
		}
	default:
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		L.Warn(ctx, "aggregator closed, dropping utterance")
		return
	}
	s := a.sessionLocked(id)
	s.idle.Cancel()
	s.buf = append(s.buf, ev.Text)
	s.timer.Arm()
	buffered := len(s.buf)
	a.mu.Unlock()

	if a.hooks.OnUtterance != nil {
		a.hooks.OnUtterance()
	}
	L.Info(ctx, "utterance buffered", "text", ev.Text, "buffered", buffered)
}

// sessionLocked returns the session for id, creating it. Caller holds a.mu.
func (a *Aggregator) sessionLocked(id string) *session {
	if s, ok := a.sessions[id]; ok {
		return s
	}
	s := &session{id: id}
	s.timer = newSilenceTimer(&a.mu, a.silence, a.after, func() func() {
		return a.takeLocked(context.Background(), s)
	})
	s.idle = newSilenceTimer(&a.mu, a.idle, a.after, func() func() {
		return a.evictLocked(s)
	})
	a.sessions[id] = s
	return s
}

// evictLocked drops s if it is still registered and has nothing buffered,
// queued or pending. Caller holds a.mu.
func (a *Aggregator) evictLocked(s *session) func() {
	if a.sessions[s.id] != s || len(s.buf) > 0 || len(s.queue) > 0 || s.draining || s.timer.state == timerArmed {
		return nil
	}
	delete(a.sessions, s.id)
	id, encounterID := s.id, s.encounterID
	return func() {
		a.logger.Info(context.Background(), "idle capture session released",
			"session_id", id,
			"encounter_id", encounterID,
		)
	}
}

// takeLocked moves the session buffer onto its delivery queue and returns
// the drain to run outside the lock, or nil when there is nothing to send or
// a drain is already running. Caller holds a.mu.
func (a *Aggregator) takeLocked(ctx context.Context, s *session) func() {
	if len(s.buf) == 0 {
		return nil
	}
	s.queue = append(s.queue, strings.Join(s.buf, " "))
	s.buf = nil
	if s.draining {
		return nil
	}
	s.draining = true
	s.idle.Cancel()
	a.inflight.Add(1)
	return func() {
		defer a.inflight.Done()
		a.drain(ctx, s)
	}
}

// drain submits queued transcripts oldest first until the queue is empty.
func (a *Aggregator) drain(ctx context.Context, s *session) {
	for {
		a.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			if !a.closed {
				s.idle.Arm()
			}
			a.mu.Unlock()
			return
		}
		text := s.queue[0]
		s.queue[0] = ""
		s.queue = s.queue[1:]
		encounterID := s.encounterID
		a.mu.Unlock()

		if encounterID == "" {
			encounterID = a.acquireEncounter(ctx, s.id)
			a.mu.Lock()
			s.encounterID = encounterID
			a.mu.Unlock()
		}
		a.submit(ctx, s.id, encounterID, text)
	}
}

func (a *Aggregator) submit(ctx context.Context, sessionID, encounterID, text string) {
	L := a.logger.With("session_id", sessionID, "encounter_id", encounterID)

	err := a.submitter.Submit(ctx, encounterID, text)
	if a.hooks.OnFlush != nil {
		a.hooks.OnFlush(err)
	}
	if err != nil {
		L.Error(ctx, err, "transcript submission failed, dropping transcript", "chars", len(text))
		return
	}
	L.Info(ctx, "transcript submitted", "chars", len(text))
}

// acquireEncounter creates an encounter or synthesizes a fallback id.
func (a *Aggregator) acquireEncounter(ctx context.Context, sessionID string) string {
	id, err := a.creator.CreateEncounter(ctx)
	if err == nil && id == "" {
		err = errEmptyEncounterID
	}
	if err == nil {
		if a.hooks.OnEncounter != nil {
			a.hooks.OnEncounter(false)
		}
		a.logger.Info(ctx, "encounter created", "session_id", sessionID, "encounter_id", id)
		return id
	}

	fallback := a.newID()
	if a.hooks.OnEncounter != nil {
		a.hooks.OnEncounter(true)
	}
	a.logger.Warn(ctx, "encounter creation failed, using fallback id",
		"session_id", sessionID,
		"encounter_id", fallback,
		"error", err,
	)
	return fallback
}

// Buffered returns the number of utterances waiting in the session.
func (a *Aggregator) Buffered(sessionID string) int {
	if sessionID == "" {
		sessionID = defaultSession
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[sessionID]; ok {
		return len(s.buf)
	}
	return 0
}

// EncounterID returns the encounter bound to the session, if any.
func (a *Aggregator) EncounterID(sessionID string) string {
	if sessionID == "" {
		sessionID = defaultSession
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[sessionID]; ok {
		return s.encounterID
	}
	return ""
}

// Close cancels every armed timer, flushes the remaining buffers once and
// waits for in-flight deliveries until ctx is done. Later events are dropped.
func (a *Aggregator) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	var pending []func()
	for _, s := range a.sessions {
		s.timer.Cancel()
		s.idle.Cancel()
		if work := a.takeLocked(ctx, s); work != nil {
			pending = append(pending, work)
		}
	}
	a.mu.Unlock()

	if len(pending) > 0 {
		a.logger.Info(ctx, "flushing buffered transcripts on shutdown", "sessions", len(pending))
	}
	for _, work := range pending {
		work()
	}

	done := make(chan struct{})
	go func() {
		a.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run feeds events from src into the aggregator until src returns.
func (a *Aggregator) Run(ctx context.Context, src capture.Source) error {
	return src.Run(ctx, a.HandleEvent)
}
