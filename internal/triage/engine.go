// internal/triage/engine.go
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/medtriage/internal/classify"
	"github.com/linnemanlabs/medtriage/internal/physician"
)

// DefaultSummaryTimeout bounds a single summarizer call.
const DefaultSummaryTimeout = 20 * time.Second

// ErrMissingTranscript is returned when a triage request carries no transcript.
var ErrMissingTranscript = errors.New("missing transcript")

const tracerName = "github.com/linnemanlabs/medtriage/internal/triage"

// SpecialtyClassifier picks a specialty for transcript text.
type SpecialtyClassifier interface {
	Match(ctx context.Context, text string) (classify.SpecialtyMatch, error)
}

// SeverityClassifier picks an ESI level for transcript text.
type SeverityClassifier interface {
	Classify(ctx context.Context, text string) (int, error)
}

// Scheduler picks the physician for a specialty at an hour of day.
type Scheduler interface {
	Find(specialty string, hour int) (physician.Physician, bool)
}

// Summarizer condenses transcript text. Failures are tolerated by the engine.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Components wires the collaborators of an Engine.
type Components struct {
	Specialty  SpecialtyClassifier
	Severity   SeverityClassifier
	Scheduler  Scheduler
	Summarizer Summarizer

	// SummaryTimeout bounds each summarizer call; zero uses DefaultSummaryTimeout.
	SummaryTimeout time.Duration

	// Now reports the current time; nil uses time.Now.
	Now func() time.Time

	// TracerProvider supplies the engine's tracer; nil uses the global provider.
	TracerProvider trace.TracerProvider
}

// CompleteEvent carries data emitted when a triage run finishes.
type CompleteEvent struct {
	ESI             int
	Specialty       string
	Path            classify.Path
	SummaryFallback bool
	Duration        float64
	Err             error
}

// EngineHooks receives callbacks for metrics. Nil fields are skipped.
type EngineHooks struct {
	OnSummary  func(duration float64, fallback bool)
	OnComplete func(e *CompleteEvent)
}

// Engine turns a transcript into a triage result. It holds no per-call state
// and is safe for concurrent use.
type Engine struct {
	specialty      SpecialtyClassifier
	severity       SeverityClassifier
	scheduler      Scheduler
	summarizer     Summarizer
	summaryTimeout time.Duration
	now            func() time.Time
	logger         log.Logger
	hooks          EngineHooks
	tracer         trace.Tracer
}

// NewEngine creates a new triage engine with the given dependencies. A nil
// Summarizer always uses the fallback summary.
func NewEngine(c Components, logger log.Logger, hooks EngineHooks) *Engine {
	if c.Specialty == nil || c.Severity == nil || c.Scheduler == nil {
		panic(xerrors.New("triage engine requires specialty, severity and scheduler"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if c.SummaryTimeout <= 0 {
		c.SummaryTimeout = DefaultSummaryTimeout
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.TracerProvider == nil {
		c.TracerProvider = otel.GetTracerProvider()
	}
	return &Engine{
		specialty:      c.Specialty,
		severity:       c.Severity,
		scheduler:      c.Scheduler,
		summarizer:     c.Summarizer,
		summaryTimeout: c.SummaryTimeout,
		now:            c.Now,
		logger:         logger,
		hooks:          hooks,
		tracer:         c.TracerProvider.Tracer(tracerName),
	}
}

// Triage classifies specialty and severity, assigns a physician for the
// current hour, and summarizes the transcript. A nil transcript returns
// ErrMissingTranscript. Summarizer failures fall back to a transcript prefix
// and never fail the call; panics in the pipeline are returned as errors.
func (e *Engine) Triage(ctx context.Context, transcript *string) (result *Result, err error) {
	if transcript == nil {
		return nil, ErrMissingTranscript
	}
	text := *transcript

	start := e.now()
	id := ulid.Make().String()

	ctx, span := e.tracer.Start(ctx, "triage.Run", trace.WithAttributes(
		attribute.String("medtriage.triage.id", id),
		attribute.Int("medtriage.transcript.length", len(text)),
	))
	defer span.End()

	L := e.logger.With("triage_id", id)

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("triage panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			L.Error(ctx, err, "triage failed")
		}
		e.complete(result, err, start)
	}()

	match, err := e.matchSpecialty(ctx, text)
	if err != nil {
		return nil, err
	}

	esi, err := e.classifySeverity(ctx, text)
	if err != nil {
		return nil, err
	}

	doc, ok := e.scheduler.Find(match.Specialty, start.Hour())
	if !ok {
		return nil, errors.New("physician directory is empty")
	}
	span.AddEvent("physician.assigned", trace.WithAttributes(
		attribute.String("medtriage.physician.id", doc.ID),
		attribute.Int("medtriage.hour", start.Hour()),
	))

	summary, fallback := e.summarize(ctx, text)

	result = &Result{
		ID:                id,
		ESI:               esi,
		Specialty:         match.Specialty,
		SpecialtyMatch:    match,
		AssignedPhysician: doc.Assignment(),
		Summary:           summary,
		SummaryFallback:   fallback,
		Ward:              Ward(esi),
		CreatedAt:         start,
		Duration:          e.now().Sub(start).Seconds(),
	}

	span.SetAttributes(
		attribute.Int("medtriage.esi", esi),
		attribute.String("medtriage.specialty", match.Specialty),
		attribute.String("medtriage.specialty.path", string(match.Path)),
		attribute.Bool("medtriage.summary.fallback", fallback),
	)

	L.Info(ctx, "triage complete",
		"esi", esi,
		"specialty", match.Specialty,
		"path", match.Path,
		"physician_id", doc.ID,
		"ward", result.Ward,
		"summary_fallback", fallback,
		"duration", result.Duration,
	)

	return result, nil
}

func (e *Engine) matchSpecialty(ctx context.Context, text string) (classify.SpecialtyMatch, error) {
	ctx, span := e.tracer.Start(ctx, "triage.specialty")
	defer span.End()

	m, err := e.specialty.Match(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return classify.SpecialtyMatch{}, fmt.Errorf("classify specialty: %w", err)
	}
	span.SetAttributes(
		attribute.String("medtriage.specialty", m.Specialty),
		attribute.String("medtriage.specialty.path", string(m.Path)),
	)
	return m, nil
}

func (e *Engine) classifySeverity(ctx context.Context, text string) (int, error) {
	ctx, span := e.tracer.Start(ctx, "triage.severity")
	defer span.End()

	esi, err := e.severity.Classify(ctx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("classify severity: %w", err)
	}
	span.SetAttributes(attribute.Int("medtriage.esi", esi))
	return esi, nil
}

// summarize never fails: errors, timeouts, panics and blank output all yield
// the transcript prefix with fallback=true.
func (e *Engine) summarize(ctx context.Context, text string) (summary string, fallback bool) {
	ctx, span := e.tracer.Start(ctx, "triage.summarize")
	defer span.End()

	start := e.now()
	defer func() {
		span.SetAttributes(attribute.Bool("medtriage.summary.fallback", fallback))
		if e.hooks.OnSummary != nil {
			e.hooks.OnSummary(e.now().Sub(start).Seconds(), fallback)
		}
	}()

	if e.summarizer == nil {
		return fallbackSummary(text), true
	}

	out, err := e.callSummarizer(ctx, text)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("summarizer returned empty output")
	}
	if err != nil {
		span.RecordError(err)
		e.logger.Warn(ctx, "summarizer failed, using transcript prefix", "error", err)
		return fallbackSummary(text), true
	}
	return out, false
}

func (e *Engine) callSummarizer(ctx context.Context, text string) (out string, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.summaryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()

	return e.summarizer.Summarize(ctx, text)
}

func (e *Engine) complete(r *Result, err error, start time.Time) {
	if e.hooks.OnComplete == nil {
		return
	}
	ev := &CompleteEvent{
		Duration: e.now().Sub(start).Seconds(),
		Err:      err,
	}
	if r != nil {
		ev.ESI = r.ESI
		ev.Specialty = r.Specialty
		ev.Path = r.SpecialtyMatch.Path
		ev.SummaryFallback = r.SummaryFallback
	}
	e.hooks.OnComplete(ev)
}
