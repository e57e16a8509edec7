// Package triageapi exposes the triage engine and encounter service over HTTP.
package triageapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/medtriage/internal/encounter"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

// Triager runs triage on a transcript.
type Triager interface {
	Triage(ctx context.Context, transcript *string) (*triage.Result, error)
}

// EncounterService defines the encounter operations the API needs.
type EncounterService interface {
	Create(ctx context.Context, req encounter.CreateRequest) (*encounter.Encounter, error)
	Get(ctx context.Context, id, nurseID string) (*encounter.Encounter, error)
	ListWaiting(ctx context.Context, nurseID string) ([]*encounter.Encounter, error)
	Confirm(ctx context.Context, id, nurseID, notes string) (*encounter.Encounter, error)
	Attend(ctx context.Context, id, nurseID string) (*encounter.Encounter, error)
	LogInteraction(ctx context.Context, req encounter.LogRequest) (*encounter.Interaction, error)
}

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Options configures optional route protection. Nil middleware leaves the
// routes open.
type Options struct {
	// NurseAuth guards the encounter and interaction routes.
	NurseAuth Middleware

	// DetailAuth guards the full-result debugging endpoint.
	DetailAuth Middleware
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	triager    Triager
	encounters EncounterService
	opts       Options
}

// New creates a new API handler.
func New(logger log.Logger, triager Triager, encounters EncounterService, opts Options) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if triager == nil || encounters == nil {
		panic(xerrors.New("triage engine and encounter service are required"))
	}
	return &API{
		logger:     logger,
		triager:    triager,
		encounters: encounters,
		opts:       opts,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Post("/triage", a.handleTriage)
	r.Post("/api/triage", a.handleTriage)

	r.Group(func(r chi.Router) {
		if a.opts.DetailAuth != nil {
			r.Use(a.opts.DetailAuth)
		}
		r.Post("/api/triage/detail", a.handleTriageDetail)
	})

	r.Group(func(r chi.Router) {
		if a.opts.NurseAuth != nil {
			r.Use(a.opts.NurseAuth)
		}
		r.Route("/api/encounters", func(r chi.Router) {
			r.Post("/", a.handleCreateEncounter)
			r.Get("/waiting", a.handleListWaiting)
			r.Get("/{id}", a.handleGetEncounter)
			r.Post("/{id}/confirm", a.handleConfirm)
			r.Post("/{id}/attend", a.handleAttend)
		})
		r.Post("/api/interactions/log", a.handleLogInteraction)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps service errors to HTTP status codes. Unrecognized errors are
// logged and reported as 500 with their description.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, triage.ErrMissingTranscript),
		errors.Is(err, encounter.ErrInvalidID),
		errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, encounter.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, encounter.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.logger.Error(r.Context(), err, msg, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
