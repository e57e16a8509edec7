// Package encounter owns encounter records and the interaction log that the
// intake pipeline writes to.
package encounter

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

// HighAcuityESI is the least severe ESI level that triggers a notification.
const HighAcuityESI = 2

// Triager runs triage on a transcript.
type Triager interface {
	Triage(ctx context.Context, transcript *string) (*triage.Result, error)
}

// Notifier is told about high-acuity triage results.
type Notifier interface {
	Send(ctx context.Context, encounterID string, result *triage.Result) error
}

// CreateRequest carries the fields a caller may set on a new encounter.
type CreateRequest struct {
	NurseID    string
	PatientID  string
	Patient    Patient
	Vitals     Vitals
	NurseNotes string
}

// LogRequest is one transcript submission from the intake pipeline.
type LogRequest struct {
	EncounterID string
	Transcript  *string
	NurseNote   string
}

// Service is the business boundary for encounter operations.
type Service struct {
	store    Store
	triager  Triager
	notifier Notifier
	logger   log.Logger
	now      func() time.Time
}

// NewService creates a new encounter service. notifier may be nil.
func NewService(store Store, triager Triager, notifier Notifier, logger log.Logger) *Service {
	if store == nil || triager == nil {
		panic(xerrors.New("encounter service requires a store and a triager"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		triager:  triager,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Create stores a new waiting encounter. It is pending when a nurse is known
// and unassigned otherwise.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Encounter, error) {
	now := s.now().UTC()
	e := &Encounter{
		ID:         NewID(),
		NurseID:    req.NurseID,
		PatientID:  req.PatientID,
		Patient:    req.Patient,
		Vitals:     req.Vitals,
		Status:     StatusUnassigned,
		Severity:   DefaultSeverity,
		NurseNotes: req.NurseNotes,
		IsWaiting:  true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if e.NurseID != "" {
		e.Status = StatusPending
	}

	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "encounter created",
		"encounter_id", e.ID,
		"nurse_id", e.NurseID,
		"status", e.Status,
	)
	return e, nil
}

// Get returns the encounter with id. A non-empty nurseID restricts the
// lookup to that nurse's encounters.
func (s *Service) Get(ctx context.Context, id, nurseID string) (*Encounter, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	e, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok || (nurseID != "" && e.NurseID != nurseID) {
		return nil, ErrNotFound
	}
	return e, nil
}

// ListWaiting returns the nurse's waiting encounters, oldest first.
func (s *Service) ListWaiting(ctx context.Context, nurseID string) ([]*Encounter, error) {
	return s.store.ListWaiting(ctx, nurseID)
}

// Confirm records the nurse's notes and marks the encounter confirmed. An
// unowned encounter is claimed by the confirming nurse.
func (s *Service) Confirm(ctx context.Context, id, nurseID, notes string) (*Encounter, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	now := s.now().UTC()
	return s.store.Update(ctx, id, func(e *Encounter) error {
		if e.NurseID != "" && e.NurseID != nurseID {
			return ErrForbidden
		}
		if nurseID != "" {
			e.NurseID = nurseID
		}
		e.NurseNotes = notes
		e.Status = StatusConfirmed
		e.SubmittedAt = &now
		e.UpdatedAt = now
		return nil
	})
}

// Attend marks the encounter completed and removes it from the waiting queue.
// Only the owning nurse may attend.
func (s *Service) Attend(ctx context.Context, id, nurseID string) (*Encounter, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	now := s.now().UTC()
	return s.store.Update(ctx, id, func(e *Encounter) error {
		if e.NurseID == "" || e.NurseID != nurseID {
			return ErrForbidden
		}
		e.Status = StatusCompleted
		e.AttendedAt = &now
		e.IsWaiting = false
		e.UpdatedAt = now
		return nil
	})
}

// AttachTriage stores r on the encounter and sets its severity to r's ESI level.
func (s *Service) AttachTriage(ctx context.Context, id string, r *triage.Result) (*Encounter, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	now := s.now().UTC()
	return s.store.Update(ctx, id, func(e *Encounter) error {
		e.Triage = r
		e.Severity = r.ESI
		e.UpdatedAt = now
		return nil
	})
}

// LogInteraction triages the transcript and appends it to the interaction
// log. The interaction is stored even when the encounter id was generated
// locally and has no record, or when triage itself fails.
func (s *Service) LogInteraction(ctx context.Context, req LogRequest) (*Interaction, error) {
	if !ValidID(req.EncounterID) {
		return nil, ErrInvalidID
	}
	if req.Transcript == nil {
		return nil, triage.ErrMissingTranscript
	}

	L := s.logger.With("encounter_id", req.EncounterID)

	in := &Interaction{
		ID:          NewID(),
		EncounterID: req.EncounterID,
		NurseNote:   req.NurseNote,
		Transcript:  *req.Transcript,
		CreatedAt:   s.now().UTC(),
	}

	result, err := s.triager.Triage(ctx, req.Transcript)
	if err != nil {
		L.Error(ctx, err, "triage failed, logging interaction without result")
	} else {
		in.Triage = result
		in.AITriageSummary = result.Summary
	}

	if err := s.store.AppendInteraction(ctx, in); err != nil {
		return nil, err
	}

	if result == nil {
		return in, nil
	}

	if _, err := s.AttachTriage(ctx, req.EncounterID, result); err != nil {
		if errors.Is(err, ErrNotFound) {
			L.Info(ctx, "interaction logged for unknown encounter")
		} else {
			L.Error(ctx, err, "failed to attach triage to encounter")
		}
	}

	if result.ESI <= HighAcuityESI && s.notifier != nil {
		if err := s.notifier.Send(ctx, req.EncounterID, result); err != nil {
			L.Error(ctx, err, "failed to send high acuity notification")
		}
	}

	L.Info(ctx, "interaction logged",
		"interaction_id", in.ID,
		"esi", result.ESI,
		"specialty", result.Specialty,
	)
	return in, nil
}
