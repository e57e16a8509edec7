package encounter

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linnemanlabs/medtriage/internal/triage"
)

// Sentinel errors returned by the service and stores.
var (
	ErrNotFound  = errors.New("encounter not found")
	ErrForbidden = errors.New("encounter belongs to another nurse")
	ErrInvalidID = errors.New("invalid encounter id")
)

// Status tracks where an encounter is in its lifecycle.
type Status string

const (
	// StatusUnassigned means no nurse owns the encounter yet
	StatusUnassigned Status = "unassigned"

	// StatusPending means created by a nurse, not yet confirmed
	StatusPending Status = "pending"

	// StatusConfirmed means the nurse submitted notes
	StatusConfirmed Status = "confirmed"

	// StatusCompleted means the patient was attended
	StatusCompleted Status = "completed"
)

// DefaultSeverity is assigned until a triage result is attached.
const DefaultSeverity = 1

// Patient is the intake description of the patient.
type Patient struct {
	Name      string `json:"name,omitempty"`
	Symptoms  string `json:"symptoms,omitempty"`
	Duration  string `json:"duration,omitempty"`
	PainLevel string `json:"painLevel,omitempty"`
	History   string `json:"history,omitempty"`
}

// Vitals are the measurements taken at intake.
type Vitals struct {
	Temp float64 `json:"temp,omitempty"`
	BP   string  `json:"bp,omitempty"`
	HR   float64 `json:"hr,omitempty"`
	O2   float64 `json:"o2,omitempty"`
	Resp float64 `json:"resp,omitempty"`
}

// Encounter correlates everything captured for one patient visit.
type Encounter struct {
	ID          string         `json:"_id"`
	NurseID     string         `json:"nurse_id,omitempty"`
	PatientID   string         `json:"patient_id,omitempty"`
	Patient     Patient        `json:"patient"`
	Vitals      Vitals         `json:"vitals"`
	Status      Status         `json:"status"`
	Severity    int            `json:"severity"`
	Triage      *triage.Result `json:"triage,omitempty"`
	NurseNotes  string         `json:"nurseNotes"`
	IsWaiting   bool           `json:"isWaiting"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	SubmittedAt *time.Time     `json:"submittedAt,omitempty"`
	AttendedAt  *time.Time     `json:"attendedAt,omitempty"`
}

// Interaction is one logged transcript submission for an encounter.
type Interaction struct {
	ID              string         `json:"_id"`
	EncounterID     string         `json:"encounter_id"`
	NurseNote       string         `json:"nurse_note,omitempty"`
	Transcript      string         `json:"transcript"`
	AITriageSummary string         `json:"ai_triage_summary,omitempty"`
	Triage          *triage.Result `json:"triage,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// NewID returns a fresh identifier in the store's format.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id has the store's identifier format.
func ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
