// Package pgstore provides a PostgreSQL implementation of encounter.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/medtriage/internal/encounter"
	"github.com/linnemanlabs/medtriage/internal/postgres"
	"github.com/linnemanlabs/medtriage/internal/triage"
)

var tracer = otel.Tracer("github.com/linnemanlabs/medtriage/internal/encounter/pgstore")

//go:embed schema.sql
var schema string

// Store persists encounters and interactions in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, applies the schema, and returns a ready Store.
func New(ctx context.Context, databaseURL string, opts postgres.PoolOptions) (*Store, error) {
	pool, err := postgres.NewPool(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the database is reachable, for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const encounterColumns = `id, nurse_id, patient_id, patient, vitals, status, severity, triage,
	nurse_notes, is_waiting, created_at, updated_at, submitted_at, attended_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Create inserts a new encounter.
func (s *Store) Create(ctx context.Context, e *encounter.Encounter) error {
	ctx, span := startSpan(ctx, "pgstore.Create", "INSERT")
	defer span.End()

	args, err := encounterArgs(e)
	if err != nil {
		return fail(span, err)
	}

	query := `INSERT INTO encounters (` + encounterColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fail(span, fmt.Errorf("insert encounter: %w", err))
	}
	return nil
}

// Get retrieves an encounter by ID.
func (s *Store) Get(ctx context.Context, id string) (*encounter.Encounter, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + encounterColumns + ` FROM encounters WHERE id = $1`
	e, err := scanEncounter(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, false, fail(span, err)
	}
	if e == nil {
		return nil, false, nil
	}
	return e, true, nil
}

// ListWaiting returns the nurse's waiting encounters ordered by creation time.
func (s *Store) ListWaiting(ctx context.Context, nurseID string) ([]*encounter.Encounter, error) {
	ctx, span := startSpan(ctx, "pgstore.ListWaiting", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT `+encounterColumns+` FROM encounters
		 WHERE nurse_id = $1 AND is_waiting
		 ORDER BY created_at, id`,
		nurseID,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query waiting: %w", err))
	}
	defer rows.Close()

	out := make([]*encounter.Encounter, 0)
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate waiting: %w", err))
	}
	return out, nil
}

// Update locks the row, applies fn and writes the result back in one transaction.
func (s *Store) Update(ctx context.Context, id string, fn encounter.UpdateFunc) (*encounter.Encounter, error) {
	ctx, span := startSpan(ctx, "pgstore.Update", "UPDATE")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	query := `SELECT ` + encounterColumns + ` FROM encounters WHERE id = $1 FOR UPDATE`
	e, err := scanEncounter(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fail(span, err)
	}
	if e == nil {
		return nil, encounter.ErrNotFound
	}

	if err := fn(e); err != nil {
		return nil, err
	}

	args, err := encounterArgs(e)
	if err != nil {
		return nil, fail(span, err)
	}
	_, err = tx.Exec(ctx, `UPDATE encounters SET
		nurse_id = $2, patient_id = $3, patient = $4, vitals = $5, status = $6,
		severity = $7, triage = $8, nurse_notes = $9, is_waiting = $10,
		created_at = $11, updated_at = $12, submitted_at = $13, attended_at = $14
		WHERE id = $1`, args...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("update encounter: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fail(span, fmt.Errorf("commit: %w", err))
	}
	return e, nil
}

// AppendInteraction inserts an interaction row.
func (s *Store) AppendInteraction(ctx context.Context, in *encounter.Interaction) error {
	ctx, span := startSpan(ctx, "pgstore.AppendInteraction", "INSERT")
	defer span.End()

	triageJSON, err := marshalTriage(in.Triage)
	if err != nil {
		return fail(span, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO interactions (id, encounter_id, nurse_note, transcript, ai_triage_summary, triage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.EncounterID, in.NurseNote, in.Transcript, in.AITriageSummary, triageJSON, in.CreatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert interaction: %w", err))
	}
	return nil
}

// ListInteractions returns an encounter's interactions oldest first.
func (s *Store) ListInteractions(ctx context.Context, encounterID string) ([]*encounter.Interaction, error) {
	ctx, span := startSpan(ctx, "pgstore.ListInteractions", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, encounter_id, nurse_note, transcript, ai_triage_summary, triage, created_at
		 FROM interactions WHERE encounter_id = $1 ORDER BY created_at, id`,
		encounterID,
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query interactions: %w", err))
	}
	defer rows.Close()

	out := make([]*encounter.Interaction, 0)
	for rows.Next() {
		var (
			in         encounter.Interaction
			triageJSON []byte
		)
		if err := rows.Scan(&in.ID, &in.EncounterID, &in.NurseNote, &in.Transcript,
			&in.AITriageSummary, &triageJSON, &in.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan interaction: %w", err))
		}
		if in.Triage, err = unmarshalTriage(triageJSON); err != nil {
			return nil, fail(span, err)
		}
		out = append(out, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate interactions: %w", err))
	}
	return out, nil
}

func encounterArgs(e *encounter.Encounter) ([]any, error) {
	patientJSON, err := json.Marshal(e.Patient)
	if err != nil {
		return nil, fmt.Errorf("marshal patient: %w", err)
	}
	vitalsJSON, err := json.Marshal(e.Vitals)
	if err != nil {
		return nil, fmt.Errorf("marshal vitals: %w", err)
	}
	triageJSON, err := marshalTriage(e.Triage)
	if err != nil {
		return nil, err
	}
	return []any{
		e.ID, e.NurseID, e.PatientID, patientJSON, vitalsJSON, string(e.Status), e.Severity,
		triageJSON, e.NurseNotes, e.IsWaiting, e.CreatedAt, e.UpdatedAt, e.SubmittedAt, e.AttendedAt,
	}, nil
}

// scanEncounter scans one row. Returns (nil, nil) when no row is found.
func scanEncounter(row pgx.Row) (*encounter.Encounter, error) {
	var (
		e           encounter.Encounter
		status      string
		patientJSON []byte
		vitalsJSON  []byte
		triageJSON  []byte
		submittedAt *time.Time
		attendedAt  *time.Time
	)

	err := row.Scan(
		&e.ID, &e.NurseID, &e.PatientID, &patientJSON, &vitalsJSON, &status, &e.Severity,
		&triageJSON, &e.NurseNotes, &e.IsWaiting, &e.CreatedAt, &e.UpdatedAt, &submittedAt, &attendedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	e.Status = encounter.Status(status)
	e.SubmittedAt = submittedAt
	e.AttendedAt = attendedAt

	if err := json.Unmarshal(patientJSON, &e.Patient); err != nil {
		return nil, fmt.Errorf("unmarshal patient: %w", err)
	}
	if err := json.Unmarshal(vitalsJSON, &e.Vitals); err != nil {
		return nil, fmt.Errorf("unmarshal vitals: %w", err)
	}
	if e.Triage, err = unmarshalTriage(triageJSON); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalTriage(r *triage.Result) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal triage: %w", err)
	}
	return b, nil
}

func unmarshalTriage(b []byte) (*triage.Result, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var r triage.Result
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("unmarshal triage: %w", err)
	}
	return &r, nil
}
