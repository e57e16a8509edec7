package triageapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/medtriage/internal/authmw"
	"github.com/linnemanlabs/medtriage/internal/encounter"
)

type createEncounterRequest struct {
	NurseID    string            `json:"nurse_id"`
	PatientID  string            `json:"patient_id"`
	Patient    encounter.Patient `json:"patient"`
	Vitals     encounter.Vitals  `json:"vitals"`
	NurseNotes string            `json:"nurseNotes"`
}

type confirmRequest struct {
	NurseID    string `json:"nurse_id"`
	NurseNotes string `json:"nurseNotes"`
}

type logInteractionRequest struct {
	EncounterID string          `json:"encounter_id"`
	Transcript  json.RawMessage `json:"transcript"`
	NurseNote   string          `json:"nurse_note"`
}

// nurseID prefers the authenticated nurse over a caller-supplied one.
func nurseID(r *http.Request, supplied string) string {
	if id := authmw.NurseFromContext(r.Context()); id != "" {
		return id
	}
	return supplied
}

func (a *API) handleCreateEncounter(w http.ResponseWriter, r *http.Request) {
	var req createEncounterRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err, "decode encounter")
		return
	}

	e, err := a.encounters.Create(r.Context(), encounter.CreateRequest{
		NurseID:    nurseID(r, req.NurseID),
		PatientID:  req.PatientID,
		Patient:    req.Patient,
		Vitals:     req.Vitals,
		NurseNotes: req.NurseNotes,
	})
	if err != nil {
		a.fail(w, r, err, "create encounter")
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) handleListWaiting(w http.ResponseWriter, r *http.Request) {
	nurse := nurseID(r, r.URL.Query().Get("nurse_id"))
	if nurse == "" {
		a.fail(w, r, fmt.Errorf("%w: nurse_id is required", errBadRequest), "list waiting")
		return
	}

	list, err := a.encounters.ListWaiting(r.Context(), nurse)
	if err != nil {
		a.fail(w, r, err, "list waiting encounters")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleGetEncounter(w http.ResponseWriter, r *http.Request) {
	e, err := a.encounters.Get(r.Context(), chi.URLParam(r, "id"), authmw.NurseFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err, "get encounter")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.fail(w, r, err, "decode confirm")
		return
	}

	e, err := a.encounters.Confirm(r.Context(), chi.URLParam(r, "id"), nurseID(r, req.NurseID), req.NurseNotes)
	if err != nil {
		a.fail(w, r, err, "confirm encounter")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) handleAttend(w http.ResponseWriter, r *http.Request) {
	nurse := nurseID(r, r.URL.Query().Get("nurse_id"))
	e, err := a.encounters.Attend(r.Context(), chi.URLParam(r, "id"), nurse)
	if err != nil {
		a.fail(w, r, err, "attend encounter")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	var raw logInteractionRequest
	if err := decodeBody(w, r, &raw); err != nil {
		a.fail(w, r, err, "decode interaction")
		return
	}
	transcript, err := transcriptText(raw.Transcript)
	if err != nil {
		a.fail(w, r, err, "decode transcript")
		return
	}

	in, err := a.encounters.LogInteraction(r.Context(), encounter.LogRequest{
		EncounterID: raw.EncounterID,
		Transcript:  transcript,
		NurseNote:   raw.NurseNote,
	})
	if err != nil {
		a.fail(w, r, err, "log interaction")
		return
	}
	writeJSON(w, http.StatusCreated, in)
}
