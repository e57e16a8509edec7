package triage

import (
	"time"

	"github.com/linnemanlabs/medtriage/internal/classify"
	"github.com/linnemanlabs/medtriage/internal/physician"
)

// SummaryFallbackLen is the number of leading runes of the transcript used
// when the summarizer cannot produce a summary.
const SummaryFallbackLen = 200

// Result is the outcome of a triage run.
type Result struct {
	ID                string                  `json:"id"`
	ESI               int                     `json:"esi"`
	Specialty         string                  `json:"specialty"`
	SpecialtyMatch    classify.SpecialtyMatch `json:"specialty_match"`
	AssignedPhysician physician.Assignment    `json:"assigned_physician"`
	Summary           string                  `json:"ai_summary"`
	SummaryFallback   bool                    `json:"summary_fallback"`
	Ward              string                  `json:"ward"`
	CreatedAt         time.Time               `json:"created_at"`
	Duration          float64                 `json:"duration_seconds"`
}

// Response is the public triage payload.
type Response struct {
	ESI               int                  `json:"ESI"`
	Specialty         string               `json:"specialty"`
	AssignedPhysician physician.Assignment `json:"assigned_physician"`
	Summary           string               `json:"ai_summary"`
	Ward              string               `json:"ward"`
}

// Response projects r onto the public payload.
func (r *Result) Response() Response {
	return Response{
		ESI:               r.ESI,
		Specialty:         r.Specialty,
		AssignedPhysician: r.AssignedPhysician,
		Summary:           r.Summary,
		Ward:              r.Ward,
	}
}

var wards = map[int]string{
	1: "Resuscitation",
	2: "Critical Care",
	3: "General Ward",
	4: "Urgent Care",
	5: "Outpatient",
}

// Ward maps an ESI level to its ward. Levels outside 1..5 map to Outpatient.
func Ward(esi int) string {
	if w, ok := wards[esi]; ok {
		return w
	}
	return "Outpatient"
}

// fallbackSummary returns the first SummaryFallbackLen runes of text.
func fallbackSummary(text string) string {
	n := 0
	for i := range text {
		if n == SummaryFallbackLen {
			return text[:i]
		}
		n++
	}
	return text
}
