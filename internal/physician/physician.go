// Package physician holds the on-call directory and the scheduler that picks
// a physician for a specialty at a given hour of day.
package physician

// HoursPerDay is the fixed length of an availability mask.
const HoursPerDay = 24

// Mask marks the hours of day (index 0 = 00:00) a physician is available.
type Mask [HoursPerDay]bool

// Any reports whether the physician is available at some hour.
func (m Mask) Any() bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

// Physician is one directory row. Lower WorkloadScore means more spare capacity.
type Physician struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Specialty     string  `json:"specialty"`
	Availability  Mask    `json:"availability"`
	WorkloadScore float64 `json:"workload_score"`
}

// Assignment is the part of a physician exposed in a triage result.
type Assignment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Assignment returns the id/name pair for p.
func (p Physician) Assignment() Assignment {
	return Assignment{ID: p.ID, Name: p.Name}
}
