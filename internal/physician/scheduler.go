package physician

// Directory is an immutable, ordered set of physicians. Directory order
// breaks workload ties so scheduling stays deterministic.
type Directory struct {
	physicians []Physician
}

// NewDirectory copies ps into a new directory.
func NewDirectory(ps []Physician) *Directory {
	cp := make([]Physician, len(ps))
	copy(cp, ps)
	return &Directory{physicians: cp}
}

// Len returns the number of physicians.
func (d *Directory) Len() int { return len(d.physicians) }

// All returns a copy of the directory contents.
func (d *Directory) All() []Physician {
	cp := make([]Physician, len(d.physicians))
	copy(cp, d.physicians)
	return cp
}

// candidates returns physicians of the given specialty, or the whole directory
// when none match.
func (d *Directory) candidates(specialty string) []Physician {
	var out []Physician
	for _, p := range d.physicians {
		if p.Specialty == specialty {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return d.physicians
	}
	return out
}

// Find returns the physician to assign for specialty at hour (0..23, taken
// modulo 24). Starting at hour it walks forward through the day and, at the
// first hour where any candidate is available, picks the available candidate
// with the lowest workload. If no candidate is ever available it picks the
// lowest workload candidate outright. ok is false only for an empty directory.
func (d *Directory) Find(specialty string, hour int) (Physician, bool) {
	cands := d.candidates(specialty)
	if len(cands) == 0 {
		return Physician{}, false
	}

	hour = ((hour % HoursPerDay) + HoursPerDay) % HoursPerDay
	for off := 0; off < HoursPerDay; off++ {
		h := (hour + off) % HoursPerDay
		best := -1
		for i, p := range cands {
			if !p.Availability[h] {
				continue
			}
			if best < 0 || p.WorkloadScore < cands[best].WorkloadScore {
				best = i
			}
		}
		if best >= 0 {
			return cands[best], true
		}
	}

	return lowestWorkload(cands), true
}

func lowestWorkload(ps []Physician) Physician {
	best := 0
	for i := 1; i < len(ps); i++ {
		if ps[i].WorkloadScore < ps[best].WorkloadScore {
			best = i
		}
	}
	return ps[best]
}
