package physician

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"
)

func onesAt(hours ...int) Mask {
	var m Mask
	for _, h := range hours {
		m[h] = true
	}
	return m
}

func TestParseMask_EquivalentRepresentations(t *testing.T) {
	t.Parallel()

	ints := make([]int, 24)
	ints[0], ints[5], ints[23] = 1, 1, 1
	strs := make([]string, 24)
	for i, n := range ints {
		if n == 1 {
			strs[i] = "1"
		} else {
			strs[i] = "0"
		}
	}
	want := onesAt(0, 5, 23)

	inputs := map[string]any{
		"literal ints":  ints,
		"any list":      toAny(ints),
		"json string":   "[" + strings.Join(strs, ",") + "]",
		"python string": "[" + strings.Join(strs, ", ") + "]",
		"free text":     "avail: " + strings.Join(strs, " ") + " end",
		"bytes":         []byte(strings.Join(strs, ";")),
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := ParseMask(in); got != want {
				t.Errorf("ParseMask = %v, want %v", got, want)
			}
		})
	}
}

func toAny(ints []int) []any {
	out := make([]any, len(ints))
	for i, n := range ints {
		out[i] = float64(n)
	}
	return out
}

func TestParseMask_Normalization(t *testing.T) {
	t.Parallel()

	thirty := make([]int, 30)
	for i := range thirty {
		thirty[i] = 1
	}
	got := ParseMask(thirty)
	for h := range HoursPerDay {
		if !got[h] {
			t.Fatalf("30 ones: hour %d unavailable", h)
		}
	}

	ten := "1 1 1 1 1 1 1 1 1 1"
	got = ParseMask(ten)
	for h := range HoursPerDay {
		if got[h] != (h < 10) {
			t.Errorf("10 ones: hour %d = %v", h, got[h])
		}
	}

	for _, bad := range []any{nil, "", "not a mask", "[oops", struct{}{}, []any{"x", nil}} {
		if got := ParseMask(bad); got.Any() {
			t.Errorf("ParseMask(%#v) = %v, want all zero", bad, got)
		}
	}
}

func TestParseMask_OnlyOneMeansAvailable(t *testing.T) {
	t.Parallel()

	got := ParseMask("[2, -1, 1, 0]")
	want := onesAt(2)
	if got != want {
		t.Errorf("ParseMask = %v, want %v", got, want)
	}
}

func testDirectory() *Directory {
	return NewDirectory([]Physician{
		{ID: "c1", Name: "Dr. Heart", Specialty: "Cardiology", Availability: onesAt(9, 10), WorkloadScore: 0.7},
		{ID: "c2", Name: "Dr. Valve", Specialty: "Cardiology", Availability: onesAt(9, 14), WorkloadScore: 0.3},
		{ID: "c3", Name: "Dr. Night", Specialty: "Cardiology", Availability: onesAt(2), WorkloadScore: 0.1},
		{ID: "n1", Name: "Dr. Brain", Specialty: "Neurology", WorkloadScore: 0.5},
		{ID: "n2", Name: "Dr. Nerve", Specialty: "Neurology", WorkloadScore: 0.4},
		{ID: "g1", Name: "Dr. General", Specialty: "General Medicine", Availability: onesAt(20), WorkloadScore: 0.05},
	})
}

func TestDirectory_Find(t *testing.T) {
	t.Parallel()

	d := testDirectory()
	tests := []struct {
		name      string
		specialty string
		hour      int
		wantID    string
	}{
		{"lowest workload among available now", "Cardiology", 9, "c2"},
		{"only one available now", "Cardiology", 10, "c1"},
		{"scan forward to next available hour", "Cardiology", 11, "c2"},
		{"wraps past midnight", "Cardiology", 15, "c3"},
		{"never available falls back to lowest workload in specialty", "Neurology", 9, "n2"},
		{"unknown specialty uses whole directory", "Podiatry", 19, "g1"},
		{"unknown specialty wraps on whole directory", "Podiatry", 21, "c3"},
		{"hour normalized modulo 24", "Cardiology", 33, "c2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := d.Find(tt.specialty, tt.hour)
			if !ok {
				t.Fatal("Find returned ok=false")
			}
			if got.ID != tt.wantID {
				t.Errorf("Find(%q, %d) = %s, want %s", tt.specialty, tt.hour, got.ID, tt.wantID)
			}
		})
	}
}

func TestDirectory_FindAvailableAtHourIsMinimal(t *testing.T) {
	t.Parallel()

	d := testDirectory()
	for h := range HoursPerDay {
		got, _ := d.Find("Cardiology", h)
		var avail []Physician
		for _, p := range d.All() {
			if p.Specialty == "Cardiology" && p.Availability[h] {
				avail = append(avail, p)
			}
		}
		if len(avail) == 0 {
			continue
		}
		if !got.Availability[h] {
			t.Errorf("hour %d: %s not available", h, got.ID)
		}
		for _, p := range avail {
			if p.WorkloadScore < got.WorkloadScore {
				t.Errorf("hour %d: %s has lower workload than chosen %s", h, p.ID, got.ID)
			}
		}
	}
}

func TestDirectory_FindTieKeepsDirectoryOrder(t *testing.T) {
	t.Parallel()

	d := NewDirectory([]Physician{
		{ID: "a", Specialty: "ENT", Availability: onesAt(3), WorkloadScore: 1},
		{ID: "b", Specialty: "ENT", Availability: onesAt(3), WorkloadScore: 1},
	})
	for range 5 {
		if got, _ := d.Find("ENT", 3); got.ID != "a" {
			t.Fatalf("Find = %s, want a", got.ID)
		}
	}
}

func TestDirectory_FindEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := NewDirectory(nil).Find("Cardiology", 0); ok {
		t.Error("expected ok=false for empty directory")
	}
}

func TestNewDirectory_Copies(t *testing.T) {
	t.Parallel()

	src := []Physician{{ID: "x", WorkloadScore: 1}}
	d := NewDirectory(src)
	src[0].ID = "mutated"
	if d.All()[0].ID != "x" {
		t.Error("directory must not alias caller slice")
	}
}

func TestTableFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path    string
		prefix  string
		wantErr bool
	}{
		{"/data/physicians.csv", "read_csv('/data/physicians.csv'", false},
		{"dir/p.PARQUET", "read_parquet('dir/p.PARQUET'", false},
		{"p.jsonl", "read_json('p.jsonl', format = 'newline_delimited'", false},
		{"o'brien.json", "read_json('o''brien.json'", false},
		{"p.xlsx", "", true},
	}
	for _, tt := range tests {
		got, err := tableFunc(tt.path)
		if (err != nil) != tt.wantErr {
			t.Fatalf("tableFunc(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if !strings.HasPrefix(got, tt.prefix) {
			t.Errorf("tableFunc(%q) = %q, want prefix %q", tt.path, got, tt.prefix)
		}
	}
}

func TestLoader_LoadFileCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "physicians.csv")
	csv := strings.Join([]string{
		"physician_id,name,specialty,availability_mask,workload_score",
		`101,Dr. Adams,Cardiology,"[1,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,1]",0.4`,
		`102,Dr. Baker,Neurology,"avail 0 1 1",0.2`,
		`103,Dr. Cole,Pulmonology,garbage,not-a-number`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	l, err := NewLoader(log.Nop())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	d, err := l.LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	ps := d.All()
	if len(ps) != 3 {
		t.Fatalf("len = %d, want 3", len(ps))
	}

	if ps[0].ID != "101" || ps[0].Name != "Dr. Adams" || ps[0].Specialty != "Cardiology" {
		t.Errorf("row 0 = %+v", ps[0])
	}
	if ps[0].Availability != onesAt(0, 23) {
		t.Errorf("row 0 mask = %v", ps[0].Availability)
	}
	if ps[0].WorkloadScore != 0.4 {
		t.Errorf("row 0 workload = %v", ps[0].WorkloadScore)
	}
	if ps[1].Availability != onesAt(1, 2) {
		t.Errorf("row 1 mask = %v", ps[1].Availability)
	}
	if ps[2].Availability.Any() {
		t.Errorf("row 2 mask = %v, want all zero", ps[2].Availability)
	}
	if !math.IsInf(ps[2].WorkloadScore, 1) {
		t.Errorf("row 2 workload = %v, want +Inf", ps[2].WorkloadScore)
	}
}

func TestLoader_LoadFileEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "physicians.csv")
	if err := os.WriteFile(path, []byte("physician_id,name,specialty,availability_mask,workload_score\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	l, err := NewLoader(log.Nop())
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	if _, err := l.LoadFile(context.Background(), path); err == nil {
		t.Fatal("expected error for a directory with no physicians")
	}
}
