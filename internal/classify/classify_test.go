package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// tableEmbedder returns vectors from a fixed table and counts calls per text.
type tableEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	calls   map[string]int
	err     error
}

func newTableEmbedder(vectors map[string][]float32, def []float32) *tableEmbedder {
	return &tableEmbedder{vectors: vectors, def: def, calls: make(map[string]int)}
}

func (e *tableEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[text]++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return e.def, nil
}

func (e *tableEmbedder) count(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

func testSpecialties() []SpecialtyDef {
	return []SpecialtyDef{
		{Name: "Pulmonology", Keywords: []string{"cough", "shortness of breath"}},
		{Name: "Cardiology", Keywords: []string{"Chest Pain", "palpitations"}},
		{Name: "Dermatology", Keywords: []string{"rash"}},
	}
}

func newSpecialty(t *testing.T, emb *tableEmbedder, defs []SpecialtyDef) *SpecialtyClassifier {
	t.Helper()
	c, err := NewSpecialtyClassifier(context.Background(), emb, defs)
	if err != nil {
		t.Fatalf("NewSpecialtyClassifier: %v", err)
	}
	return c
}

func TestSpecialty_KeywordSkipsEmbedding(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(nil, []float32{1, 0})
	c := newSpecialty(t, emb, testSpecialties())

	tests := []struct {
		text    string
		want    string
		keyword string
	}{
		{"Patient reports CHEST PAIN since morning", "Cardiology", "chest pain"},
		{"dry cough for three days", "Pulmonology", "cough"},
		{"itchy rash on both arms", "Dermatology", "rash"},
	}

	for _, tt := range tests {
		m, err := c.Match(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Match(%q): %v", tt.text, err)
		}
		if m.Specialty != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.text, m.Specialty, tt.want)
		}
		if m.Path != PathExact {
			t.Errorf("Match(%q) path = %q, want %q", tt.text, m.Path, PathExact)
		}
		if m.Keyword != tt.keyword {
			t.Errorf("Match(%q) keyword = %q, want %q", tt.text, m.Keyword, tt.keyword)
		}
		if n := emb.count(tt.text); n != 0 {
			t.Errorf("embedder called %d times for keyword hit %q, want 0", n, tt.text)
		}
	}
}

func TestSpecialty_KeywordPriorityOrder(t *testing.T) {
	t.Parallel()

	c := newSpecialty(t, newTableEmbedder(nil, []float32{1}), testSpecialties())

	// matches both Cardiology and Pulmonology; Pulmonology is declared first
	got, err := c.Classify(context.Background(), "chest pain and shortness of breath")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != "Pulmonology" {
		t.Errorf("Classify = %q, want Pulmonology", got)
	}
}

func TestSpecialty_SemanticNearest(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(map[string][]float32{
		"Pulmonology":          {1, 0, 0},
		"Cardiology":           {0, 1, 0},
		"Dermatology":          {0, 0, 1},
		"my heart is racing":   {0.1, 0.9, 0.2},
		"skin looks very odd":  {0, 0.2, 0.8},
		"equally ambiguous ok": {1, 1, 0},
	}, nil)
	c := newSpecialty(t, emb, testSpecialties())

	tests := []struct {
		text string
		want string
	}{
		{"my heart is racing", "Cardiology"},
		{"skin looks very odd", "Dermatology"},
		// tie between Pulmonology and Cardiology resolves to the earlier one
		{"equally ambiguous ok", "Pulmonology"},
	}

	for _, tt := range tests {
		m, err := c.Match(context.Background(), tt.text)
		if err != nil {
			t.Fatalf("Match(%q): %v", tt.text, err)
		}
		if m.Specialty != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.text, m.Specialty, tt.want)
		}
		if m.Path != PathSemantic {
			t.Errorf("Match(%q) path = %q, want %q", tt.text, m.Path, PathSemantic)
		}
		if emb.count(tt.text) != 1 {
			t.Errorf("embedder calls for %q = %d, want 1", tt.text, emb.count(tt.text))
		}
	}
}

func TestSpecialty_FallbackLabel(t *testing.T) {
	t.Parallel()

	t.Run("empty prototype set", func(t *testing.T) {
		t.Parallel()
		emb := newTableEmbedder(nil, []float32{1})
		c := newSpecialty(t, emb, nil)
		m, err := c.Match(context.Background(), "anything")
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if m.Specialty != FallbackSpecialty || m.Path != PathFallback {
			t.Errorf("Match = %+v, want fallback", m)
		}
	})

	t.Run("all similarities undefined", func(t *testing.T) {
		t.Parallel()
		emb := newTableEmbedder(map[string][]float32{"": {0, 0}}, []float32{1, 0})
		c := newSpecialty(t, emb, testSpecialties())
		m, err := c.Match(context.Background(), "")
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if m.Specialty != FallbackSpecialty {
			t.Errorf("Specialty = %q, want %q", m.Specialty, FallbackSpecialty)
		}
	})
}

func TestSpecialty_EmbedError(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(nil, []float32{1})
	c := newSpecialty(t, emb, testSpecialties())
	emb.err = errors.New("embedding service down")

	if _, err := c.Match(context.Background(), "no keywords here"); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	// keyword tier still works without the embedding service
	if got, err := c.Classify(context.Background(), "bad cough"); err != nil || got != "Pulmonology" {
		t.Errorf("Classify = %q, %v; want Pulmonology, nil", got, err)
	}
}

func TestSpecialty_ConstructorEmbedsNames(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(nil, []float32{1})
	c := newSpecialty(t, emb, testSpecialties())
	for _, name := range []string{"Pulmonology", "Cardiology", "Dermatology"} {
		if emb.count(name) != 1 {
			t.Errorf("prototype %q embedded %d times, want 1", name, emb.count(name))
		}
	}
	if got := strings.Join(c.Specialties(), ","); got != "Pulmonology,Cardiology,Dermatology" {
		t.Errorf("Specialties = %q", got)
	}
}

func severityVectors() map[string][]float32 {
	return map[string][]float32{
		DefaultSeverities[0].Text: {1, 0, 0, 0, 0},
		DefaultSeverities[1].Text: {0, 1, 0, 0, 0},
		DefaultSeverities[2].Text: {0, 0, 1, 0, 0},
		DefaultSeverities[3].Text: {0, 0, 0, 1, 0},
		DefaultSeverities[4].Text: {0, 0, 0, 0, 1},
	}
}

func TestSeverity_PrototypeMapsToItsOwnLevel(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(severityVectors(), nil)
	c, err := NewSeverityClassifier(context.Background(), emb, DefaultSeverities)
	if err != nil {
		t.Fatalf("NewSeverityClassifier: %v", err)
	}

	for _, d := range DefaultSeverities {
		got, err := c.Classify(context.Background(), d.Text)
		if err != nil {
			t.Fatalf("Classify(%q): %v", d.Text, err)
		}
		if got != d.Level {
			t.Errorf("Classify(%q) = %d, want %d", d.Text, got, d.Level)
		}
	}
}

func TestSeverity_TieGoesToMoreSevere(t *testing.T) {
	t.Parallel()

	vecs := severityVectors()
	vecs["between two and four"] = []float32{0, 1, 0, 1, 0}
	c, err := NewSeverityClassifier(context.Background(), newTableEmbedder(vecs, nil), DefaultSeverities)
	if err != nil {
		t.Fatalf("NewSeverityClassifier: %v", err)
	}

	got, err := c.Classify(context.Background(), "between two and four")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got != 2 {
		t.Errorf("Classify = %d, want 2", got)
	}
}

func TestSeverity_TotalFunction(t *testing.T) {
	t.Parallel()

	vecs := severityVectors()
	vecs["zero"] = []float32{0, 0, 0, 0, 0}
	vecs["wrong dims"] = []float32{1, 2}
	vecs["negative"] = []float32{-1, -1, -1, -1, -0.5}
	c, err := NewSeverityClassifier(context.Background(), newTableEmbedder(vecs, nil), DefaultSeverities)
	if err != nil {
		t.Fatalf("NewSeverityClassifier: %v", err)
	}

	for _, text := range []string{"zero", "wrong dims", "negative"} {
		got, err := c.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify(%q): %v", text, err)
		}
		if got < MostSevere || got > LeastSevere {
			t.Errorf("Classify(%q) = %d, out of range", text, got)
		}
	}

	// undefined similarity everywhere defaults to the least severe level
	if got := c.nearest([]float32{0, 0, 0, 0, 0}); got != LeastSevere {
		t.Errorf("nearest(zero) = %d, want %d", got, LeastSevere)
	}
}

func TestSeverity_DeclarationOrderIrrelevant(t *testing.T) {
	t.Parallel()

	reversed := make([]SeverityDef, len(DefaultSeverities))
	for i, d := range DefaultSeverities {
		reversed[len(DefaultSeverities)-1-i] = d
	}
	vecs := severityVectors()
	vecs["tie"] = []float32{0, 0, 1, 1, 0}
	c, err := NewSeverityClassifier(context.Background(), newTableEmbedder(vecs, nil), reversed)
	if err != nil {
		t.Fatalf("NewSeverityClassifier: %v", err)
	}
	if got, _ := c.Classify(context.Background(), "tie"); got != 3 {
		t.Errorf("Classify(tie) = %d, want 3", got)
	}
}

func TestNewSeverityClassifier_InvalidDefs(t *testing.T) {
	t.Parallel()

	emb := newTableEmbedder(nil, []float32{1})
	tests := []struct {
		name string
		defs []SeverityDef
	}{
		{"level zero", []SeverityDef{{Level: 0, Text: "x"}}},
		{"level six", []SeverityDef{{Level: 6, Text: "x"}}},
		{"duplicate", []SeverityDef{{Level: 2, Text: "a"}, {Level: 2, Text: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewSeverityClassifier(context.Background(), emb, tt.defs); err == nil {
				t.Error("expected error")
			}
		})
	}
}
