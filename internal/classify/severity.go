package classify

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/linnemanlabs/medtriage/internal/embedding"
)

const (
	// MostSevere is ESI level 1.
	MostSevere = 1
	// LeastSevere is ESI level 5, also returned when no similarity is defined.
	LeastSevere = 5
)

// SeverityDef is the canonical description of one ESI level.
type SeverityDef struct {
	Level int
	Text  string
}

type severityPrototype struct {
	level  int
	vector []float32
}

// SeverityClassifier is a nearest-prototype classifier over ESI levels.
type SeverityClassifier struct {
	embedder   embedding.Embedder
	prototypes []severityPrototype // sorted by level, most severe first
}

// NewSeverityClassifier embeds one prototype per level. Levels must be unique and within 1..5.
func NewSeverityClassifier(ctx context.Context, embedder embedding.Embedder, defs []SeverityDef) (*SeverityClassifier, error) {
	seen := make(map[int]bool, len(defs))
	protos := make([]severityPrototype, 0, len(defs))
	for _, d := range defs {
		if d.Level < MostSevere || d.Level > LeastSevere {
			return nil, fmt.Errorf("severity level %d out of range %d..%d", d.Level, MostSevere, LeastSevere)
		}
		if seen[d.Level] {
			return nil, fmt.Errorf("duplicate severity level %d", d.Level)
		}
		seen[d.Level] = true

		vec, err := embedder.Embed(ctx, d.Text)
		if err != nil {
			return nil, fmt.Errorf("embed severity prototype %d: %w", d.Level, err)
		}
		protos = append(protos, severityPrototype{level: d.Level, vector: vec})
	}

	sort.Slice(protos, func(i, j int) bool { return protos[i].level < protos[j].level })

	return &SeverityClassifier{embedder: embedder, prototypes: protos}, nil
}

// Classify returns the ESI level (1..5) whose prototype is closest to text.
func (c *SeverityClassifier) Classify(ctx context.Context, text string) (int, error) {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("embed transcript: %w", err)
	}
	return c.nearest(vec), nil
}

// nearest scans levels 1..5 so the more severe level wins a tie.
func (c *SeverityClassifier) nearest(vec []float32) int {
	best, bestScore := LeastSevere, math.Inf(-1)
	for _, p := range c.prototypes {
		s, ok := embedding.Cosine(vec, p.vector)
		if !ok {
			continue
		}
		if s > bestScore {
			best, bestScore = p.level, s
		}
	}
	return best
}
