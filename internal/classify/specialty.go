// Package classify maps transcript text to a clinical specialty and an ESI
// acuity level using keyword rules and nearest-prototype search in embedding space.
package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/linnemanlabs/medtriage/internal/embedding"
)

// FallbackSpecialty is returned when no prototype produces a defined similarity.
const FallbackSpecialty = "General Medicine"

// Path records which tier of the classifier produced a specialty.
type Path string

const (
	// PathExact means a configured keyword occurred in the text
	PathExact Path = "exact"

	// PathSemantic means the nearest prototype embedding was chosen
	PathSemantic Path = "semantic"

	// PathFallback means neither tier produced an answer
	PathFallback Path = "fallback"
)

// SpecialtyDef declares a specialty, its keywords, and the text embedded as its
// prototype. An empty Text embeds the specialty name.
type SpecialtyDef struct {
	Name     string
	Keywords []string
	Text     string
}

// SpecialtyMatch is the outcome of specialty classification.
type SpecialtyMatch struct {
	Specialty string  `json:"specialty"`
	Path      Path    `json:"path"`
	Keyword   string  `json:"keyword,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

type specialtyPrototype struct {
	name     string
	keywords []string
	vector   []float32
}

// SpecialtyClassifier is immutable after construction and safe for concurrent use.
type SpecialtyClassifier struct {
	embedder   embedding.Embedder
	prototypes []specialtyPrototype
}

// NewSpecialtyClassifier embeds every prototype once and returns a ready classifier.
func NewSpecialtyClassifier(ctx context.Context, embedder embedding.Embedder, defs []SpecialtyDef) (*SpecialtyClassifier, error) {
	protos := make([]specialtyPrototype, 0, len(defs))
	for _, d := range defs {
		text := d.Text
		if text == "" {
			text = d.Name
		}
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed specialty prototype %q: %w", d.Name, err)
		}

		kws := make([]string, 0, len(d.Keywords))
		for _, kw := range d.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		protos = append(protos, specialtyPrototype{name: d.Name, keywords: kws, vector: vec})
	}
	return &SpecialtyClassifier{embedder: embedder, prototypes: protos}, nil
}

// Classify returns the specialty name for text.
func (c *SpecialtyClassifier) Classify(ctx context.Context, text string) (string, error) {
	m, err := c.Match(ctx, text)
	if err != nil {
		return "", err
	}
	return m.Specialty, nil
}

// Match runs the keyword tier and falls back to the semantic tier. The
// embedding service is only called when no keyword matches.
func (c *SpecialtyClassifier) Match(ctx context.Context, text string) (SpecialtyMatch, error) {
	if m, ok := c.MatchKeyword(text); ok {
		return m, nil
	}
	return c.MatchSemantic(ctx, text)
}

// MatchKeyword returns the first specialty, in declaration order, with a
// keyword occurring as a substring of the lower-cased text.
func (c *SpecialtyClassifier) MatchKeyword(text string) (SpecialtyMatch, bool) {
	lower := strings.ToLower(text)
	for _, p := range c.prototypes {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return SpecialtyMatch{Specialty: p.name, Path: PathExact, Keyword: kw}, true
			}
		}
	}
	return SpecialtyMatch{}, false
}

// MatchSemantic embeds text and returns the prototype with maximal cosine
// similarity. Ties go to the earliest declared specialty.
func (c *SpecialtyClassifier) MatchSemantic(ctx context.Context, text string) (SpecialtyMatch, error) {
	if len(c.prototypes) == 0 {
		return SpecialtyMatch{Specialty: FallbackSpecialty, Path: PathFallback}, nil
	}

	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return SpecialtyMatch{}, fmt.Errorf("embed transcript: %w", err)
	}

	best, bestScore := -1, math.Inf(-1)
	for i, p := range c.prototypes {
		s, ok := embedding.Cosine(vec, p.vector)
		if !ok {
			continue
		}
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return SpecialtyMatch{Specialty: FallbackSpecialty, Path: PathFallback}, nil
	}
	return SpecialtyMatch{Specialty: c.prototypes[best].name, Path: PathSemantic, Score: bestScore}, nil
}

// Specialties returns the declared specialty names in priority order.
func (c *SpecialtyClassifier) Specialties() []string {
	out := make([]string, len(c.prototypes))
	for i, p := range c.prototypes {
		out[i] = p.name
	}
	return out
}
