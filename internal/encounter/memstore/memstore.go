// Package memstore provides an in-memory implementation of encounter.Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/linnemanlabs/medtriage/internal/encounter"
)

// Store holds encounters and interactions in memory. Suitable for dev/testing.
type Store struct {
	mu           sync.RWMutex
	encounters   map[string]*encounter.Encounter
	interactions map[string][]*encounter.Interaction // encounter ID -> log, in append order
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		encounters:   make(map[string]*encounter.Encounter),
		interactions: make(map[string][]*encounter.Interaction),
	}
}

// Create stores a copy of e.
func (s *Store) Create(_ context.Context, e *encounter.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.encounters[e.ID] = &cp
	return nil
}

// Get retrieves an encounter by ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*encounter.Encounter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.encounters[id]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// ListWaiting returns copies of the nurse's waiting encounters, oldest first.
func (s *Store) ListWaiting(_ context.Context, nurseID string) ([]*encounter.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*encounter.Encounter, 0)
	for _, e := range s.encounters {
		if e.IsWaiting && e.NurseID == nurseID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update applies fn to a copy under the write lock and stores it if fn succeeds.
func (s *Store) Update(_ context.Context, id string, fn encounter.UpdateFunc) (*encounter.Encounter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.encounters[id]
	if !ok {
		return nil, encounter.ErrNotFound
	}
	cp := *e
	if err := fn(&cp); err != nil {
		return nil, err
	}
	s.encounters[id] = &cp
	out := cp
	return &out, nil
}

// AppendInteraction stores a copy of in.
func (s *Store) AppendInteraction(_ context.Context, in *encounter.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *in
	s.interactions[in.EncounterID] = append(s.interactions[in.EncounterID], &cp)
	return nil
}

// ListInteractions returns copies of the encounter's interactions in append order.
func (s *Store) ListInteractions(_ context.Context, encounterID string) ([]*encounter.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.interactions[encounterID]
	out := make([]*encounter.Interaction, len(src))
	for i, in := range src {
		cp := *in
		out[i] = &cp
	}
	return out, nil
}
