package encounter

import "context"

// UpdateFunc mutates an encounter loaded inside a store transaction. Returning
// an error aborts the update and is passed through to the caller.
type UpdateFunc func(e *Encounter) error

// Store is the persistence interface for encounters and interactions.
type Store interface {
	Create(ctx context.Context, e *Encounter) error
	Get(ctx context.Context, id string) (*Encounter, bool, error)
	ListWaiting(ctx context.Context, nurseID string) ([]*Encounter, error)

	// Update applies fn atomically and returns the stored result. Unknown ids
	// return ErrNotFound.
	Update(ctx context.Context, id string, fn UpdateFunc) (*Encounter, error)

	AppendInteraction(ctx context.Context, in *Interaction) error
	ListInteractions(ctx context.Context, encounterID string) ([]*Interaction, error)
}
