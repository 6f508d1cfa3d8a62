package repository

import (
	"errors"

	"genflow-agent/internal/domain/model"
)

// ErrEmptyStore is returned by Current when no generation has ever been
// activated for the target.
var ErrEmptyStore = errors.New("generation store is empty")

// ErrNoPriorGeneration is returned by Rollback when there is nothing to
// roll back to, i.e. the first-ever activation failed.
var ErrNoPriorGeneration = errors.New("no prior generation to roll back to")

// GenerationStore persists immutable generations for one target system and
// the single "current" pointer. Implementations must serialize Stage,
// Activate and Rollback so two sessions can never race on the pointer, and
// both pointer mutations must be atomic: a crash mid-swap leaves callers
// observing either the old or the new generation, never an in-between state.
type GenerationStore interface {
	// Current returns the active generation. It fails with ErrEmptyStore
	// before the first activation and otherwise only on store corruption.
	Current() (model.Generation, error)

	// Stage appends a new pending generation for the revision and artifact
	// without affecting Current.
	Stage(revision model.Revision, artifactRef string) (model.Generation, error)

	// Activate atomically points Current at the given generation and marks
	// the previously active one superseded.
	Activate(generation model.Generation) error

	// Rollback atomically restores the pointer to the most recent
	// superseded generation, marking the failed one rolled back. Calling it
	// when the latest activation was already rolled back is a no-op.
	Rollback() error

	// Discard marks a staged generation that never activated as rolled
	// back. The pointer is untouched.
	Discard(generation model.Generation) error

	// Generations returns all generation records in creation order.
	Generations() ([]model.Generation, error)
}
