package model

import "time"

// GenerationStatus represents the lifecycle state of a generation.
type GenerationStatus string

const (
	// GenerationStatusPending indicates the generation is staged but not active.
	GenerationStatusPending GenerationStatus = "pending"
	// GenerationStatusActive indicates the generation is the one the system runs.
	GenerationStatusActive GenerationStatus = "active"
	// GenerationStatusSuperseded indicates a newer generation replaced this one.
	GenerationStatusSuperseded GenerationStatus = "superseded"
	// GenerationStatusRolledBack indicates the generation was abandoned or reverted.
	GenerationStatusRolledBack GenerationStatus = "rolled_back"
)

// Generation is one immutable, fully-built candidate or active system state.
// Records are append-only: a generation is never deleted, only superseded or
// rolled back.
type Generation struct {
	ID          int              `json:"id"`
	Revision    Revision         `json:"revision"`
	ArtifactRef string           `json:"artifact_ref"`
	Status      GenerationStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}
