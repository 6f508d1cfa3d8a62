// Package store persists system generations and the single "current"
// pointer for one target, backed by a state file on disk.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/pkg/log"
)

const stateFileName = "generations.json"

// state is the on-disk layout: the append-only generation log plus the one
// committed pointer. The whole struct is written through a temp file and a
// rename, so every mutation of the pointer and the records commits in a
// single atomic step.
type state struct {
	Generations []model.Generation `json:"generations"`
	// CurrentID is the active generation's ID, 0 when nothing was ever
	// activated.
	CurrentID int `json:"current_id"`
}

// Store implements repository.GenerationStore for a single target system.
// All mutations are serialized by an internal mutex, giving the per-target
// single-writer discipline the activation pointer requires.
type Store struct {
	dir      string
	targetID string

	mu    sync.Mutex
	state state
}

var _ repository.GenerationStore = (*Store)(nil)

// New opens (or initializes) the generation store for a target under root.
func New(root, targetID string) (*Store, error) {
	dir := filepath.Join(root, targetID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}

	s := &Store{dir: dir, targetID: targetID}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	path := filepath.Join(s.dir, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = state{}
			return nil
		}
		return fmt.Errorf("failed to read store state %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		// Corruption here is fatal: the pointer cannot be trusted.
		return fmt.Errorf("generation store %s is corrupted: %w", path, err)
	}
	return nil
}

// save commits the in-memory state. The rename is the commit point: readers
// observe either the previous state file or the new one, never a partial
// write.
func (s *Store) save() error {
	path := filepath.Join(s.dir, stateFileName)
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit store state: %w", err)
	}
	return nil
}

func (s *Store) generationByID(id int) (int, bool) {
	for i, g := range s.state.Generations {
		if g.ID == id {
			return i, true
		}
	}
	return 0, false
}

// Current returns the active generation.
func (s *Store) Current() (model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentID == 0 {
		return model.Generation{}, repository.ErrEmptyStore
	}
	idx, ok := s.generationByID(s.state.CurrentID)
	if !ok {
		return model.Generation{}, fmt.Errorf("generation store for %s is corrupted: current generation %d has no record", s.targetID, s.state.CurrentID)
	}
	return s.state.Generations[idx], nil
}

// Stage appends a new pending generation; the pointer is untouched.
func (s *Store) Stage(revision model.Revision, artifactRef string) (model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 1
	if n := len(s.state.Generations); n > 0 {
		next = s.state.Generations[n-1].ID + 1
	}

	gen := model.Generation{
		ID:          next,
		Revision:    revision,
		ArtifactRef: artifactRef,
		Status:      model.GenerationStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.state.Generations = append(s.state.Generations, gen)

	if err := s.save(); err != nil {
		// Roll the in-memory append back so memory matches disk.
		s.state.Generations = s.state.Generations[:len(s.state.Generations)-1]
		return model.Generation{}, err
	}

	log.Debug("staged generation", "target", s.targetID, "generation", gen.ID, "revision", revision.ID)
	return gen, nil
}

// Activate atomically points Current at the given generation and marks the
// previously active one superseded. On any error the pointer is unchanged.
func (s *Store) Activate(generation model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.generationByID(generation.ID)
	if !ok {
		return &model.SwitchError{Op: "activate", Reason: fmt.Sprintf("generation %d is not staged", generation.ID)}
	}
	if s.state.Generations[idx].Status != model.GenerationStatusPending {
		return &model.SwitchError{Op: "activate", Reason: fmt.Sprintf("generation %d is %s, not pending", generation.ID, s.state.Generations[idx].Status)}
	}

	prev := s.state
	// Work on a copied slice so a failed save leaves the old state intact.
	next := state{
		Generations: append([]model.Generation(nil), s.state.Generations...),
		CurrentID:   generation.ID,
	}
	if s.state.CurrentID != 0 {
		if prevIdx, ok := s.generationByID(s.state.CurrentID); ok {
			next.Generations[prevIdx].Status = model.GenerationStatusSuperseded
		}
	}
	next.Generations[idx].Status = model.GenerationStatusActive

	s.state = next
	if err := s.save(); err != nil {
		s.state = prev
		return &model.SwitchError{Op: "activate", Reason: "failed to commit pointer swap", Err: err}
	}

	log.Info("activated generation", "target", s.targetID, "generation", generation.ID, "revision", generation.Revision.ID)
	return nil
}

// Rollback atomically restores the pointer to the most recent superseded
// generation. Calling it again after a completed rollback is a no-op.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.CurrentID == 0 {
		return &model.SwitchError{Op: "rollback", Reason: "nothing was ever activated", Err: repository.ErrNoPriorGeneration}
	}

	curIdx, ok := s.generationByID(s.state.CurrentID)
	if !ok {
		return &model.SwitchError{Op: "rollback", Reason: fmt.Sprintf("current generation %d has no record", s.state.CurrentID)}
	}

	// Already rolled back: the newest record past the pointer carries the
	// rolled-back status. Idempotent no-op.
	if n := len(s.state.Generations); n > 0 && s.state.Generations[n-1].Status == model.GenerationStatusRolledBack && s.state.Generations[n-1].ID != s.state.CurrentID {
		log.Debug("rollback is a no-op, latest generation already rolled back", "target", s.targetID)
		return nil
	}

	// Find the most recent superseded generation before the current one.
	restoreIdx := -1
	for i := curIdx - 1; i >= 0; i-- {
		if s.state.Generations[i].Status == model.GenerationStatusSuperseded {
			restoreIdx = i
			break
		}
	}
	if restoreIdx == -1 {
		return &model.SwitchError{Op: "rollback", Reason: "no prior generation exists", Err: repository.ErrNoPriorGeneration}
	}

	prev := s.state
	next := state{
		Generations: append([]model.Generation(nil), s.state.Generations...),
		CurrentID:   s.state.Generations[restoreIdx].ID,
	}
	next.Generations[curIdx].Status = model.GenerationStatusRolledBack
	next.Generations[restoreIdx].Status = model.GenerationStatusActive

	s.state = next
	if err := s.save(); err != nil {
		s.state = prev
		return &model.SwitchError{Op: "rollback", Reason: "failed to commit pointer swap", Err: err}
	}

	log.Warn("rolled back generation",
		"target", s.targetID,
		"rolled_back", prev.CurrentID,
		"restored", s.state.CurrentID)
	return nil
}

// Discard marks a staged generation that never activated as rolled back.
func (s *Store) Discard(generation model.Generation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.generationByID(generation.ID)
	if !ok {
		return fmt.Errorf("generation %d has no record", generation.ID)
	}
	if s.state.Generations[idx].Status != model.GenerationStatusPending {
		return fmt.Errorf("generation %d is %s, only pending generations can be discarded", generation.ID, s.state.Generations[idx].Status)
	}

	prev := s.state.Generations[idx].Status
	s.state.Generations[idx].Status = model.GenerationStatusRolledBack
	if err := s.save(); err != nil {
		s.state.Generations[idx].Status = prev
		return err
	}

	log.Debug("discarded staged generation", "target", s.targetID, "generation", generation.ID)
	return nil
}

// Generations returns all records in creation order.
func (s *Store) Generations() ([]model.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Generation(nil), s.state.Generations...), nil
}
