package get_generation

import (
	"errors"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
)

// StoreProvider resolves the generation store for a target.
type StoreProvider func(targetID string) (repository.GenerationStore, error)

// Result is the generation state of a target. Current is nil when no
// generation has ever been activated.
type Result struct {
	Current *model.Generation  `json:"current,omitempty"`
	History []model.Generation `json:"history,omitempty"`
}

// GetGenerationHandler handles the GetGenerationQuery.
type GetGenerationHandler struct {
	stores StoreProvider
}

// NewGetGenerationHandler creates a new GetGenerationHandler.
func NewGetGenerationHandler(stores StoreProvider) *GetGenerationHandler {
	return &GetGenerationHandler{stores: stores}
}

// Handle returns the active generation and, when requested, the full log.
func (h *GetGenerationHandler) Handle(query GetGenerationQuery) (Result, error) {
	if query.TargetID == "" {
		return Result{}, errors.New("target id is required for get generation query")
	}

	store, err := h.stores(query.TargetID)
	if err != nil {
		return Result{}, err
	}

	var result Result
	cur, err := store.Current()
	switch {
	case err == nil:
		result.Current = &cur
	case errors.Is(err, repository.ErrEmptyStore):
		// No activation yet: an empty result, not an error.
	default:
		return Result{}, err
	}

	if query.History {
		gens, err := store.Generations()
		if err != nil {
			return Result{}, err
		}
		result.History = gens
	}
	return result, nil
}
