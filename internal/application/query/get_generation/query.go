// Package get_generation exposes a target's generation state: the active
// generation and, optionally, the full generation log.
package get_generation

// GetGenerationQuery requests the generation state of one target.
type GetGenerationQuery struct {
	TargetID string
	// History includes the full generation log in the result.
	History bool
}

func (q GetGenerationQuery) Name() string {
	return "GetGeneration"
}
