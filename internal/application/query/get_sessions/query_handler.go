package get_sessions

import (
	"errors"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
)

const defaultLimit = 10

// GetSessionsHandler handles the GetSessionsQuery.
type GetSessionsHandler struct {
	archive repository.SessionArchive
}

// NewGetSessionsHandler creates a new GetSessionsHandler.
func NewGetSessionsHandler(archive repository.SessionArchive) *GetSessionsHandler {
	return &GetSessionsHandler{archive: archive}
}

// Handle returns the most recent sessions for the target, newest first.
func (h *GetSessionsHandler) Handle(query GetSessionsQuery) ([]model.UpdateSession, error) {
	if query.TargetID == "" {
		return nil, errors.New("target id is required for get sessions query")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	return h.archive.Recent(query.TargetID, limit)
}
