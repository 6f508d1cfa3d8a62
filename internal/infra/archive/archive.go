// Package archive stores terminal update sessions in an embedded Badger
// database for audit and history queries.
package archive

import (
	"encoding/json"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"genflow-agent/internal/domain/model"
	"genflow-agent/internal/domain/repository"
	"genflow-agent/pkg/log"
)

// Archive implements repository.SessionArchive on top of Badger.
type Archive struct {
	db *badger.DB
}

var _ repository.SessionArchive = (*Archive)(nil)

// Open opens (or creates) the session archive at the given path.
func Open(path string) (*Archive, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is too chatty for an agent

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open session archive at %s: %w", path, err)
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// sessionKey builds keys that sort chronologically per target so a reverse
// prefix scan yields newest sessions first.
func sessionKey(s *model.UpdateSession) []byte {
	return []byte(fmt.Sprintf("session/%s/%020d/%s", s.TargetID, s.StartedAt.UnixNano(), s.SessionID))
}

func targetPrefix(targetID string) []byte {
	return []byte(fmt.Sprintf("session/%s/", targetID))
}

// Save stores a terminal session. Sessions are append-only audit records;
// saving a non-terminal session is a programming error.
func (a *Archive) Save(session *model.UpdateSession) error {
	if session == nil {
		return fmt.Errorf("cannot archive nil session")
	}
	if !session.Terminal() {
		return fmt.Errorf("cannot archive session %s: outcome not set", session.SessionID)
	}
	if strings.Contains(session.TargetID, "/") {
		return fmt.Errorf("invalid target id %q", session.TargetID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", session.SessionID, err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session), data)
	})
	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", session.SessionID, err)
	}

	log.Debug("archived session", "session", session.SessionID, "target", session.TargetID, "outcome", string(session.Outcome))
	return nil
}

// Recent returns up to limit sessions for the target, newest first.
func (a *Archive) Recent(targetID string, limit int) ([]model.UpdateSession, error) {
	if limit <= 0 {
		limit = 10
	}

	prefix := targetPrefix(targetID)
	var sessions []model.UpdateSession

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode the iterator must be seeked past the end of the
		// prefix range.
		seek := append(append([]byte(nil), prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(sessions) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s model.UpdateSession
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("corrupted session record %s: %w", it.Item().Key(), err)
				}
				sessions = append(sessions, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read session history for %s: %w", targetID, err)
	}

	return sessions, nil
}
