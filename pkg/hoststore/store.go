// Package hoststore is a reference host-side adapter for the spec §6
// "external legacy-state representation": the core itself stays
// stateless across restarts (per spec.md's Non-goals), so whatever
// embeds it is responsible for persisting the flat
// user:/temp:/app:-prefixed map returned by
// turn.StateManager.SnapshotToLegacyState and handed back through
// turn.StateManager.SyncFromLegacyState. This package demonstrates one
// such host, backed by SQLite, keyed by conversation ID.
package hoststore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists one external legacy-state map per conversation.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite-backed Store at path.
// Pass ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("hoststore: open %s: %w", path, err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS legacy_state (
	conversation_id TEXT PRIMARY KEY,
	state_json      TEXT NOT NULL,
	updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("hoststore: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save upserts the external legacy-state map for one conversation, as
// produced by turn.StateManager.SnapshotToLegacyState.
func (s *Store) Save(ctx context.Context, conversationID string, state map[string]interface{}) error {
	if conversationID == "" {
		return fmt.Errorf("hoststore: conversation ID is required")
	}
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("hoststore: encode state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO legacy_state (conversation_id, state_json, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(conversation_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		conversationID, string(blob))
	if err != nil {
		return fmt.Errorf("hoststore: save %s: %w", conversationID, err)
	}
	return nil
}

// Load returns the external legacy-state map for one conversation,
// ready to pass to turn.StateManager.SyncFromLegacyState. The second
// return value is false if no state has been saved for conversationID.
func (s *Store) Load(ctx context.Context, conversationID string) (map[string]interface{}, bool, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM legacy_state WHERE conversation_id = ?`, conversationID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("hoststore: load %s: %w", conversationID, err)
	}

	var state map[string]interface{}
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, false, fmt.Errorf("hoststore: decode state: %w", err)
	}
	return state, true, nil
}

// Delete removes the persisted state for one conversation. Deleting an
// unknown conversation ID is not an error.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM legacy_state WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("hoststore: delete %s: %w", conversationID, err)
	}
	return nil
}
