// Package transcript persists the turn-by-turn conversation history the
// loop records user utterances and text replies into. The loop only
// writes it; GetState() does not read it back.
//
// Grounded on the reference architecture's internal/agent/head.go
// storeConversation: a two-table insert (a conversation row created on
// first use, ignored on conflict, plus one message row per turn) against
// a SQLite database, generalized from Flynn's user/team split down to a
// single conversation per session (spec.md §1 Non-goals: single-user per
// session, no multi-tenant isolation).
package transcript

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/google/uuid"
)

// Role discriminates who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one recorded utterance or reply.
type Turn struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string
	CreatedAt      int64
}

// Store persists conversation turns to SQLite.
type Store struct {
	db             *sql.DB
	conversationID string
}

// Open opens (creating if necessary) a transcript store at path, scoped
// to a single conversationID for the lifetime of the loop.
func Open(path, conversationID string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, conversationID: conversationID}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id         TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS turns (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		created_at      INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec("INSERT OR IGNORE INTO conversations (id) VALUES (?)", s.conversationID)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends a turn to the conversation.
func (s *Store) Record(ctx context.Context, role Role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, content) VALUES (?, ?, ?, ?)
	`, uuid.New().String(), s.conversationID, string(role), content)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "UPDATE conversations SET updated_at = strftime('%s', 'now') WHERE id = ?", s.conversationID)
	return err
}

// History returns every turn in the conversation, oldest first.
func (s *Store) History(ctx context.Context) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`, s.conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// LastN returns the most recent n turns, oldest first, for feeding
// context back into the NLU/NLG service.
func (s *Store) LastN(ctx context.Context, n int) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, s.conversationID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
