// Package memory persists chat history in the local SQLite database.
// It stores plain role/content turns; converting them into model messages
// is the agent's concern.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbgenie/dbgenie/internal/log"
)

// Message roles stored in the history table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one saved chat session.
type Session struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one stored conversation turn.
type Message struct {
	ID        int64
	SessionID uuid.UUID
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store manages chat-history persistence.
// Safe for concurrent use; database/sql serializes access.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

// New creates a Store on an opened, migrated database.
func New(db *sql.DB, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{db: db, logger: logger}, nil
}

// CreateSession creates a new chat session with a generated id.
func (s *Store) CreateSession(ctx context.Context, title string) (*Session, error) {
	id := uuid.New()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id.String(), title, now, now)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("session created", "session_id", id, "title", title)
	return &Session{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(title, ''), created_at, updated_at FROM sessions WHERE id = ?`,
		id.String())

	var (
		rawID   string
		session Session
	)
	if err := row.Scan(&rawID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parsing session id %q: %w", rawID, err)
	}
	session.ID = parsed

	return &session, nil
}

// ListSessions returns sessions ordered by most recent activity.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(title, ''), created_at, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var (
			rawID   string
			session Session
		)
		if err := rows.Scan(&rawID, &session.Title, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		parsed, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parsing session id %q: %w", rawID, err)
		}
		session.ID = parsed
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	return sessions, nil
}

// AddMessage appends one turn to a session and bumps its activity time.
func (s *Store) AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`,
		sessionID.String(), role, content); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), sessionID.String()); err != nil {
		return fmt.Errorf("updating session activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}
	return nil
}

// History returns the most recent limit turns of a session in
// chronological order.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Take the newest rows, then flip them back to chronological order.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM (
		     SELECT id, role, content, created_at
		     FROM messages WHERE session_id = ?
		     ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		sessionID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []Message
	for rows.Next() {
		m := Message{SessionID: sessionID}
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return messages, nil
}

// DeleteSession removes a session and, via cascade, its messages.
func (s *Store) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID.String())
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}
