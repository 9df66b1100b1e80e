// Package chatstore persists chat sessions and messages under
// per-user ownership constraints and serves bounded history queries
// (spec §4.9). Grounded on original_source's agent_host.py (session
// fetch-or-create, append-and-reload-history) and chat.py (session
// create-or-fetch-or-deny).
package chatstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sender is one of the three authoritative sender kinds (spec §3).
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// ErrAccessDenied is returned when a session_id is supplied but is not
// owned by the caller's user_id (spec §4.9, §8 scenario 4).
var ErrAccessDenied = errors.New("not found or access denied")

// Session is a chat session owned exclusively by one user (spec §3).
type Session struct {
	ID        uuid.UUID
	UserID    string
	CreatedAt time.Time
}

// Message is a single chat turn belonging to exactly one session.
type Message struct {
	ID        int64
	SessionID uuid.UUID
	Sender    Sender
	Text      string
	CreatedAt time.Time
}

// Store implements the Chat Store operations from spec §4.9. All
// writes occur within a single transaction per message.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateOrAppend creates a new session owned by userID when sessionID
// is nil, or verifies ownership of an existing one, then appends the
// user message. Returns ErrAccessDenied if sessionID belongs to
// another user.
func (s *Store) CreateOrAppend(ctx context.Context, userID string, sessionID *uuid.UUID, text string) (uuid.UUID, Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var sid uuid.UUID
	if sessionID == nil {
		err = tx.QueryRow(ctx,
			`INSERT INTO chat_sessions (user_id) VALUES ($1) RETURNING id`, userID,
		).Scan(&sid)
		if err != nil {
			return uuid.Nil, Message{}, fmt.Errorf("create session: %w", err)
		}
	} else {
		var owner string
		err = tx.QueryRow(ctx, `SELECT user_id FROM chat_sessions WHERE id = $1`, *sessionID).Scan(&owner)
		if err == pgx.ErrNoRows {
			return uuid.Nil, Message{}, ErrAccessDenied
		}
		if err != nil {
			return uuid.Nil, Message{}, fmt.Errorf("lookup session: %w", err)
		}
		if owner != userID {
			return uuid.Nil, Message{}, ErrAccessDenied
		}
		sid = *sessionID
	}

	msg, err := appendMessage(ctx, tx, sid, SenderUser, text)
	if err != nil {
		return uuid.Nil, Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, Message{}, fmt.Errorf("commit: %w", err)
	}
	return sid, msg, nil
}

// AppendAssistant appends an assistant message to an existing session.
func (s *Store) AppendAssistant(ctx context.Context, sessionID uuid.UUID, text string) (Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	msg, err := appendMessage(ctx, tx, sessionID, SenderAssistant, text)
	if err != nil {
		return Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

func appendMessage(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, sender Sender, text string) (Message, error) {
	msg := Message{SessionID: sessionID, Sender: sender, Text: text}
	err := tx.QueryRow(ctx,
		`INSERT INTO chat_messages (session_id, sender, message) VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		sessionID, string(sender), text,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns at most limit messages for sessionID in chronological
// order. It queries newest-first then reverses, bounding the scan
// (spec §4.9, §8 "History bound").
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, sender, message, created_at FROM chat_messages
		 WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var sender string
		if err := rows.Scan(&m.ID, &m.SessionID, &sender, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = Sender(sender)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SessionOwner returns the owning user_id for sessionID, or
// ErrAccessDenied if it does not exist.
func (s *Store) SessionOwner(ctx context.Context, sessionID uuid.UUID) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT user_id FROM chat_sessions WHERE id = $1`, sessionID).Scan(&owner)
	if err == pgx.ErrNoRows {
		return "", ErrAccessDenied
	}
	if err != nil {
		return "", fmt.Errorf("lookup session owner: %w", err)
	}
	return owner, nil
}
