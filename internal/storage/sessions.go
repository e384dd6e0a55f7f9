package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// EnsureSession creates the session row if it does not exist yet. An existing
// session keeps its original title and mode.
func (s *Store) EnsureSession(ctx context.Context, id, title, mode string) error {
	if mode == "" {
		mode = "private"
	}
	q := s.sql.Insert("sessions").
		Columns("id", "title", "mode").
		Values(id, title, mode).
		Suffix("ON CONFLICT(id) DO NOTHING")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build ensure session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

// AppendMessage inserts the message and bumps the session's updated_at in the
// same transaction, preserving the append-only insertion order.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insStr, insArgs, err := s.sql.Insert("messages").
		Columns("id", "session_id", "role", "content", "created_at").
		Values(m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build message insert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insStr, insArgs...); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	updStr, updArgs, err := s.sql.Update("sessions").
		Set("updated_at", m.CreatedAt).
		Where(sq.Eq{"id": m.SessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session touch query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updStr, updArgs...); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	q := s.sql.Select("id", "title", "mode", "created_at", "updated_at").
		From("sessions").
		OrderBy("updated_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.Mode, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (Session, []Message, error) {
	q := s.sql.Select("id", "title", "mode", "created_at", "updated_at").
		From("sessions").
		Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Session{}, nil, fmt.Errorf("build get session query: %w", err)
	}
	var sess Session
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&sess.ID, &sess.Title, &sess.Mode, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, nil, ErrNotFound
		}
		return Session{}, nil, fmt.Errorf("get session: %w", err)
	}

	msgs, err := s.ListMessages(ctx, id)
	if err != nil {
		return Session{}, nil, err
	}
	return sess, msgs, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	q := s.sql.Select("id", "session_id", "role", "content", "created_at").
		From("messages").
		Where(sq.Eq{"session_id": sessionID}).
		OrderBy("created_at ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list messages query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	msgStr, msgArgs, err := s.sql.Delete("messages").Where(sq.Eq{"session_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete messages query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, msgStr, msgArgs...); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}

	sessStr, sessArgs, err := s.sql.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sessStr, sessArgs...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
