package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) ListConfig(ctx context.Context) ([]ConfigEntry, error) {
	q := s.sql.Select("config_key", "config_value", "config_type", "category", "description").
		From("ai_config").
		OrderBy("category ASC", "config_key ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list config query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	out := make([]ConfigEntry, 0)
	for rows.Next() {
		var e ConfigEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Type, &e.Category, &e.Description); err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetConfigValue(ctx context.Context, key string) (string, error) {
	q := s.sql.Select("config_value").From("ai_config").Where(sq.Eq{"config_key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build get config query: %w", err)
	}
	var v string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get config %q: %w", key, err)
	}
	return v, nil
}

// SetConfigValue updates a known key only; unknown keys are a caller mistake.
func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	q := s.sql.Update("ai_config").
		Set("config_value", value).
		Where(sq.Eq{"config_key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set config query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("set config %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetConfig drops every row and reseeds the defaults.
func (s *Store) ResetConfig(ctx context.Context) error {
	delStr, delArgs, err := s.sql.Delete("ai_config").ToSql()
	if err != nil {
		return fmt.Errorf("build config reset query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, delStr, delArgs...); err != nil {
		return fmt.Errorf("reset config: %w", err)
	}
	return s.seedConfigDefaults(ctx)
}

func (s *Store) GetProfile(ctx context.Context) (UserProfile, error) {
	q := s.sql.Select("id", "name", "email", "avatar_url", "updated_at").
		From("user_profile").
		Where(sq.Eq{"id": 1})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return UserProfile{}, fmt.Errorf("build get profile query: %w", err)
	}
	var p UserProfile
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&p.ID, &p.Name, &p.Email, &p.AvatarURL, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserProfile{}, ErrNotFound
		}
		return UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *Store) UpsertProfile(ctx context.Context, p UserProfile) error {
	q := s.sql.Insert("user_profile").
		Columns("id", "name", "email", "avatar_url", "updated_at").
		Values(1, p.Name, p.Email, p.AvatarURL, time.Now().UTC()).
		Suffix("ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email, avatar_url=excluded.avatar_url, updated_at=excluded.updated_at")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build profile upsert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
