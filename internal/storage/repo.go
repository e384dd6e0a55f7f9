package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

const stateActiveModelConfig = "active_model_config_id"

// LoadModelConfigs returns the persisted configuration set in position order
// plus the active selection id ("" when none is set).
func (s *Store) LoadModelConfigs(ctx context.Context) ([]ModelConfig, string, error) {
	q := s.sql.Select("id", "name", "provider", "enc_api_key", "base_url", "model",
		"temperature", "max_tokens", "top_p", "enabled", "position", "created_at").
		From("model_configs").
		OrderBy("position ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, "", fmt.Errorf("build load model configs query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, "", fmt.Errorf("load model configs: %w", err)
	}
	defer rows.Close()

	out := make([]ModelConfig, 0)
	for rows.Next() {
		var mc ModelConfig
		var encKey sql.NullString
		if err := rows.Scan(
			&mc.ID,
			&mc.Name,
			&mc.Provider,
			&encKey,
			&mc.BaseURL,
			&mc.Model,
			&mc.Temperature,
			&mc.MaxTokens,
			&mc.TopP,
			&mc.Enabled,
			&mc.Position,
			&mc.CreatedAt,
		); err != nil {
			return nil, "", fmt.Errorf("scan model config row: %w", err)
		}
		if encKey.Valid {
			mc.EncAPIKey = &encKey.String
		}
		out = append(out, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate model config rows: %w", err)
	}

	activeID, err := s.GetState(ctx, stateActiveModelConfig)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	return out, activeID, nil
}

// ReplaceModelConfigs persists the whole configuration set and the active id
// in a single transaction. Callers treat this as the write-through step after
// every mutation, so a crash between calls never leaves a partial set.
func (s *Store) ReplaceModelConfigs(ctx context.Context, configs []ModelConfig, activeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin model config tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	delStr, delArgs, err := s.sql.Delete("model_configs").ToSql()
	if err != nil {
		return fmt.Errorf("build model config delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, delStr, delArgs...); err != nil {
		return fmt.Errorf("clear model configs: %w", err)
	}

	for i, mc := range configs {
		q := s.sql.Insert("model_configs").
			Columns("id", "name", "provider", "enc_api_key", "base_url", "model",
				"temperature", "max_tokens", "top_p", "enabled", "position", "created_at").
			Values(mc.ID, mc.Name, mc.Provider, mc.EncAPIKey, mc.BaseURL, mc.Model,
				mc.Temperature, mc.MaxTokens, mc.TopP, mc.Enabled, i, mc.CreatedAt)
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build model config insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert model config %q: %w", mc.ID, err)
		}
	}

	stateStr, stateArgs, err := s.sql.Insert("app_state").
		Columns("state_key", "state_value").
		Values(stateActiveModelConfig, activeID).
		Suffix("ON CONFLICT(state_key) DO UPDATE SET state_value=excluded.state_value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build active id upsert query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stateStr, stateArgs...); err != nil {
		return fmt.Errorf("persist active id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit model config tx: %w", err)
	}
	return nil
}

func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	q := s.sql.Select("state_value").From("app_state").Where(sq.Eq{"state_key": key})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build get state query: %w", err)
	}
	var v string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get state %q: %w", key, err)
	}
	return v, nil
}

func (s *Store) SetState(ctx context.Context, key, value string) error {
	q := s.sql.Insert("app_state").
		Columns("state_key", "state_value").
		Values(key, value).
		Suffix("ON CONFLICT(state_key) DO UPDATE SET state_value=excluded.state_value")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build set state query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}
