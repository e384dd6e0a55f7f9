package host

import (
	"context"
	"encoding/json"
	"fmt"
)

func (s *Service) windowMinimize(ctx context.Context, payload json.RawMessage) {
	s.window.Minimize()
}

func (s *Service) windowMaximize(ctx context.Context, payload json.RawMessage) {
	s.window.Maximize()
}

func (s *Service) windowClose(ctx context.Context, payload json.RawMessage) {
	s.window.Close()
}

type dbStatementDTO struct {
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

func (s *Service) dbQuery(ctx context.Context, payload json.RawMessage) (any, error) {
	var req dbStatementDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	rows, err := s.db.RawQuery(ctx, req.Query, req.Params...)
	if err != nil {
		return nil, err
	}
	return map[string]any{"rows": rows}, nil
}

func (s *Service) dbExecute(ctx context.Context, payload json.RawMessage) (any, error) {
	var req dbStatementDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode statement: %w", err)
	}
	res, err := s.db.RawExec(ctx, req.Query, req.Params...)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":      true,
		"rowsAffected": res.RowsAffected,
		"lastId":       res.LastInsertID,
	}, nil
}
