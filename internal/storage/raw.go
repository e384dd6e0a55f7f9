package storage

import (
	"context"
	"fmt"
	"strings"
)

type RawExecResult struct {
	RowsAffected int64
	LastInsertID int64
}

// RawQuery runs a caller-supplied read statement and returns every row as a
// column-name map. Only SELECT statements are accepted; mutations go through
// RawExec so their results stay observable.
func (s *Store) RawQuery(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		return nil, fmt.Errorf("raw query must be a SELECT statement")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("raw query columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan raw row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw rows: %w", err)
	}
	return out, nil
}

// RawExec runs a caller-supplied mutating statement.
func (s *Store) RawExec(ctx context.Context, query string, args ...any) (RawExecResult, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return RawExecResult{}, fmt.Errorf("raw exec: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		lastID = 0
	}
	return RawExecResult{RowsAffected: affected, LastInsertID: lastID}, nil
}
