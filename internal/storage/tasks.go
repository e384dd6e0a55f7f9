package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	q := s.sql.Select("id", "content", "status", "priority", "due_date", "created_at", "updated_at").
		From("tasks").
		OrderBy("priority DESC", "created_at DESC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]Task, 0)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Content, &t.Status, &t.Priority, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return out, nil
}

func (s *Store) InsertTask(ctx context.Context, content string, priority int, dueDate *int64) (int64, error) {
	now := time.Now().UTC()
	q := s.sql.Insert("tasks").
		Columns("content", "priority", "due_date", "created_at", "updated_at").
		Values(content, priority, dueDate, now, now)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build task insert query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		// postgres has no LastInsertId; the id is not part of the reply there.
		return 0, nil
	}
	return id, nil
}

// UpdateTask applies only the provided fields, mirroring the partial updates
// the tasks view issues.
func (s *Store) UpdateTask(ctx context.Context, id int64, status, priority *int) error {
	if status == nil && priority == nil {
		return nil
	}
	q := s.sql.Update("tasks").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})
	if status != nil {
		q = q.Set("status", *status)
	}
	if priority != nil {
		q = q.Set("priority", *priority)
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build task update query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	q := s.sql.Delete("tasks").Where(sq.Eq{"id": id})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build task delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
