package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), true, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestOpenCreatesDataDir(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "nested", "test.db")
	s, err := Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open with missing parent dir: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dsn); err != nil {
		t.Fatalf("stat db file: %v", err)
	}
}

func TestSqlitePath(t *testing.T) {
	cases := map[string]string{
		"/home/u/.deskmate/deskmate.db":          "/home/u/.deskmate/deskmate.db",
		"file:/home/u/.deskmate/deskmate.db":     "/home/u/.deskmate/deskmate.db",
		"file:/tmp/x.db?_pragma=foreign_keys(1)": "/tmp/x.db",
	}
	for dsn, want := range cases {
		if got := sqlitePath(dsn); got != want {
			t.Fatalf("sqlitePath(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestReplaceModelConfigsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	configs := []ModelConfig{
		{
			ID:          "c1",
			Name:        "work",
			Provider:    "openai",
			EncAPIKey:   strPtr(`{"key_id":"k1","nonce":"...","ciphertext":"..."}`),
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			Temperature: 0.7,
			MaxTokens:   4096,
			TopP:        0.9,
			Enabled:     true,
			Position:    0,
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
		},
		{
			ID:          "c2",
			Provider:    "ollama",
			BaseURL:     "http://127.0.0.1:11434/v1",
			Model:       "llama3.1",
			Temperature: 1.0,
			MaxTokens:   2048,
			TopP:        1.0,
			Enabled:     false,
			Position:    1,
			CreatedAt:   time.Now().UTC().Truncate(time.Second),
		},
	}
	if err := s.ReplaceModelConfigs(ctx, configs, "c1"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, activeID, err := s.LoadModelConfigs(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if activeID != "c1" {
		t.Fatalf("active id %q", activeID)
	}
	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Fatalf("unexpected rows %#v", got)
	}
	if got[0].EncAPIKey == nil || got[1].EncAPIKey != nil {
		t.Fatalf("api key encryption column mishandled")
	}
	if got[1].Enabled {
		t.Fatalf("enabled flag lost")
	}

	// replace is all-or-nothing: a second call fully supersedes the first
	if err := s.ReplaceModelConfigs(ctx, configs[:1], ""); err != nil {
		t.Fatalf("second replace: %v", err)
	}
	got, activeID, err = s.LoadModelConfigs(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got) != 1 || activeID != "" {
		t.Fatalf("replace did not supersede: %d rows, active %q", len(got), activeID)
	}
}

func TestSessionAppendKeepsOrderAndBumpsUpdatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnsureSession(ctx, "s1", "hello", "private"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// second ensure keeps the original title
	if err := s.EnsureSession(ctx, "s1", "other title", "incognito"); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i, content := range []string{"one", "two", "three"} {
		err := s.AppendMessage(ctx, Message{
			ID:        content,
			SessionID: "s1",
			Role:      "user",
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append %q: %v", content, err)
		}
	}

	msgs, err := s.ListMessages(ctx, "s1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 3 || msgs[0].Content != "one" || msgs[2].Content != "three" {
		t.Fatalf("order lost: %#v", msgs)
	}

	sess, _, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Title != "hello" || sess.Mode != "private" {
		t.Fatalf("ensure overwrote existing session: %#v", sess)
	}
	if !sess.UpdatedAt.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("updated_at not bumped to last append: %v", sess.UpdatedAt)
	}

	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, _, err := s.GetSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	msgs, err = s.ListMessages(ctx, "s1")
	if err != nil || len(msgs) != 0 {
		t.Fatalf("messages not deleted with session: %v %#v", err, msgs)
	}
}

func TestTaskCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.InsertTask(ctx, "write the report", 2, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	status := 1
	if err := s.UpdateTask(ctx, id, &status, nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.UpdateTask(ctx, 9999, &status, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Status != 1 || tasks[0].Priority != 2 {
		t.Fatalf("unexpected tasks %#v", tasks)
	}

	if err := s.DeleteTask(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	tasks, _ = s.ListTasks(ctx)
	if len(tasks) != 0 {
		t.Fatalf("task not deleted")
	}
}

func TestConfigDefaultsAndReset(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	val, err := s.GetConfigValue(ctx, "model_name")
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	if val != "gpt-4o" {
		t.Fatalf("unexpected seeded model %q", val)
	}

	if err := s.SetConfigValue(ctx, "model_name", "gpt-4o-mini"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetConfigValue(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown key, got %v", err)
	}

	if err := s.ResetConfig(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	val, err = s.GetConfigValue(ctx, "model_name")
	if err != nil || val != "gpt-4o" {
		t.Fatalf("reset did not restore default: %q %v", val, err)
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetState(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetState(ctx, "active", "c1"); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := s.SetState(ctx, "active", "c2"); err != nil {
		t.Fatalf("overwrite state: %v", err)
	}
	val, err := s.GetState(ctx, "active")
	if err != nil || val != "c2" {
		t.Fatalf("state round trip: %q %v", val, err)
	}
}

func TestRawQueryRejectsMutations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.RawQuery(ctx, "DELETE FROM tasks"); err == nil {
		t.Fatalf("mutation must be rejected")
	}

	res, err := s.RawExec(ctx, "INSERT INTO tasks (content, status, priority) VALUES (?, 0, 1)", "x")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if res.RowsAffected != 1 {
		t.Fatalf("affected %d", res.RowsAffected)
	}

	rows, err := s.RawQuery(ctx, "SELECT content FROM tasks")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["content"] != "x" {
		t.Fatalf("unexpected rows %#v", rows)
	}
}
