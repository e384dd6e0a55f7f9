package modelconfig

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"deskmate/internal/crypto"
	"deskmate/internal/storage"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(t *testing.T) (*Store, *storage.Store, *crypto.Keyring) {
	t.Helper()
	db, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "test.db"), true, "")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	kr, err := crypto.NewKeyring("test", map[string][]byte{"test": bytes.Repeat([]byte{0x42}, 32)})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}

	s, err := NewStore(context.Background(), db, kr, zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s, db, kr
}

func TestAddFillsProviderDefaults(t *testing.T) {
	s, _, _ := newTestStore(t)

	c, err := s.Add(context.Background(), Patch{Provider: ptr("openai")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("unexpected base url %q", c.BaseURL)
	}
	if c.Model != "gpt-4o" {
		t.Fatalf("unexpected model %q", c.Model)
	}
	if c.Temperature != 0.7 || c.MaxTokens != 4096 || c.TopP != 0.9 {
		t.Fatalf("unexpected sampling defaults %g/%d/%g", c.Temperature, c.MaxTokens, c.TopP)
	}
	if !c.Enabled {
		t.Fatalf("expected enabled by default")
	}
	if c.ID == "" || c.CreatedAt.IsZero() {
		t.Fatalf("missing generated id or timestamp")
	}

	list := s.List()
	if len(list) != 1 || list[0].ID != c.ID {
		t.Fatalf("list does not contain the new record: %#v", list)
	}
}

func TestAddUnknownProviderRequiresExplicitFields(t *testing.T) {
	s, _, _ := newTestStore(t)

	_, err := s.Add(context.Background(), Patch{Provider: ptr("some-startup")})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	c, err := s.Add(context.Background(), Patch{
		Provider: ptr("some-startup"),
		BaseURL:  ptr("https://llm.startup.dev/v1"),
		Model:    ptr("startup-1"),
	})
	if err != nil {
		t.Fatalf("add with explicit fields: %v", err)
	}
	if c.BaseURL != "https://llm.startup.dev/v1" || c.Model != "startup-1" {
		t.Fatalf("explicit fields not applied: %#v", c)
	}
}

func TestUpdateMergesAndValidates(t *testing.T) {
	s, _, _ := newTestStore(t)
	c, err := s.Add(context.Background(), Patch{Provider: ptr("openai")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := s.Update(context.Background(), c.ID, Patch{
		Name:        ptr("work"),
		Temperature: ptr(1.2),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "work" || updated.Temperature != 1.2 {
		t.Fatalf("patch not applied: %#v", updated)
	}
	if updated.Model != "gpt-4o" {
		t.Fatalf("unpatched field changed: %q", updated.Model)
	}
	if updated.ID != c.ID || !updated.CreatedAt.Equal(c.CreatedAt) {
		t.Fatalf("id or createdAt changed")
	}

	if _, err := s.Update(context.Background(), c.ID, Patch{Temperature: ptr(3.5)}); err == nil {
		t.Fatalf("expected range validation error")
	}
	if _, err := s.Update(context.Background(), "missing", Patch{Name: ptr("x")}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _, _ := newTestStore(t)
	c, err := s.Add(context.Background(), Patch{Provider: ptr("openai")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := s.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("record still present after delete")
	}
}

func TestDeleteActiveClearsSelection(t *testing.T) {
	s, _, _ := newTestStore(t)
	c, err := s.Add(context.Background(), Patch{Provider: ptr("openai")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetActive(context.Background(), c.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if _, ok := s.GetActive(); !ok {
		t.Fatalf("expected active configuration")
	}

	if err := s.Delete(context.Background(), c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.GetActive(); ok {
		t.Fatalf("selection must be cleared after deleting the active config")
	}
}

func TestSetActiveRejectsDisabledAndMissing(t *testing.T) {
	s, _, _ := newTestStore(t)
	c, err := s.Add(context.Background(), Patch{Provider: ptr("openai"), Enabled: ptr(false)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var ve *ValidationError
	if err := s.SetActive(context.Background(), c.ID); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for disabled config, got %v", err)
	}
	if err := s.SetActive(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDisablingActiveConfigClearsSelection(t *testing.T) {
	s, _, _ := newTestStore(t)
	c, err := s.Add(context.Background(), Patch{Provider: ptr("openai")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetActive(context.Background(), c.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}

	if _, err := s.Update(context.Background(), c.ID, Patch{Enabled: ptr(false)}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, ok := s.GetActive(); ok {
		t.Fatalf("disabled configuration must not stay active")
	}
}

func TestPersistenceSurvivesReload(t *testing.T) {
	s, db, kr := newTestStore(t)
	c, err := s.Add(context.Background(), Patch{
		Provider: ptr("openai"),
		Name:     ptr("work"),
		APIKey:   ptr("sk-live-secret"),
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetActive(context.Background(), c.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}

	// api keys must not be stored in the clear
	rows, _, err := db.LoadModelConfigs(context.Background())
	if err != nil {
		t.Fatalf("load raw rows: %v", err)
	}
	if len(rows) != 1 || rows[0].EncAPIKey == nil {
		t.Fatalf("expected one row with encrypted key")
	}
	if *rows[0].EncAPIKey == "sk-live-secret" {
		t.Fatalf("api key persisted in plaintext")
	}

	reloaded, err := NewStore(context.Background(), db, kr, zerolog.Nop())
	if err != nil {
		t.Fatalf("reload store: %v", err)
	}
	got, err := reloaded.Get(c.ID)
	if err != nil {
		t.Fatalf("get after reload: %v", err)
	}
	if got.APIKey != "sk-live-secret" || got.Name != "work" {
		t.Fatalf("reload mismatch: %#v", got)
	}
	active, ok := reloaded.GetActive()
	if !ok || active.ID != c.ID {
		t.Fatalf("active selection lost across reload")
	}
}
