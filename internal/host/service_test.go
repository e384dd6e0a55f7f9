package host

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"deskmate/internal/bridge"
	"deskmate/internal/chat"
	"deskmate/internal/crypto"
	"deskmate/internal/modelconfig"
	"deskmate/internal/storage"
)

type recordingWindow struct {
	minimized chan struct{}
}

func (w *recordingWindow) Minimize() { close(w.minimized) }
func (w *recordingWindow) Maximize() {}
func (w *recordingWindow) Close()    {}

func newTestHost(t *testing.T) (*bridge.Client, *Service, *storage.Store) {
	t.Helper()
	db, err := storage.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "host.db"), true, "")
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	kr, err := crypto.NewKeyring("test", map[string][]byte{"test": make([]byte, 32)})
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	store, err := modelconfig.NewStore(context.Background(), db, kr, zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	modes := chat.NewModeController(chat.ModePrivate)
	orch := chat.New(chat.Options{
		Configs: store,
		DB:      db,
		Modes:   modes,
		Logger:  zerolog.Nop(),
	})
	svc := NewService(Config{
		Store:        store,
		Orchestrator: orch,
		Modes:        modes,
		DB:           db,
		Workspace:    t.TempDir(),
		Logger:       zerolog.Nop(),
	})

	router := bridge.NewRouter()
	svc.Register(router)

	serverEnd, clientEnd := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	go bridge.NewServer(router, zerolog.Nop()).ServeConn(ctx, serverEnd)
	client := bridge.NewClient(clientEnd)
	t.Cleanup(func() {
		cancel()
		_ = client.Close()
	})
	return client, svc, db
}

func TestModelConfigLifecycleOverBridge(t *testing.T) {
	client, _, _ := newTestHost(t)
	ctx := context.Background()

	var added modelConfigDTO
	err := client.Invoke(ctx, bridge.ChanModelConfigAdd, map[string]any{
		"provider": "openai",
		"apiKey":   "sk-test",
	}, &added)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.BaseURL != "https://api.openai.com/v1" || added.Model != "gpt-4o" {
		t.Fatalf("provider defaults missing: %#v", added)
	}
	if !added.HasAPIKey {
		t.Fatalf("hasApiKey should be set")
	}

	var list []modelConfigDTO
	if err := client.Invoke(ctx, bridge.ChanModelConfigList, nil, &list); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != added.ID {
		t.Fatalf("unexpected list %#v", list)
	}

	var ok okPayload
	if err := client.Invoke(ctx, bridge.ChanModelConfigSetActive, idPayload{ID: added.ID}, &ok); err != nil {
		t.Fatalf("set active: %v", err)
	}

	var active activeConfigDTO
	if err := client.Invoke(ctx, bridge.ChanModelConfigGetActive, nil, &active); err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.Active == nil || active.Active.ID != added.ID {
		t.Fatalf("active config missing: %#v", active)
	}

	if err := client.Invoke(ctx, bridge.ChanModelConfigDelete, idPayload{ID: added.ID}, &ok); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := client.Invoke(ctx, bridge.ChanModelConfigGetActive, nil, &active); err != nil {
		t.Fatalf("get active after delete: %v", err)
	}
	if active.Active != nil {
		t.Fatalf("deleting the active config must clear the selection")
	}
}

func TestChatFailureTravelsInsideResult(t *testing.T) {
	client, _, _ := newTestHost(t)

	var res chat.Result
	err := client.Invoke(context.Background(), bridge.ChanChatComplete, chat.SendRequest{SessionID: "s1", Message: "hi"}, &res)
	if err != nil {
		t.Fatalf("chat failures must not become bridge errors: %v", err)
	}
	if res.Success {
		t.Fatalf("expected failure without an active configuration")
	}
	if res.Error != "no active model configuration" {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestChatPayloadUsesMessageField(t *testing.T) {
	client, _, _ := newTestHost(t)
	ctx := context.Background()

	var res chat.Result
	payload := json.RawMessage(`{"sessionId":"s1","message":"hi"}`)
	if err := client.Invoke(ctx, bridge.ChanChatComplete, payload, &res); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Error != "no active model configuration" {
		t.Fatalf("message field was not decoded: %#v", res)
	}

	// A payload without "message" reads as empty input.
	payload = json.RawMessage(`{"sessionId":"s1","text":"hi"}`)
	if err := client.Invoke(ctx, bridge.ChanChatComplete, payload, &res); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Error != "message text is empty" {
		t.Fatalf("unexpected error %q", res.Error)
	}
}

func TestChatStreamFailureIsTerminalChunk(t *testing.T) {
	client, _, _ := newTestHost(t)

	sub, err := client.Stream(context.Background(), bridge.ChanChatStream, chat.SendRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer sub.Close()

	var sawErrorChunk bool
	for ev := range sub.Events() {
		if ev.Err != nil {
			t.Fatalf("unexpected bridge error: %v", ev.Err)
		}
		if ev.Done {
			continue
		}
		var c chat.Chunk
		if err := json.Unmarshal(ev.Payload, &c); err != nil {
			t.Fatalf("decode chunk: %v", err)
		}
		if c.Done && c.Error != "" {
			sawErrorChunk = true
		}
	}
	if !sawErrorChunk {
		t.Fatalf("expected terminal error chunk")
	}
}

func TestModeRoundTripOverBridge(t *testing.T) {
	client, _, _ := newTestHost(t)
	ctx := context.Background()

	var mode modePayload
	if err := client.Invoke(ctx, bridge.ChanAIGetMode, nil, &mode); err != nil {
		t.Fatalf("get mode: %v", err)
	}
	if mode.Mode != chat.ModePrivate {
		t.Fatalf("expected private initial mode, got %q", mode.Mode)
	}

	if err := client.Invoke(ctx, bridge.ChanAISetMode, modePayload{Mode: chat.ModeIncognito}, &mode); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if mode.Mode != chat.ModeIncognito {
		t.Fatalf("mode not switched: %q", mode.Mode)
	}

	if err := client.Invoke(ctx, bridge.ChanAISetMode, modePayload{Mode: "stealth"}, nil); err == nil {
		t.Fatalf("unknown mode must be rejected")
	}
}

func TestFileOperationsStayInWorkspace(t *testing.T) {
	client, _, _ := newTestHost(t)
	ctx := context.Background()

	var ok okPayload
	if err := client.Invoke(ctx, bridge.ChanFSWriteFile, fileContentDTO{Path: "notes/todo.txt", Content: "hello"}, &ok); err != nil {
		t.Fatalf("write file: %v", err)
	}

	var file fileContentDTO
	if err := client.Invoke(ctx, bridge.ChanFSReadFile, pathPayload{Path: "notes/todo.txt"}, &file); err != nil {
		t.Fatalf("read file: %v", err)
	}
	if file.Content != "hello" {
		t.Fatalf("unexpected content %q", file.Content)
	}

	var entries []dirEntryDTO
	if err := client.Invoke(ctx, bridge.ChanFSReadDir, pathPayload{Path: "notes"}, &entries); err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "todo.txt" || entries[0].IsDir {
		t.Fatalf("unexpected entries %#v", entries)
	}

	err := client.Invoke(ctx, bridge.ChanFSReadFile, pathPayload{Path: "../../etc/passwd"}, nil)
	if err == nil || !strings.Contains(err.Error(), "escapes") {
		t.Fatalf("traversal must be rejected, got %v", err)
	}
}

func TestSelectFolderReturnsWorkspaceRoot(t *testing.T) {
	client, svc, _ := newTestHost(t)

	var res pathPayload
	if err := client.Invoke(context.Background(), bridge.ChanFSSelectFolder, nil, &res); err != nil {
		t.Fatalf("select folder: %v", err)
	}
	if res.Path != svc.workspace {
		t.Fatalf("expected workspace root %q, got %q", svc.workspace, res.Path)
	}
}

func TestWindowNotify(t *testing.T) {
	client, svc, _ := newTestHost(t)
	w := &recordingWindow{minimized: make(chan struct{})}
	svc.window = w

	if err := client.Notify(bridge.ChanWindowMinimize, nil); err != nil {
		t.Fatalf("notify: %v", err)
	}
	select {
	case <-w.minimized:
	case <-time.After(2 * time.Second):
		t.Fatalf("window command never arrived")
	}
}

func TestDBPassthrough(t *testing.T) {
	client, _, _ := newTestHost(t)
	ctx := context.Background()

	var execRes struct {
		RowsAffected int64 `json:"rowsAffected"`
	}
	err := client.Invoke(ctx, bridge.ChanDBExecute, dbStatementDTO{
		Query:  "INSERT INTO tasks (content, status, priority) VALUES (?, 0, 1)",
		Params: []any{"write the report"},
	}, &execRes)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if execRes.RowsAffected != 1 {
		t.Fatalf("expected one affected row, got %d", execRes.RowsAffected)
	}

	var queryRes struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := client.Invoke(ctx, bridge.ChanDBQuery, dbStatementDTO{Query: "SELECT content FROM tasks"}, &queryRes); err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(queryRes.Rows) != 1 || queryRes.Rows[0]["content"] != "write the report" {
		t.Fatalf("unexpected rows %#v", queryRes.Rows)
	}

	if err := client.Invoke(ctx, bridge.ChanDBQuery, dbStatementDTO{Query: "DROP TABLE tasks"}, nil); err == nil {
		t.Fatalf("non-select query must be rejected")
	}
}

func TestSettingsAndProfile(t *testing.T) {
	client, _, _ := newTestHost(t)
	ctx := context.Background()

	var snap configSnapshotDTO
	if err := client.Invoke(ctx, bridge.ChanAIConfigGet, nil, &snap); err != nil {
		t.Fatalf("config get: %v", err)
	}
	if len(snap.Entries) == 0 || len(snap.Categories) == 0 {
		t.Fatalf("expected seeded config entries, got %#v", snap)
	}
	if snap.Config["model_name"] == "" {
		t.Fatalf("config map missing model_name")
	}

	var ok okPayload
	if err := client.Invoke(ctx, bridge.ChanAIConfigSet, configSetDTO{Key: "model_name", Value: "gpt-4o-mini"}, &ok); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if err := client.Invoke(ctx, bridge.ChanAIConfigSet, configSetDTO{Key: "does_not_exist", Value: "x"}, nil); err == nil {
		t.Fatalf("unknown config key must be rejected")
	}

	if err := client.Invoke(ctx, bridge.ChanAIConfigReset, nil, &snap); err != nil {
		t.Fatalf("config reset: %v", err)
	}
	if snap.Config["model_name"] != "gpt-4o" {
		t.Fatalf("reset did not restore default, got %q", snap.Config["model_name"])
	}

	if err := client.Invoke(ctx, bridge.ChanUserProfileSet, profileDTO{Name: "Ada", Email: "ada@example.com"}, &ok); err != nil {
		t.Fatalf("profile set: %v", err)
	}
	newEmail := "ada@lovelace.dev"
	if err := client.Invoke(ctx, bridge.ChanUserProfileUpdate, profilePatchDTO{Email: &newEmail}, &ok); err != nil {
		t.Fatalf("profile update: %v", err)
	}
	var profile profileDTO
	if err := client.Invoke(ctx, bridge.ChanUserProfileGet, nil, &profile); err != nil {
		t.Fatalf("profile get: %v", err)
	}
	if profile.Name != "Ada" || profile.Email != newEmail {
		t.Fatalf("unexpected profile %#v", profile)
	}
}
