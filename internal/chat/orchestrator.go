package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deskmate/internal/metrics"
	"deskmate/internal/modelconfig"
	"deskmate/internal/providers"
	"deskmate/internal/providers/registry"
	"deskmate/internal/ratelimit"
	"deskmate/internal/storage"
)

const sessionTitleLimit = 64

// ErrNoActiveConfiguration is folded into the Result; it never crosses the
// orchestration boundary as a Go error.
var ErrNoActiveConfiguration = errors.New("no active model configuration")

type SendRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Result is the tagged outcome of a send. Failures travel inside the value;
// Send never returns a Go error to its caller.
type Result struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Mode     string `json:"mode"`
}

// Chunk is one increment of a streamed reply. The terminal chunk has Done
// set; a chunk with Error set is also terminal.
type Chunk struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

type Options struct {
	Configs      *modelconfig.Store
	DB           *storage.Store
	Modes        *ModeController
	Limiter      *ratelimit.Limiter
	SystemPrompt string
	HTTPClient   *http.Client
	MaxRetries   int
	BackoffBase  time.Duration
	Logger       zerolog.Logger
}

// Orchestrator turns a user message into a provider call: it resolves the
// active configuration, assembles the prompt with history when the mode
// allows, dispatches, and persists private-mode exchanges.
type Orchestrator struct {
	configs      *modelconfig.Store
	db           *storage.Store
	modes        *ModeController
	limiter      *ratelimit.Limiter
	systemPrompt string
	httpClient   *http.Client
	maxRetries   int
	backoffBase  time.Duration
	logger       zerolog.Logger

	build func(registry.BuildOptions) (providers.Provider, error)
	now   func() time.Time
}

func New(opts Options) *Orchestrator {
	return &Orchestrator{
		configs:      opts.Configs,
		db:           opts.DB,
		modes:        opts.Modes,
		limiter:      opts.Limiter,
		systemPrompt: opts.SystemPrompt,
		httpClient:   opts.HTTPClient,
		maxRetries:   opts.MaxRetries,
		backoffBase:  opts.BackoffBase,
		logger:       opts.Logger,
		build:        registry.Build,
		now:          time.Now,
	}
}

func failure(mode, msg string) Result {
	metrics.Global().ChatFailures.Inc()
	return Result{Success: false, Error: msg, Mode: mode}
}

// Send runs one complete exchange.
func (o *Orchestrator) Send(ctx context.Context, req SendRequest) Result {
	mode := o.modes.Mode()

	prov, cfg, chatReq, res, ok := o.prepare(ctx, mode, req)
	if !ok {
		return res
	}

	metrics.Global().ChatRequests.Inc()
	resp, err := prov.Chat(ctx, chatReq)
	if err != nil {
		o.logger.Warn().Err(err).Str("provider", cfg.Provider).Str("session", req.SessionID).Msg("chat completion failed")
		return failure(mode, err.Error())
	}

	if mode == ModePrivate {
		o.persistExchange(ctx, req, resp.Text)
	}
	return Result{Success: true, Response: resp.Text, Mode: mode}
}

// Stream runs one exchange as an ordered chunk sequence. The returned channel
// always ends with a terminal chunk and is then closed; failures are
// delivered as a terminal chunk with Error set. Cancelling ctx stops the
// stream.
func (o *Orchestrator) Stream(ctx context.Context, req SendRequest) <-chan Chunk {
	out := make(chan Chunk, 16)
	mode := o.modes.Mode()

	prov, cfg, chatReq, res, ok := o.prepare(ctx, mode, req)
	if !ok {
		out <- Chunk{Done: true, Error: res.Error}
		close(out)
		return out
	}

	metrics.Global().ChatRequests.Inc()
	src, err := prov.ChatStream(ctx, chatReq)
	if err != nil {
		metrics.Global().ChatFailures.Inc()
		o.logger.Warn().Err(err).Str("provider", cfg.Provider).Str("session", req.SessionID).Msg("chat stream failed to start")
		out <- Chunk{Done: true, Error: err.Error()}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		var full strings.Builder
		for chunk := range src {
			if chunk.Err != nil {
				metrics.Global().ChatFailures.Inc()
				o.logger.Warn().Err(chunk.Err).Str("provider", cfg.Provider).Str("session", req.SessionID).Msg("chat stream failed")
				select {
				case out <- Chunk{Done: true, Error: chunk.Err.Error()}:
				case <-ctx.Done():
				}
				return
			}
			if chunk.Done {
				if mode == ModePrivate {
					o.persistExchange(ctx, req, full.String())
				}
				select {
				case out <- Chunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}
			full.WriteString(chunk.Text)
			metrics.Global().StreamChunks.Inc()
			select {
			case out <- Chunk{Text: chunk.Text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// prepare validates the request and resolves everything needed to dispatch.
// On failure the last return is false and res carries the tagged error.
func (o *Orchestrator) prepare(ctx context.Context, mode string, req SendRequest) (providers.Provider, modelconfig.Config, providers.ChatRequest, Result, bool) {
	var zero modelconfig.Config

	if strings.TrimSpace(req.Message) == "" {
		return nil, zero, providers.ChatRequest{}, failure(mode, "message text is empty"), false
	}

	allowed, used, resetAt, err := o.limiter.Allow(ctx, req.SessionID, o.now())
	if err != nil {
		// Rate limiting is advisory; a broken redis must not take chat down.
		o.logger.Warn().Err(err).Msg("rate limiter unavailable")
	} else if !allowed {
		o.logger.Info().Str("session", req.SessionID).Int64("used", used).Time("reset", resetAt).Msg("chat rate limited")
		return nil, zero, providers.ChatRequest{}, failure(mode, "rate limit exceeded, try again later"), false
	}

	cfg, ok := o.configs.GetActive()
	if !ok {
		return nil, zero, providers.ChatRequest{}, failure(mode, ErrNoActiveConfiguration.Error()), false
	}

	prov, err := o.build(registry.BuildOptions{
		Provider:    cfg.Provider,
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		HTTPClient:  o.httpClient,
		MaxRetries:  o.maxRetries,
		BackoffBase: o.backoffBase,
	})
	if err != nil {
		return nil, zero, providers.ChatRequest{}, failure(mode, err.Error()), false
	}

	msgs, err := o.assembleMessages(ctx, mode, req)
	if err != nil {
		return nil, zero, providers.ChatRequest{}, failure(mode, err.Error()), false
	}

	return prov, cfg, providers.ChatRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}, Result{}, true
}

// assembleMessages builds the provider prompt. Stored history is included
// only in private mode; incognito sends the user message in isolation.
func (o *Orchestrator) assembleMessages(ctx context.Context, mode string, req SendRequest) ([]providers.Message, error) {
	msgs := make([]providers.Message, 0, 8)
	if o.systemPrompt != "" {
		msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: o.systemPrompt})
	}
	if mode == ModePrivate && req.SessionID != "" {
		history, err := o.db.ListMessages(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		for _, m := range history {
			msgs = append(msgs, providers.Message{Role: m.Role, Content: m.Content})
		}
	}
	msgs = append(msgs, providers.Message{Role: providers.RoleUser, Content: req.Message})
	return msgs, nil
}

// persistExchange records the user message and the reply. A storage failure
// is logged but does not fail the exchange; the reply was already produced.
func (o *Orchestrator) persistExchange(ctx context.Context, req SendRequest, reply string) {
	if req.SessionID == "" {
		return
	}
	if err := o.db.EnsureSession(ctx, req.SessionID, sessionTitle(req.Message), ModePrivate); err != nil {
		o.logger.Error().Err(err).Str("session", req.SessionID).Msg("ensure session failed")
		return
	}
	now := o.now()
	user := storage.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      providers.RoleUser,
		Content:   req.Message,
		CreatedAt: now,
	}
	assistant := storage.Message{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Role:      providers.RoleAssistant,
		Content:   reply,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := o.db.AppendMessage(ctx, user); err != nil {
		o.logger.Error().Err(err).Str("session", req.SessionID).Msg("persist user message failed")
		return
	}
	if err := o.db.AppendMessage(ctx, assistant); err != nil {
		o.logger.Error().Err(err).Str("session", req.SessionID).Msg("persist assistant message failed")
	}
}

func sessionTitle(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= sessionTitleLimit {
		return text
	}
	// Cut on a rune boundary so the stored title stays valid UTF-8.
	cut := sessionTitleLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
