package modelconfig

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deskmate/internal/catalog"
	"deskmate/internal/crypto"
	"deskmate/internal/storage"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
	DefaultTopP        = 0.9

	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 100
	MaxMaxTokens   = 16384
	MinTopP        = 0.0
	MaxTopP        = 1.0
)

// Config is a user-saved binding of a provider to credentials, model and
// sampling parameters. APIKey is plaintext here; it is sealed by the keyring
// before it reaches storage.
type Config struct {
	ID          string
	Name        string
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Enabled     bool
	CreatedAt   time.Time
}

// Patch enumerates the mutable fields. Nil means "leave unchanged" on update
// and "use the provider default" on add. ID and CreatedAt are deliberately
// absent.
type Patch struct {
	Name        *string
	Provider    *string
	APIKey      *string
	BaseURL     *string
	Model       *string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Enabled     *bool
}

// Store owns the configuration set and the active-selection pointer. Every
// mutation writes the whole set through to storage before returning.
type Store struct {
	mu       sync.Mutex
	db       *storage.Store
	keyring  *crypto.Keyring
	logger   zerolog.Logger
	configs  []Config
	activeID string
}

func NewStore(ctx context.Context, db *storage.Store, keyring *crypto.Keyring, logger zerolog.Logger) (*Store, error) {
	rows, activeID, err := db.LoadModelConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load model configs: %w", err)
	}

	configs := make([]Config, 0, len(rows))
	for _, row := range rows {
		c := Config{
			ID:          row.ID,
			Name:        row.Name,
			Provider:    row.Provider,
			BaseURL:     row.BaseURL,
			Model:       row.Model,
			Temperature: row.Temperature,
			MaxTokens:   row.MaxTokens,
			TopP:        row.TopP,
			Enabled:     row.Enabled,
			CreatedAt:   row.CreatedAt,
		}
		if row.EncAPIKey != nil && strings.TrimSpace(*row.EncAPIKey) != "" {
			key, err := keyring.DecryptString(*row.EncAPIKey)
			if err != nil {
				return nil, fmt.Errorf("decrypt api key for config %q: %w", row.ID, err)
			}
			c.APIKey = key
		}
		configs = append(configs, c)
	}

	// A stale pointer (deleted or disabled config) is dropped on load.
	if activeID != "" {
		found := false
		for _, c := range configs {
			if c.ID == activeID && c.Enabled {
				found = true
				break
			}
		}
		if !found {
			activeID = ""
		}
	}

	return &Store{
		db:       db,
		keyring:  keyring,
		logger:   logger,
		configs:  configs,
		activeID: activeID,
	}, nil
}

// List returns the configurations in insertion order.
func (s *Store) List() []Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Config, len(s.configs))
	copy(out, s.configs)
	return out
}

func (s *Store) Get(id string) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.configs {
		if c.ID == id {
			return c, nil
		}
	}
	return Config{}, ErrNotFound
}

// Add creates a configuration, filling every unset field with the provider's
// defaults, and persists the new set.
func (s *Store) Add(ctx context.Context, p Patch) (Config, error) {
	provider := catalog.CustomID
	if p.Provider != nil && strings.TrimSpace(*p.Provider) != "" {
		provider = strings.TrimSpace(*p.Provider)
	}

	entry, known := catalog.Lookup(provider)
	if !known || provider == catalog.CustomID {
		// Unknown or custom providers have no defaults to fall back on.
		if p.BaseURL == nil || strings.TrimSpace(*p.BaseURL) == "" {
			return Config{}, invalidf("baseUrl", "required for provider %q", provider)
		}
		if p.Model == nil || strings.TrimSpace(*p.Model) == "" {
			return Config{}, invalidf("model", "required for provider %q", provider)
		}
	}

	c := Config{
		ID:          uuid.NewString(),
		Provider:    provider,
		BaseURL:     entry.BaseURL,
		Model:       catalog.DefaultModel(provider),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
	applyPatch(&c, p)

	if err := validate(c); err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = append(s.configs, c)
	if err := s.persistLocked(ctx); err != nil {
		s.configs = s.configs[:len(s.configs)-1]
		return Config{}, err
	}
	s.logger.Info().Str("config_id", c.ID).Str("provider", c.Provider).Str("model", c.Model).Msg("model configuration added")
	return c, nil
}

// Update merges the patch onto an existing record. ID and CreatedAt never
// change.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.configs {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Config{}, ErrNotFound
	}

	updated := s.configs[idx]
	applyPatch(&updated, p)
	if err := validate(updated); err != nil {
		return Config{}, err
	}

	prev := s.configs[idx]
	s.configs[idx] = updated
	// Disabling the active configuration invalidates the selection.
	prevActive := s.activeID
	if s.activeID == id && !updated.Enabled {
		s.activeID = ""
	}
	if err := s.persistLocked(ctx); err != nil {
		s.configs[idx] = prev
		s.activeID = prevActive
		return Config{}, err
	}
	return updated, nil
}

// Delete removes the configuration. Absent ids are a no-op so repeated
// deletes never fail. Deleting the active configuration clears the selection.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.configs {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	prevConfigs := make([]Config, len(s.configs))
	copy(prevConfigs, s.configs)
	prevActive := s.activeID

	s.configs = append(s.configs[:idx], s.configs[idx+1:]...)
	if s.activeID == id {
		s.activeID = ""
	}
	if err := s.persistLocked(ctx); err != nil {
		s.configs = prevConfigs
		s.activeID = prevActive
		return err
	}
	s.logger.Info().Str("config_id", id).Msg("model configuration deleted")
	return nil
}

// SetActive selects the configuration used for subsequent chat calls.
func (s *Store) SetActive(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var target *Config
	for i := range s.configs {
		if s.configs[i].ID == id {
			target = &s.configs[i]
			break
		}
	}
	if target == nil {
		return ErrNotFound
	}
	if !target.Enabled {
		return invalidf("id", "configuration %q is disabled", id)
	}

	prev := s.activeID
	s.activeID = id
	if err := s.persistLocked(ctx); err != nil {
		s.activeID = prev
		return err
	}
	return nil
}

// ClearActive drops the selection without touching any configuration.
func (s *Store) ClearActive(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.activeID
	s.activeID = ""
	if err := s.persistLocked(ctx); err != nil {
		s.activeID = prev
		return err
	}
	return nil
}

// GetActive returns the active configuration, or ok=false when none is set.
func (s *Store) GetActive() (Config, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == "" {
		return Config{}, false
	}
	for _, c := range s.configs {
		if c.ID == s.activeID {
			return c, true
		}
	}
	return Config{}, false
}

func (s *Store) persistLocked(ctx context.Context) error {
	rows := make([]storage.ModelConfig, 0, len(s.configs))
	for i, c := range s.configs {
		row := storage.ModelConfig{
			ID:          c.ID,
			Name:        c.Name,
			Provider:    c.Provider,
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
			TopP:        c.TopP,
			Enabled:     c.Enabled,
			Position:    i,
			CreatedAt:   c.CreatedAt,
		}
		if strings.TrimSpace(c.APIKey) != "" {
			enc, err := s.keyring.EncryptString(c.APIKey)
			if err != nil {
				return fmt.Errorf("encrypt api key for config %q: %w", c.ID, err)
			}
			row.EncAPIKey = &enc
		}
		rows = append(rows, row)
	}
	if err := s.db.ReplaceModelConfigs(ctx, rows, s.activeID); err != nil {
		return fmt.Errorf("persist model configs: %w", err)
	}
	return nil
}

func applyPatch(c *Config, p Patch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Provider != nil && strings.TrimSpace(*p.Provider) != "" {
		c.Provider = strings.TrimSpace(*p.Provider)
	}
	if p.APIKey != nil {
		c.APIKey = *p.APIKey
	}
	if p.BaseURL != nil && strings.TrimSpace(*p.BaseURL) != "" {
		c.BaseURL = strings.TrimSpace(*p.BaseURL)
	}
	if p.Model != nil && strings.TrimSpace(*p.Model) != "" {
		c.Model = strings.TrimSpace(*p.Model)
	}
	if p.Temperature != nil {
		c.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		c.MaxTokens = *p.MaxTokens
	}
	if p.TopP != nil {
		c.TopP = *p.TopP
	}
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
}

func validate(c Config) error {
	if c.Temperature < MinTemperature || c.Temperature > MaxTemperature {
		return invalidf("temperature", "must be in [%g,%g], got %g", MinTemperature, MaxTemperature, c.Temperature)
	}
	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return invalidf("maxTokens", "must be in [%d,%d], got %d", MinMaxTokens, MaxMaxTokens, c.MaxTokens)
	}
	if c.TopP < MinTopP || c.TopP > MaxTopP {
		return invalidf("topP", "must be in [%g,%g], got %g", MinTopP, MaxTopP, c.TopP)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return invalidf("baseUrl", "must not be empty")
	}
	if strings.TrimSpace(c.Model) == "" {
		return invalidf("model", "must not be empty")
	}
	return nil
}

// DisplayName is the user label, falling back to "unnamed".
func (c Config) DisplayName() string {
	if strings.TrimSpace(c.Name) == "" {
		return "unnamed"
	}
	return c.Name
}
