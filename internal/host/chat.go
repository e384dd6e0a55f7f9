package host

import (
	"context"
	"encoding/json"
	"fmt"

	"deskmate/internal/chat"
	"deskmate/internal/modelconfig"
)

func (s *Service) chatComplete(ctx context.Context, payload json.RawMessage) (any, error) {
	var req chat.SendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode chat request: %w", err)
	}
	// Failures are carried inside the result, not as a bridge error.
	return s.orchestrator.Send(ctx, req), nil
}

func (s *Service) chatStream(ctx context.Context, payload json.RawMessage, emit func(any) error) error {
	var req chat.SendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decode chat request: %w", err)
	}
	for chunk := range s.orchestrator.Stream(ctx, req) {
		if err := emit(chunk); err != nil {
			return err
		}
		if chunk.Done {
			break
		}
	}
	return nil
}

type modePayload struct {
	Mode string `json:"mode"`
}

type modeResultPayload struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode"`
}

func (s *Service) setMode(ctx context.Context, payload json.RawMessage) (any, error) {
	var req modePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode mode request: %w", err)
	}
	if err := s.modes.SetMode(req.Mode); err != nil {
		return nil, err
	}
	return modeResultPayload{Success: true, Mode: s.modes.Mode()}, nil
}

func (s *Service) getMode(ctx context.Context, payload json.RawMessage) (any, error) {
	return modePayload{Mode: s.modes.Mode()}, nil
}

// modelConfigDTO is the wire shape of a configuration. The API key itself
// never crosses the bridge; the shell only learns whether one is set.
type modelConfigDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Provider    string  `json:"provider"`
	HasAPIKey   bool    `json:"hasApiKey"`
	BaseURL     string  `json:"baseUrl"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	TopP        float64 `json:"topP"`
	Enabled     bool    `json:"enabled"`
	CreatedAt   int64   `json:"createdAt"`
}

type modelConfigPatchDTO struct {
	Name        *string  `json:"name"`
	Provider    *string  `json:"provider"`
	APIKey      *string  `json:"apiKey"`
	BaseURL     *string  `json:"baseUrl"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"maxTokens"`
	TopP        *float64 `json:"topP"`
	Enabled     *bool    `json:"enabled"`
}

func toDTO(c modelconfig.Config) modelConfigDTO {
	return modelConfigDTO{
		ID:          c.ID,
		Name:        c.Name,
		Provider:    c.Provider,
		HasAPIKey:   c.APIKey != "",
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		TopP:        c.TopP,
		Enabled:     c.Enabled,
		CreatedAt:   c.CreatedAt.UnixMilli(),
	}
}

func toPatch(d modelConfigPatchDTO) modelconfig.Patch {
	return modelconfig.Patch{
		Name:        d.Name,
		Provider:    d.Provider,
		APIKey:      d.APIKey,
		BaseURL:     d.BaseURL,
		Model:       d.Model,
		Temperature: d.Temperature,
		MaxTokens:   d.MaxTokens,
		TopP:        d.TopP,
		Enabled:     d.Enabled,
	}
}

func (s *Service) modelConfigList(ctx context.Context, payload json.RawMessage) (any, error) {
	configs := s.store.List()
	out := make([]modelConfigDTO, 0, len(configs))
	for _, c := range configs {
		out = append(out, toDTO(c))
	}
	return out, nil
}

func (s *Service) modelConfigAdd(ctx context.Context, payload json.RawMessage) (any, error) {
	var req modelConfigPatchDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c, err := s.store.Add(ctx, toPatch(req))
	if err != nil {
		return nil, err
	}
	return toDTO(c), nil
}

type modelConfigUpdateDTO struct {
	ID string `json:"id"`
	modelConfigPatchDTO
}

func (s *Service) modelConfigUpdate(ctx context.Context, payload json.RawMessage) (any, error) {
	var req modelConfigUpdateDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode config update: %w", err)
	}
	c, err := s.store.Update(ctx, req.ID, toPatch(req.modelConfigPatchDTO))
	if err != nil {
		return nil, err
	}
	return toDTO(c), nil
}

type idPayload struct {
	ID string `json:"id"`
}

type okPayload struct {
	Success bool `json:"success"`
}

func (s *Service) modelConfigDelete(ctx context.Context, payload json.RawMessage) (any, error) {
	var req idPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode delete request: %w", err)
	}
	if err := s.store.Delete(ctx, req.ID); err != nil {
		return nil, err
	}
	return okPayload{Success: true}, nil
}

func (s *Service) modelConfigSetActive(ctx context.Context, payload json.RawMessage) (any, error) {
	var req idPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode set-active request: %w", err)
	}
	if req.ID == "" {
		if err := s.store.ClearActive(ctx); err != nil {
			return nil, err
		}
		return okPayload{Success: true}, nil
	}
	if err := s.store.SetActive(ctx, req.ID); err != nil {
		return nil, err
	}
	return okPayload{Success: true}, nil
}

type activeConfigDTO struct {
	Active *modelConfigDTO `json:"active"`
}

func (s *Service) modelConfigGetActive(ctx context.Context, payload json.RawMessage) (any, error) {
	c, ok := s.store.GetActive()
	if !ok {
		return activeConfigDTO{}, nil
	}
	dto := toDTO(c)
	return activeConfigDTO{Active: &dto}, nil
}
