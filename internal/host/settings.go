package host

import (
	"context"
	"encoding/json"
	"fmt"

	"deskmate/internal/storage"
)

type configEntryDTO struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (s *Service) listConfigDTOs(ctx context.Context) ([]configEntryDTO, error) {
	entries, err := s.db.ListConfig(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]configEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, configEntryDTO{
			Key:         e.Key,
			Value:       e.Value,
			Type:        e.Type,
			Category:    e.Category,
			Description: e.Description,
		})
	}
	return out, nil
}

type configSnapshotDTO struct {
	Config     map[string]string `json:"config"`
	Categories []string          `json:"categories"`
	Entries    []configEntryDTO  `json:"entries"`
}

func (s *Service) configSnapshot(ctx context.Context) (configSnapshotDTO, error) {
	entries, err := s.listConfigDTOs(ctx)
	if err != nil {
		return configSnapshotDTO{}, err
	}
	snap := configSnapshotDTO{
		Config:     make(map[string]string, len(entries)),
		Categories: make([]string, 0, 4),
		Entries:    entries,
	}
	seen := map[string]bool{}
	for _, e := range entries {
		snap.Config[e.Key] = e.Value
		if !seen[e.Category] {
			seen[e.Category] = true
			snap.Categories = append(snap.Categories, e.Category)
		}
	}
	return snap, nil
}

func (s *Service) aiConfigGet(ctx context.Context, payload json.RawMessage) (any, error) {
	return s.configSnapshot(ctx)
}

type configSetDTO struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Service) aiConfigSet(ctx context.Context, payload json.RawMessage) (any, error) {
	var req configSetDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode config set: %w", err)
	}
	if err := s.db.SetConfigValue(ctx, req.Key, req.Value); err != nil {
		return nil, err
	}
	return okPayload{Success: true}, nil
}

// aiConfigUpdate applies a batch of key/value updates. Unknown keys fail the
// whole batch before any write lands.
func (s *Service) aiConfigUpdate(ctx context.Context, payload json.RawMessage) (any, error) {
	var req map[string]string
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode config update: %w", err)
	}
	for key := range req {
		if _, err := s.db.GetConfigValue(ctx, key); err != nil {
			return nil, fmt.Errorf("config key %q: %w", key, err)
		}
	}
	for key, value := range req {
		if err := s.db.SetConfigValue(ctx, key, value); err != nil {
			return nil, err
		}
	}
	return okPayload{Success: true}, nil
}

func (s *Service) aiConfigReset(ctx context.Context, payload json.RawMessage) (any, error) {
	if err := s.db.ResetConfig(ctx); err != nil {
		return nil, err
	}
	return s.configSnapshot(ctx)
}

type profileDTO struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (s *Service) profileGet(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := s.db.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	return profileDTO{Name: p.Name, Email: p.Email, AvatarURL: p.AvatarURL, UpdatedAt: p.UpdatedAt.UnixMilli()}, nil
}

func (s *Service) profileSet(ctx context.Context, payload json.RawMessage) (any, error) {
	var req profileDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := s.db.UpsertProfile(ctx, storage.UserProfile{Name: req.Name, Email: req.Email, AvatarURL: req.AvatarURL}); err != nil {
		return nil, err
	}
	return okPayload{Success: true}, nil
}

type profilePatchDTO struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	AvatarURL *string `json:"avatarUrl"`
}

func (s *Service) profileUpdate(ctx context.Context, payload json.RawMessage) (any, error) {
	var req profilePatchDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode profile update: %w", err)
	}
	current, err := s.db.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		current.Name = *req.Name
	}
	if req.Email != nil {
		current.Email = *req.Email
	}
	if req.AvatarURL != nil {
		current.AvatarURL = *req.AvatarURL
	}
	if err := s.db.UpsertProfile(ctx, current); err != nil {
		return nil, err
	}
	return okPayload{Success: true}, nil
}
