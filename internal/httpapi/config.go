package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"deskmate/internal/providers/openai_compat"
	"deskmate/internal/storage"
)

type configEntryDTO struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (s *Server) listConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.ListConfig(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
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
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) configGet(w http.ResponseWriter, r *http.Request) {
	s.listConfig(w, r)
}

func (s *Server) configUpdate(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	for key, value := range updates {
		if err := s.db.SetConfigValue(r.Context(), key, value); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown config key %q", key))
				return
			}
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) configReset(w http.ResponseWriter, r *http.Request) {
	if err := s.db.ResetConfig(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.listConfig(w, r)
}

type checkRequest struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model_name"`
}

// check probes a provider endpoint. Missing fields fall back to the stored
// settings so the button works without retyping the key.
func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}
	}
	ctx := r.Context()
	if req.APIKey == "" {
		req.APIKey, _ = s.db.GetConfigValue(ctx, "api_key")
	}
	if req.BaseURL == "" {
		req.BaseURL, _ = s.db.GetConfigValue(ctx, "base_url")
	}
	if req.Model == "" {
		req.Model, _ = s.db.GetConfigValue(ctx, "model_name")
	}

	result := openai_compat.Check(ctx, s.httpClient, req.APIKey, req.BaseURL, req.Model)
	writeJSON(w, http.StatusOK, result)
}
