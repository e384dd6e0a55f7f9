package host

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolvePath maps a shell-supplied path into the workspace. Everything is
// rooted at the workspace directory; traversal outside it is rejected.
func (s *Service) resolvePath(p string) (string, error) {
	if s.workspace == "" {
		return "", fmt.Errorf("no workspace configured")
	}
	cleaned := filepath.Clean("/" + strings.TrimSpace(p))
	full := filepath.Join(s.workspace, cleaned)
	rel, err := filepath.Rel(s.workspace, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", p)
	}
	return full, nil
}

type pathPayload struct {
	Path string `json:"path"`
}

type dirEntryDTO struct {
	Name       string `json:"name"`
	IsDir      bool   `json:"isDir"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modifiedAt"`
}

func (s *Service) fsReadDir(ctx context.Context, payload json.RawMessage) (any, error) {
	var req pathPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	full, err := s.resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	out := make([]dirEntryDTO, 0, len(entries))
	for _, e := range entries {
		dto := dirEntryDTO{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			dto.Size = info.Size()
			dto.ModifiedAt = info.ModTime().UnixMilli()
		}
		out = append(out, dto)
	}
	return out, nil
}

// fsSelectFolder has no native dialog in a headless host; the workspace root
// is the selection.
func (s *Service) fsSelectFolder(ctx context.Context, payload json.RawMessage) (any, error) {
	if s.workspace == "" {
		return nil, fmt.Errorf("no workspace configured")
	}
	return pathPayload{Path: s.workspace}, nil
}

type fileContentDTO struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Service) fsReadFile(ctx context.Context, payload json.RawMessage) (any, error) {
	var req pathPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode path: %w", err)
	}
	full, err := s.resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return fileContentDTO{Path: req.Path, Content: string(data)}, nil
}

func (s *Service) fsWriteFile(ctx context.Context, payload json.RawMessage) (any, error) {
	var req fileContentDTO
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	full, err := s.resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(full, []byte(req.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return okPayload{Success: true}, nil
}
