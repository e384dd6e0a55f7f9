package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"deskmate/internal/storage"
)

type taskDTO struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Status    int    `json:"status"`
	Priority  int    `json:"priority"`
	DueDate   *int64 `json:"dueDate,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func toTaskDTO(t storage.Task) taskDTO {
	return taskDTO{
		ID:        t.ID,
		Content:   t.Content,
		Status:    t.Status,
		Priority:  t.Priority,
		DueDate:   t.DueDate,
		CreatedAt: t.CreatedAt.UnixMilli(),
		UpdatedAt: t.UpdatedAt.UnixMilli(),
	}
}

func (s *Server) tasksList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.db.ListTasks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

type taskCreateRequest struct {
	Content  string `json:"content"`
	Priority int    `json:"priority"`
	DueDate  *int64 `json:"dueDate"`
}

func (s *Server) tasksCreate(w http.ResponseWriter, r *http.Request) {
	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Content == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("content is required"))
		return
	}
	if req.Priority == 0 {
		req.Priority = 1
	}
	id, err := s.db.InsertTask(r.Context(), req.Content, req.Priority, req.DueDate)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type taskUpdateRequest struct {
	Status   *int `json:"status"`
	Priority *int `json:"priority"`
}

func (s *Server) tasksUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid task id"))
		return
	}
	var req taskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Status == nil && req.Priority == nil {
		s.writeError(w, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}
	if err := s.db.UpdateTask(r.Context(), id, req.Status, req.Priority); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) tasksDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid task id"))
		return
	}
	if err := s.db.DeleteTask(r.Context(), id); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
