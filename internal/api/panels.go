package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/uxav/AVnetCore-sub001/internal/auth"
)

// ─── Request/Response Types ────────────────────────────────────────

type createPanelRequest struct {
	Name   string    `json:"name"`
	Role   auth.Role `json:"role"`
	RoomID uint      `json:"room_id"`
}

type createPanelResponse struct {
	Panel  *auth.Panel `json:"panel"`
	Secret string      `json:"secret"` // shown once, never again
}

type setPanelActiveRequest struct {
	Active *bool `json:"active"`
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleListPanels returns all registered panels.
func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	panels, err := s.panels.List(r.Context())
	if err != nil {
		s.logger.Error("list panels failed", "error", err)
		writeInternalError(w, "failed to list panels")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"panels": panels,
		"count":  len(panels),
	})
}

// handleCreatePanel registers a panel. The secret is returned exactly once.
func (s *Server) handleCreatePanel(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	var req createPanelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Role == "" {
		req.Role = auth.RolePanel
	}
	if req.RoomID != 0 {
		if _, err := s.env.Room(req.RoomID); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	panel, secret, err := s.auth.Register(r.Context(), req.Name, req.Role, req.RoomID)
	switch {
	case errors.Is(err, auth.ErrInvalidPanel):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, auth.ErrPanelExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	case err != nil:
		s.logger.Error("create panel failed", "error", err)
		writeInternalError(w, "failed to create panel")
		return
	}

	s.logger.Info("panel created via API", "panel_id", panel.ID, "created_by", claims.Subject)
	writeJSON(w, http.StatusCreated, createPanelResponse{Panel: panel, Secret: secret})
}

// handleSetPanelActive enables or disables a panel.
func (s *Server) handleSetPanelActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setPanelActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeBadRequest(w, "body must be {\"active\": bool}")
		return
	}

	if err := s.panels.SetActive(r.Context(), id, *req.Active); err != nil {
		s.writePanelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": *req.Active})
}

// handleDeletePanel removes a panel.
func (s *Server) handleDeletePanel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if claims := claimsFromContext(r.Context()); claims.Subject == id {
		writeBadRequest(w, "cannot delete the panel making the request")
		return
	}
	if err := s.panels.Delete(r.Context(), id); err != nil {
		s.writePanelError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writePanelError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrPanelNotFound) {
		writeNotFound(w, "panel not found")
		return
	}
	s.logger.Error("panel update failed", "error", err)
	writeInternalError(w, "failed to update panel")
}
