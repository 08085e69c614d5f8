package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/uxav/AVnetCore-sub001/internal/auth"
)

// panelLoginRequest is the request body for POST /auth/panel.
type panelLoginRequest struct {
	PanelID string `json:"panel_id"`
	Secret  string `json:"secret"`
}

// handlePanelLogin exchanges panel credentials for an access token.
func (s *Server) handlePanelLogin(w http.ResponseWriter, r *http.Request) {
	var req panelLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.PanelID == "" || req.Secret == "" {
		writeBadRequest(w, "panel_id and secret are required")
		return
	}

	token, err := s.auth.Authenticate(r.Context(), req.PanelID, req.Secret)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w, "invalid credentials")
		return
	case errors.Is(err, auth.ErrPanelInactive):
		writeForbidden(w, "panel is inactive")
		return
	case err != nil:
		s.logger.Error("panel login failed", "panel_id", req.PanelID, "error", err)
		writeInternalError(w, "authentication failed")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// handleWSTicket issues a single-use WebSocket ticket for the caller, so
// the access token never appears in a URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.tickets.Issue(claimsFromContext(r.Context()))
	if err != nil {
		s.logger.Error("issuing websocket ticket failed", "error", err)
		writeInternalError(w, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(s.tickets.TTL().Seconds()),
	})
}
