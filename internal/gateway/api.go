// ABOUTME: HTTP API handlers mapping the session routes onto manager operations.
// ABOUTME: Response shapes are kept bit-exact with the original control surface.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/wagateway/internal/session"
)

// StartSessionResponse is the JSON response for POST /session/{id}/start.
type StartSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionStatusResponse is the JSON response for GET /session/{id}/status.
type SessionStatusResponse struct {
	Ready           bool    `json:"ready"`
	HasQRCode       bool    `json:"hasQrCode"`
	ConnectedNumber *string `json:"connectedNumber"`
}

// SessionQRResponse is the JSON response for GET /session/{id}/qr.
type SessionQRResponse struct {
	Status string `json:"status"`
	QRCode string `json:"qrCode,omitempty"`
}

// SendMessageRequest is the JSON request body for POST /session/{id}/send.
type SendMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// SessionListEntry is one element of the GET /sessions response array.
type SessionListEntry struct {
	ID     string `json:"id"`
	Ready  bool   `json:"ready"`
	Number string `json:"number,omitempty"`
}

// handleStartSession handles POST /session/{sessionId}/start.
// Creation is idempotent; starting an existing session is a no-op. The
// response is always success: initialization is asynchronous and its outcome
// is observed via later status queries.
func (g *Gateway) handleStartSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sessionId")
	g.manager.Start(id)

	g.writeJSON(w, http.StatusOK, StartSessionResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s started", id),
	})
}

// handleSessionStatus handles GET /session/{sessionId}/status.
func (g *Gateway) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	info, err := g.manager.Status(r.PathValue("sessionId"))
	if errors.Is(err, session.ErrSessionNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	resp := SessionStatusResponse{
		Ready:     info.Ready,
		HasQRCode: info.HasChallenge,
	}
	if info.AccountHandle != "" {
		resp.ConnectedNumber = &info.AccountHandle
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleSessionQR handles GET /session/{sessionId}/qr.
func (g *Gateway) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	status, code, err := g.manager.Challenge(r.PathValue("sessionId"))
	if errors.Is(err, session.ErrSessionNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	switch status {
	case session.ChallengeConnected:
		g.writeJSON(w, http.StatusOK, SessionQRResponse{Status: "connected"})
	case session.ChallengePending:
		g.writeJSON(w, http.StatusOK, SessionQRResponse{Status: "pending", QRCode: code})
	default:
		g.writeJSON(w, http.StatusOK, SessionQRResponse{Status: "waiting"})
	}
}

// handleSendMessage handles POST /session/{sessionId}/send.
// Requires a Ready session: 503 when the session is absent or not connected,
// 500 when the underlying delivery fails.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.To == "" || req.Message == "" {
		g.sendJSONError(w, http.StatusBadRequest, "to and message are required")
		return
	}

	err := g.manager.Send(r.Context(), r.PathValue("sessionId"), req.To, req.Message)
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrNotConnected):
		g.sendJSONError(w, http.StatusServiceUnavailable, "not connected")
		return
	case err != nil:
		g.logger.Error("send failed", "session_id", r.PathValue("sessionId"), "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	g.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleListSessions handles GET /sessions.
func (g *Gateway) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	infos := g.manager.List()

	resp := make([]SessionListEntry, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, SessionListEntry{
			ID:     info.ID,
			Ready:  info.Ready,
			Number: info.AccountHandle,
		})
	}
	g.writeJSON(w, http.StatusOK, resp)
}

// handleDestroySession handles DELETE /session/{sessionId}. Idempotent:
// destroying an absent session still succeeds.
func (g *Gateway) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	g.manager.Destroy(r.PathValue("sessionId"))
	g.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeJSON writes a JSON response with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.writeJSON(w, status, map[string]string{"error": message})
}
