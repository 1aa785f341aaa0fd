// ABOUTME: Gateway orchestrator that owns the HTTP control surface lifecycle.
// ABOUTME: Wires the session manager behind the routes and handles graceful shutdown.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/wagateway/internal/config"
	"github.com/2389/wagateway/internal/session"
)

// Gateway serves the session control surface over HTTP.
type Gateway struct {
	config     *config.Config
	manager    *session.Manager
	httpServer *http.Server
	logger     *slog.Logger

	// serverID identifies this gateway instance in logs
	serverID string
}

// New creates a Gateway around the given session manager.
func New(cfg *config.Config, manager *session.Manager, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:   cfg,
		manager:  manager,
		logger:   logger,
		serverID: uuid.New().String(),
	}
}

// Start begins serving HTTP and blocks until the listener fails or is shut
// down. http.ErrServerClosed is not reported as an error.
func (g *Gateway) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session/{sessionId}/start", g.handleStartSession)
	mux.HandleFunc("GET /session/{sessionId}/status", g.handleSessionStatus)
	mux.HandleFunc("GET /session/{sessionId}/qr", g.handleSessionQR)
	mux.HandleFunc("POST /session/{sessionId}/send", g.handleSendMessage)
	mux.HandleFunc("DELETE /session/{sessionId}", g.handleDestroySession)
	mux.HandleFunc("GET /sessions", g.handleListSessions)

	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.HandleFunc("GET /readyz", g.handleReady)

	g.httpServer = &http.Server{
		Addr:        g.config.Server.HTTPAddr,
		Handler:     withCORS(mux),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g.logger.Info("http server listening",
		"addr", g.config.Server.HTTPAddr,
		"server_id", g.serverID,
	)

	if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server and destroys all sessions.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var err error
	if g.httpServer != nil {
		err = g.httpServer.Shutdown(ctx)
	}
	g.manager.Shutdown(ctx)
	g.logger.Info("gateway shutdown complete")
	return err
}

// handleHealth handles GET /healthz liveness checks.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady handles GET /readyz readiness checks.
func (g *Gateway) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// withCORS allows cross-origin access to the control surface, matching the
// original deployment where a browser frontend polls session status.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
