// ABOUTME: Entry point for the wagateway server and its helper subcommands.
// ABOUTME: Loads config, wires the session manager, and handles graceful shutdown.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/wagateway/internal/config"
	"github.com/2389/wagateway/internal/dedupe"
	"github.com/2389/wagateway/internal/gateway"
	"github.com/2389/wagateway/internal/relay"
	"github.com/2389/wagateway/internal/session"
	"github.com/2389/wagateway/internal/whatsapp"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const banner = `
                          _
 __      ____ _  __ _ ___| |_ _____      ____ _ _   _
 \ \ /\ / / _` + "`" + ` |/ _` + "`" + ` |/ __| __/ _ \ \ /\ / / _` + "`" + ` | | | |
  \ V  V / (_| | (_| | (_| | ||  __/\ V  V / (_| | |_| |
   \_/\_/ \__,_|\__, |\___/ \__\___| \_/\_/ \__,_|\__, |
                |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: WAGATEWAY_CONFIG env var > ./wagateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WAGATEWAY_CONFIG"); envPath != "" {
		return envPath
	}
	return "wagateway.yaml"
}

// getBaseURL returns the gateway URL for client subcommands.
func getBaseURL() string {
	if envURL := os.Getenv("WAGATEWAY_URL"); envURL != "" {
		return strings.TrimSuffix(envURL, "/")
	}
	return "http://localhost:3000"
}

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		runServe()
	case "health":
		runHealth()
	case "sessions":
		runSessions()
	case "version":
		fmt.Println("wagateway", version)
	default:
		fmt.Println("Usage: wagateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server (default)")
		fmt.Println("  health    Check gateway health")
		fmt.Println("  sessions  List sessions on a running gateway")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when absent,
// then applies PORT/WEBHOOK_URL environment overrides.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	path := getConfigPath()
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg := config.Default()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// runServe starts the gateway server and blocks until SIGINT/SIGTERM.
func runServe() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	fmt.Print(banner)
	logger.Info("starting wagateway", "version", version, "addr", cfg.Server.HTTPAddr)

	if cfg.Webhook.URL == "" {
		logger.Warn("no webhook configured - inbound messages will be logged but not relayed")
	}

	relayClient := relay.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout,
		logger.With("component", "relay"))
	seen := dedupe.New(cfg.Sessions.DedupeWindow, cfg.Sessions.DedupeMaxSize)
	defer seen.Close()

	factory := whatsapp.NewFactory(whatsapp.Options{
		StoreDir:   cfg.WhatsApp.StoreDir,
		QRTerminal: cfg.WhatsApp.QRTerminal,
		SendRate:   cfg.WhatsApp.SendRate,
		SendBurst:  cfg.WhatsApp.SendBurst,
	}, logger.With("component", "whatsapp"))

	manager := session.NewManager(session.ManagerParams{
		Factory:        factory,
		Relay:          relayClient,
		Dedupe:         seen,
		Logger:         logger.With("component", "session"),
		DestroyTimeout: cfg.Sessions.DestroyTimeout,
	})

	gw := gateway.New(cfg, manager, logger.With("component", "gateway"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := gw.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}
}

// runHealth checks a running gateway's health endpoint.
func runHealth() {
	resp, err := http.Get(getBaseURL() + "/healthz")
	if err != nil {
		color.Red("✗ gateway unreachable: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		color.Green("✓ gateway healthy")
		return
	}
	color.Red("✗ gateway unhealthy (status %d)", resp.StatusCode)
	os.Exit(1)
}

// runSessions lists sessions on a running gateway.
func runSessions() {
	resp, err := http.Get(getBaseURL() + "/sessions")
	if err != nil {
		color.Red("✗ gateway unreachable: %v", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		color.Red("✗ reading response: %v", err)
		os.Exit(1)
	}

	var sessions []struct {
		ID     string `json:"id"`
		Ready  bool   `json:"ready"`
		Number string `json:"number"`
	}
	if err := json.Unmarshal(body, &sessions); err != nil {
		color.Red("✗ unexpected response: %v", err)
		os.Exit(1)
	}

	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}

	for _, s := range sessions {
		if s.Ready {
			color.Green("● %s  (connected: %s)", s.ID, s.Number)
		} else {
			color.Yellow("○ %s  (not connected)", s.ID)
		}
	}
}
