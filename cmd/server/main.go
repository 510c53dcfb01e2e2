// Discussion-room server: timed, moderated group-discussion sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/YatingPan/chat-room/internal/agent"
	"github.com/YatingPan/chat-room/internal/api"
	"github.com/YatingPan/chat-room/internal/catalog"
	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/config"
	"github.com/YatingPan/chat-room/internal/hub"
	"github.com/YatingPan/chat-room/internal/lobby"
	"github.com/YatingPan/chat-room/internal/middleware"
	"github.com/YatingPan/chat-room/internal/participant"
	"github.com/YatingPan/chat-room/internal/scheduler"
	"github.com/YatingPan/chat-room/internal/session"
	"github.com/YatingPan/chat-room/internal/store"
	"github.com/YatingPan/chat-room/internal/telemetry"
	"github.com/YatingPan/chat-room/internal/transcript"
	"github.com/YatingPan/chat-room/internal/ws"
	"github.com/YatingPan/chat-room/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	archive, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize archive database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := archive.Close(); closeErr != nil {
			slog.Error("Failed to close archive", "error", closeErr)
		}
	}()

	if err := archive.Ping(context.Background()); err != nil {
		slog.Error("Archive health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Archive database connected")

	metrics := telemetry.New()
	cat := catalog.New(cfg.RoomSpecDir, cfg.PostDir)

	rooms, err := cat.Rooms()
	if err != nil {
		slog.Error("Failed to load room catalog", "error", err)
		os.Exit(1)
	}
	if len(rooms) == 0 {
		slog.Warn("Room catalog is empty", "dir", cfg.RoomSpecDir)
	}

	transcripts, err := transcript.NewWriter(cfg.TranscriptDir, archive)
	if err != nil {
		slog.Error("Failed to initialize transcript writer", "error", err)
		os.Exit(1)
	}

	logs := chatlog.NewStore()
	gateway := hub.NewGateway(logs, metrics)

	participants, err := participant.NewRegistry(cfg.NicknamePath, logs)
	if err != nil {
		slog.Error("Failed to load nickname pool", "error", err)
		os.Exit(1)
	}

	// Moderator agent is optional; without an API key the scripted timeline
	// still runs but no model-generated interventions are produced.
	var moderator agent.Moderator
	if cfg.Moderator.APIKey != "" {
		moderator = agent.NewOpenAIModerator(cfg.Moderator.APIKey, cfg.Moderator.BaseURL, cfg.Moderator.Model)
		slog.Info("Moderator agent enabled", "model", cfg.Moderator.Model)
	} else {
		slog.Info("Moderator agent disabled (OPENAI_API_KEY not set)")
	}

	sched := scheduler.New(scheduler.Deps{
		Logs:         logs,
		Gateway:      gateway,
		Transcripts:  transcripts,
		Moderator:    moderator,
		Metrics:      metrics,
		AgentTimeout: cfg.Moderator.Timeout,
	})
	defer sched.Shutdown()

	sessions := session.NewRegistry(cat, logs, sched, metrics)
	sched.SetOnTeardown(func(roomID string) {
		sessions.Remove(roomID)
		logs.Remove(roomID)
		gateway.CloseRoom(roomID, "discussion ended")
	})

	lb := lobby.New(cfg.Lobby.Threshold, cfg.Lobby.Wait, func() (string, error) {
		entries, err := cat.Rooms()
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", fmt.Errorf("no rooms available")
		}
		base := strings.TrimSuffix(cfg.FrontendURL, "/")
		return base + "/" + entries[rand.IntN(len(entries))].Token, nil
	})

	// Initialize handlers.
	apiHandler := api.NewHandler(cat, sessions, archive)
	wsHandler := ws.NewHandler(sessions, participants, gateway, logs, archive, lb, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	apiHandler.RegisterRoutes(r)
	r.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint.
	r.Get("/ws", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all); room tokens resolve to it.
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket sessions outlive any fixed write timeout
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
