package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/harryandriyan/bilbul/internal/ai"
	"github.com/harryandriyan/bilbul/internal/api"
	"github.com/harryandriyan/bilbul/internal/auth"
	"github.com/harryandriyan/bilbul/internal/metrics"
	"github.com/harryandriyan/bilbul/internal/session"
	"github.com/harryandriyan/bilbul/internal/storage/sqlite"
	"github.com/harryandriyan/bilbul/pkg/logging"
)

func main() {
	fs := ff.NewFlagSet("bilbul")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "./data/bilbul.db", "Database file path")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set BILBUL_GEMINI_KEY)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		jwtSecret   = fs.StringLong("jwt-secret", "", "JWT signing secret (or set BILBUL_JWT_SECRET)")
		tokenTTL    = fs.DurationLong("token-ttl", 24*time.Hour, "JWT token lifetime")
		sessionTTL  = fs.DurationLong("session-ttl", 2*time.Hour, "Idle split session lifetime")
		noMetrics   = fs.BoolLong("no-metrics", "Disable the Prometheus /metrics endpoint")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILBUL"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup()

	if *geminiKey == "" {
		slog.Error("Gemini API key is required. Set --gemini-key or BILBUL_GEMINI_KEY")
		os.Exit(1)
	}
	if *jwtSecret == "" {
		slog.Error("JWT secret is required. Set --jwt-secret or BILBUL_JWT_SECRET")
		os.Exit(1)
	}

	// Initialize SQLite storage
	store, err := sqlite.New(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", *dbPath)

	// Initialize the Gemini collaborator (extraction + suggestion)
	gemini, err := ai.NewGemini(context.Background(), *geminiKey, *geminiModel)
	if err != nil {
		slog.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer gemini.Close()
	slog.Info("Gemini client initialized", "model", *geminiModel)

	authenticator := auth.NewPasswordAuthenticator(store)
	jwtManager := auth.NewJWTManager(*jwtSecret, *tokenTTL)
	sessions := session.NewManager(gemini, gemini, store)

	server := api.NewServer(sessions, authenticator, jwtManager, store)
	if !*noMetrics {
		server.EnableMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Evict idle sessions in the background. The session core itself runs
	// no background work; this is server plumbing.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if pruned := sessions.PruneIdle(*sessionTTL); pruned > 0 {
					slog.Info("Pruned idle sessions", "count", pruned, "remaining", sessions.Len())
				}
				metrics.SessionsActive.Set(float64(sessions.Len()))
			}
		}
	}()

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	go func() {
		slog.Info("Server starting", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
