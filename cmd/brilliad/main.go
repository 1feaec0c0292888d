package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sreeram-gsan/brillia-v3/internal/concept"
	"github.com/sreeram-gsan/brillia-v3/internal/config"
	"github.com/sreeram-gsan/brillia-v3/internal/daemon"
	"github.com/sreeram-gsan/brillia-v3/internal/intent"
	"github.com/sreeram-gsan/brillia-v3/internal/learning"
	"github.com/sreeram-gsan/brillia-v3/internal/llm"
	"github.com/sreeram-gsan/brillia-v3/internal/mastery"
	"github.com/sreeram-gsan/brillia-v3/internal/queue"
	"github.com/sreeram-gsan/brillia-v3/internal/storage/postgres"
	"github.com/sreeram-gsan/brillia-v3/internal/storage/sqlite"
)

const pidFileName = "brilliad.pid"

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Ensure ~/.brillia directory exists
	brilliaDir, err := config.EnsureBrilliaDir()
	if err != nil {
		return fmt.Errorf("ensure brillia dir: %w", err)
	}

	// Environment configuration drives storage and queue wiring; the
	// file config in ~/.brillia drives LLM providers and tuning.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	local, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load local config: %w", err)
	}

	logLevel := parseLogLevel(local.Daemon.LogLevel)
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logFile, err := setupLogging(brilliaDir, logLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger := slog.Default()

	pidPath := filepath.Join(brilliaDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	registry := llm.NewRegistry()
	setupLLMProviders(registry, cfg, local)
	if name := local.LLM.DefaultProvider; name != "" && name != "auto" {
		if err := registry.SetDefault(name); err != nil {
			logger.Warn("configured default LLM provider not available", "name", name, "error", err)
		}
	}
	provider, err := registry.Default()
	if err != nil {
		logger.Warn("no LLM provider configured, running on deterministic fallbacks")
	}

	// Storage. SQLite carries everything; with the postgres driver the
	// shared concept_mastery table moves to pgx while per-student data
	// stays local.
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}

	var masteries mastery.Store = sqlite.NewMasteryStore(db)
	if cfg.StorageDriver == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		pgStore := postgres.NewMasteryStore(pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure postgres schema: %w", err)
		}
		masteries = pgStore
	}

	history := sqlite.NewHistoryStore(db)
	materials := sqlite.NewMaterialStore(db)
	progress := learning.NewProgressService(sqlite.NewProgressStore(db), masteries, logger)

	svcs := daemon.Services{
		Registry:   registry,
		Mastery:    mastery.NewService(masteries, logger),
		Masteries:  masteries,
		Aggregator: mastery.NewAggregator(masteries, history, history, logger),
		Extractor:  concept.NewExtractor(provider, logger),
		Detector:   concept.NewDetector(),
		Cards:      learning.NewCardService(sqlite.NewCardStore(db), masteries, materials, learning.NewGenerator(provider, logger), progress, logger),
		Progress:   progress,
		Planner:    learning.NewPlanner(masteries),
		Intent:     intent.NewDetector(provider, logger),
		Materials:  materials,
		History:    history,
	}

	// Optional RabbitMQ transport for interaction events.
	var conn *queue.Connection
	if cfg.QueueEnabled {
		conn, err = queue.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		defer conn.Close()
		svcs.Producer = queue.NewProducer(conn)
	}

	server := daemon.NewServer(cfg, svcs, logger)

	var consumer *queue.Consumer
	if conn != nil {
		consumer = queue.NewConsumer(conn, server.HandleInteractionEvent, queue.ConsumerConfig{
			Workers: cfg.QueueWorkers,
		})
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received signal, shutting down", "signal", sig.String())

		if consumer != nil {
			consumer.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("daemon stopped")
	return nil
}

// setupLLMProviders registers every enabled provider from the file
// config, wrapped with retry, circuit breaking and rate limiting. An
// API key from the environment overrides the file config.
func setupLLMProviders(registry *llm.Registry, cfg *config.Config, local *config.LocalConfig) {
	for name, providerCfg := range local.LLM.Providers {
		if !providerCfg.Enabled {
			continue
		}

		apiKey := providerCfg.APIKey
		model := providerCfg.Model
		if name == cfg.LLMProvider {
			if cfg.LLMAPIKey != "" {
				apiKey = cfg.LLMAPIKey
			}
			if cfg.LLMModel != "" {
				model = cfg.LLMModel
			}
		}

		var provider llm.Provider
		switch name {
		case "claude":
			if apiKey == "" {
				slog.Debug("Claude provider enabled but no API key set")
				continue
			}
			provider = llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey: apiKey,
				Model:  model,
			})

		case "openai":
			if apiKey == "" {
				slog.Debug("OpenAI provider enabled but no API key set")
				continue
			}
			provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey: apiKey,
				Model:  model,
			})

		case "ollama":
			url := providerCfg.URL
			if name == cfg.LLMProvider && cfg.OllamaURL != "" {
				url = cfg.OllamaURL
			}
			provider = llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: url,
				Model:   model,
			})

		default:
			slog.Warn("unknown LLM provider in config", "name", name)
			continue
		}

		registry.Register(name, llm.NewResilientProvider(provider, llm.DefaultResilientConfig()))
		slog.Info("registered LLM provider", "name", name, "model", model)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogging(brilliaDir string, level slog.Level) (*os.File, error) {
	logPath := filepath.Join(brilliaDir, "logs", "brilliad.log")

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	// JSON to the log file, text to stderr for foreground mode.
	multi := &multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: level}),
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		},
	}

	slog.SetDefault(slog.New(multi))

	return logFile, nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}

// multiHandler logs to multiple handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
