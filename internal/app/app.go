package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"meetflow/internal/api"
	"meetflow/internal/config"
	"meetflow/internal/database"
	"meetflow/internal/llm"
	"meetflow/internal/repository"
	"meetflow/internal/service"
)

// App holds the wired application: the open database handle and the HTTP
// server ready to listen.
type App struct {
	DB     *sql.DB
	Server *http.Server
}

// NewApp builds the full dependency graph from the given configuration.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("could not initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.")

	repo := repository.NewSQLiteRepository(db)
	groupCache := newGroupCache(cfg.RedisAddr)
	provider := llm.NewOllamaProvider(cfg.OllamaURL)

	settingsService := service.NewSettingsService(db)
	if _, err := settingsService.InitAndGet(context.Background(), cfg.DefaultModel, cfg.SystemTemplate); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not initialize application settings: %w", err)
	}

	resolver := service.NewGroupResolver(repo, groupCache)
	builder := service.NewContextBuilder(repo, settingsService)
	conversation := service.NewConversation(repo, provider, resolver, builder, settingsService, cfg.FreeMessageLimit)

	chatHandler := api.NewChatHandler(conversation, settingsService)
	router := api.NewRouter(chatHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for the streaming endpoint
		IdleTimeout:       120 * time.Second,
	}

	return &App{DB: db, Server: server}, nil
}

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured; use the default logger for this.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)
	logConfigSource()

	waitForOllama(cfg.OllamaURL)

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to build application", "error", err)
		return 1
	}
	defer func() {
		if err := app.DB.Close(); err != nil {
			slog.Error("Failed to close database connection", "error", err)
		}
	}()

	slog.Info("Starting server", "port", cfg.AppPort)
	if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		return 1
	}

	return 0
}

// newGroupCache returns a Redis-backed cache when an address is configured,
// otherwise a no-op cache so resolution always falls back to storage scans.
func newGroupCache(addr string) repository.GroupCache {
	if addr == "" {
		slog.Info("No Redis address configured, current-group caching disabled.")
		return repository.NewNoopGroupCache()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Warn("Redis unreachable, current-group caching disabled.", "addr", addr, "error", err)
		return repository.NewNoopGroupCache()
	}
	slog.Info("Connected to Redis.", "addr", addr)
	return repository.NewRedisGroupCache(rdb)
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

func waitForOllama(ollamaURL string) {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	for i := 0; i < 20; i++ {
		resp, err := client.Get(ollamaURL)
		if err == nil && resp.StatusCode == http.StatusOK {
			_ = resp.Body.Close()
			slog.Info("Ollama is ready.")
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)
		time.Sleep(3 * time.Second)
	}
	slog.Warn("Ollama did not become ready, starting anyway.", "url", ollamaURL)
}
