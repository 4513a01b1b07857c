package commands

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/access"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/assistant"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/compose"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/config"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/device"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/executor"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/intent"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/llm"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/persona"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/router"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/search"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/storage"
	"github.com/spf13/cobra"
)

// loadConfig reads the --config flag, loads the configuration and builds
// the logger. The API key is resolved last so keyring lookups are logged.
func loadConfig(cmd *cobra.Command, w io.Writer) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(w, cfg, verbose)
	config.ResolveAPIKey(cfg, logger)
	return cfg, logger, nil
}

// newLogger builds the process logger: JSON unless LOG_FORMAT=text, debug
// level when DEBUG_MODE or --verbose is set.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose || cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// runtime holds everything built from the configuration.
type runtime struct {
	db        *sql.DB
	persona   *persona.Store
	allow     *access.AllowList
	router    *router.Router
	assistant *assistant.Assistant
}

// Close releases the database.
func (r *runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// buildRuntime opens storage and wires the message pipeline.
func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	oracle, err := llm.New(ctx, llm.Settings{
		Provider: cfg.AI.Provider,
		BaseURL:  cfg.AI.BaseURL,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating AI client: %w", err)
	}

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	rt := &runtime{db: db}

	var backend persona.ProfileStore
	if cfg.Storage.PersonaStore == config.PersonaStoreFile {
		backend = persona.NewFileStore(cfg.Storage.PersonaFile)
	} else {
		backend = persona.NewSQLiteStore(db)
	}
	rt.persona = persona.NewStore(backend, logger)
	rt.persona.Load(ctx)

	rt.allow = access.New(cfg.Access.AllowedGroupIDs, access.NewSQLiteStore(db), logger)
	if err := rt.allow.Load(ctx); err != nil {
		logger.Warn("failed to load persisted allow-list", "error", err)
	}

	var provider search.Provider
	if cfg.Search.Enabled {
		provider = search.New(search.Settings{
			Provider:       cfg.Search.Provider,
			MaxResults:     cfg.Search.MaxResults,
			GoogleAPIKey:   cfg.Search.GoogleAPIKey,
			GoogleEngineID: cfg.Search.GoogleEngineID,
			BraveAPIKey:    cfg.Search.BraveAPIKey,
		}, logger)
	}

	opts := routerOptions(cfg)
	rt.router = router.New(opts, router.Deps{
		AllowList:  rt.allow,
		Persona:    rt.persona,
		Classifier: intent.NewClassifier(oracle, opts.SearchEnabled, opts.DeviceEnabled, logger),
		Executor:   executor.New(provider, device.Noop{}, cfg.Search.MaxResults, logger),
		Composer:   compose.New(oracle, logger),
		Logger:     logger,
	})

	rt.assistant = assistant.New(assistant.Deps{
		Channels:  channels.NewManager(logger),
		AllowList: rt.allow,
		Persona:   rt.persona,
		Router:    rt.router,
		Options:   opts,
		Logger:    logger,
	})
	return rt, nil
}

func routerOptions(cfg *config.Config) router.Options {
	return router.Options{
		SearchEnabled:    cfg.Search.Enabled,
		DeviceEnabled:    cfg.Features.PhoneIntegration,
		PersonaEnabled:   cfg.Features.Persona,
		LearningMode:     cfg.Features.PersonaLearning,
		GroupRestriction: cfg.Access.GroupRestriction,
	}
}
