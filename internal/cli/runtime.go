package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoangnp/careerpilot/internal/config"
	"github.com/hoangnp/careerpilot/internal/database"
	"github.com/hoangnp/careerpilot/internal/instructions"
	"github.com/hoangnp/careerpilot/internal/logger"
	"github.com/hoangnp/careerpilot/pkg/agent"
	"github.com/hoangnp/careerpilot/pkg/credentials"
	"github.com/hoangnp/careerpilot/pkg/genai"
	"github.com/hoangnp/careerpilot/pkg/session"
	"github.com/hoangnp/careerpilot/pkg/task"
	"github.com/hoangnp/careerpilot/pkg/tools"
)

// runtime holds the assembled service components.
type runtime struct {
	cfg          *config.Config
	client       *genai.RotatingClient
	db           *database.Pool
	instructions *instructions.Store
	store        *session.Store
	archiver     *session.Archiver
	registry     *tools.Registry
	controller   *agent.Controller
	formatter    *task.Formatter
	log          zerolog.Logger
}

// buildRuntime assembles the full stack from configuration. The database is
// optional: without it only the finalize tool is available and the model
// answers from its own knowledge.
func buildRuntime(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*runtime, error) {
	pool := credentials.NewPoolFromKeys(cfg.AI.APIKeys)

	client, err := genai.NewRotatingClient(genai.RotatingConfig{
		Pool: pool,
		Factory: &genai.ProviderFactory{
			Provider:       cfg.AI.Provider,
			EmbeddingModel: cfg.AI.EmbeddingModel,
		},
		MaxAttempts: cfg.AI.MaxAttempts,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	rt := &runtime{cfg: cfg, client: client, log: log}

	if cfg.Database.URL != "" {
		db, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		rt.db = db
	} else {
		log.Warn().Msg("No database configured, running without job-market tools")
	}

	rt.instructions = instructions.NewStore(cfg.Instructions.Dir, log)
	if cfg.Instructions.Watch {
		if err := rt.instructions.Watch(); err != nil {
			log.Warn().Err(err).Msg("Instruction hot reload unavailable")
		}
	}

	store, err := session.NewStore(cfg.Sessions.Dir)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	rt.store = store
	rt.archiver = session.NewArchiver(store, cfg.Sessions.ArchiveDir,
		time.Duration(cfg.Sessions.RetentionDays)*24*time.Hour)

	registry, err := buildRegistry(rt.db, client)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.registry = registry

	controller, err := agent.NewController(agent.Config{
		Client:       client,
		Registry:     registry,
		Store:        store,
		Instructions: rt.instructions,
		Model:        cfg.AI.Model,
		MaxTurns:     cfg.Agent.MaxTurns,
		TimeBudget:   time.Duration(cfg.Agent.TimeBudgetSeconds) * time.Second,
		Temperature:  cfg.Agent.Temperature,
		MaxTokens:    cfg.Agent.MaxTokens,
		Logger:       log,
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create loop controller: %w", err)
	}
	rt.controller = controller

	formatter, err := task.NewFormatter(task.Config{
		Runner: controller,
		Store:  store,
		Logger: log,
	})
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("failed to create task formatter: %w", err)
	}
	rt.formatter = formatter

	return rt, nil
}

// buildRegistry declares the tool set offered to the model.
func buildRegistry(db *database.Pool, embedder tools.Embedder) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	defs := []tools.Definition{tools.NewFinalizeTool()}
	if db != nil {
		defs = append(defs,
			tools.NewQueryDatabaseTool(db),
			tools.NewSimilarJobsTool(embedder, db),
		)
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return registry, nil
}

func (rt *runtime) close() {
	if rt.instructions != nil {
		_ = rt.instructions.Close()
	}
	if rt.archiver != nil {
		rt.archiver.Stop()
	}
	if rt.db != nil {
		rt.db.Close()
	}
}

// loadConfig reads the configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// initLogger builds the service logger from configuration.
func initLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
}
