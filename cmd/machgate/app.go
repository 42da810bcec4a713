package main

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"machgate/internal/embedding"
	"machgate/internal/github"
	"machgate/internal/ingest"
	"machgate/internal/mission"
	"machgate/internal/oracle"
	"machgate/internal/prompts"
	"machgate/internal/store"
	"machgate/internal/trace"
)

// app holds the wired components for one command invocation.
type app struct {
	db       *sql.DB
	vectors  *store.VectorStore
	missions *store.MissionStore
	journal  *store.OracleJournal
	prompts  *prompts.Set
	oracle   oracle.Oracle // nil unless requested
}

type appOptions struct {
	needOracle bool
}

// openApp opens the workspace database and builds the requested components.
func openApp(ctx context.Context, opts appOptions) (*app, error) {
	if opts.needOracle {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	ws, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	dbPath := cfg.Store.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(ws, dbPath)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	a := &app{db: db}
	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()

	engine, err := embedding.NewEngine(ctx, embedding.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Endpoint:   cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		TaskType:   cfg.Embedding.TaskType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding engine: %w", err)
	}
	if a.vectors, err = store.NewVectorStore(ctx, db, engine); err != nil {
		return nil, err
	}
	if a.missions, err = store.NewMissionStore(ctx, db); err != nil {
		return nil, err
	}
	if a.journal, err = store.NewOracleJournal(ctx, db); err != nil {
		return nil, err
	}
	if a.prompts, err = prompts.Load(cfg.PromptsPath); err != nil {
		return nil, err
	}

	if opts.needOracle {
		o, err := oracle.New(ctx, oracle.Config{
			Provider:    cfg.LLM.Provider,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create oracle: %w", err)
		}
		a.oracle = oracle.NewTraced(o, a.journal, cfg.LLM.Provider+":"+cfg.LLM.Model)
	}

	logger.Debug("Workspace opened",
		zap.String("db", dbPath),
		zap.String("embedding", engine.Name()),
		zap.String("prompts", a.prompts.Version))
	ok = true
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) ingester() *ingest.Ingester {
	client := github.NewClient(
		github.WithBaseURL(cfg.GitHub.BaseURL),
		github.WithToken(cfg.GitHub.Token),
		github.WithTimeout(cfg.GetGitHubTimeout()),
	)
	return ingest.NewIngester(client, a.vectors, ingest.Options{
		MaxFiles:     cfg.GitHub.MaxFiles,
		BatchSize:    cfg.GitHub.BatchSize,
		MaxFileBytes: cfg.GitHub.MaxFileBytes,
		ChunkSize:    cfg.GitHub.ChunkSize,
	})
}

func (a *app) auditor() *trace.Auditor {
	return trace.NewAuditor(a.oracle, a.vectors, a.prompts, trace.Options{
		CodeK:       cfg.Trace.CodeK,
		DocK:        cfg.Trace.DocK,
		MaxEntities: cfg.Trace.MaxEntities,
	})
}

func (a *app) orchestrator(events chan<- mission.Event) (*mission.Orchestrator, error) {
	mc := mission.Config{
		Repository:        mission.NewStoreRepository(a.missions),
		Generator:         a.oracle,
		Prompts:           a.prompts,
		Scorer:            scorer(),
		GenerationTimeout: cfg.GetGenerationTimeout(),
		Events:            events,
	}
	if cfg.Trace.Enabled {
		mc.Auditor = a.auditor()
		mc.Ingester = a.ingester()
	}
	return mission.NewOrchestrator(mc)
}
