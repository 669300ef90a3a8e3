// Package cmd wires the configured components into runnable commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/taskrelay/internal/agent"
	"github.com/taskrelay/internal/checkpoint"
	"github.com/taskrelay/internal/config"
	"github.com/taskrelay/internal/jobs"
	"github.com/taskrelay/internal/llm"
	"github.com/taskrelay/internal/logging"
	"github.com/taskrelay/internal/query"
)

// loadRuntimeConfig loads and validates the configuration named by the
// global --config flag, then initializes logging from it
func loadRuntimeConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(cfg.Log.Level)
	return cfg, nil
}

// openPool connects to the configured database
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return pool, nil
}

// buildModel creates the chat model from config
func buildModel(cfg *config.Config) (llm.Generator, error) {
	return llm.NewChatModel(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
}

// queryRunner returns the data query tool, or nil when disabled
func queryRunner(cfg *config.Config, pool *pgxpool.Pool) agent.QueryRunner {
	if !cfg.Query.Enabled {
		return nil
	}
	return query.NewTool(pool, cfg.Query.MaxRows)
}

// checkpointer adapts the pg checkpoint store to the agent service
type checkpointer struct {
	store *checkpoint.Store
}

func (c checkpointer) Acquire(ctx context.Context) (agent.Session, error) {
	session, err := c.store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// buildAgentService assembles the full interactive agent over the pool
func buildAgentService(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*agent.Service, error) {
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}

	jobClient, err := jobs.NewClient(pool, cfg.Agent.Queue)
	if err != nil {
		return nil, fmt.Errorf("failed to create job client: %w", err)
	}

	store, err := checkpoint.NewStore(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize checkpoint store: %w", err)
	}

	orch := agent.NewOrchestrator(model,
		agent.NewToolset(jobClient, queryRunner(cfg, pool)),
		cfg.Agent.SystemPrompt)

	return agent.NewService(orch, checkpointer{store: store}), nil
}
