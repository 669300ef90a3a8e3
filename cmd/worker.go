package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/taskrelay/internal/tasklog"
	"github.com/taskrelay/internal/worker"
)

// WorkerCommand returns the CLI command for running the job worker
func WorkerCommand() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the background job worker",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-workers",
				Usage: "Maximum concurrent workflow runs (overrides config)",
			},
		},
		Action: runWorker,
	}
}

func runWorker(c *cli.Context) error {
	cfg, err := loadRuntimeConfig(c)
	if err != nil {
		return err
	}

	maxWorkers := cfg.Worker.MaxWorkers
	if c.IsSet("max-workers") {
		maxWorkers = c.Int("max-workers")
	}

	pool, err := openPool(c.Context, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	model, err := buildModel(cfg)
	if err != nil {
		return err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, worker.NewWorkflowWorker(
		model,
		queryRunner(cfg, pool),
		tasklog.NewStore(pool),
		cfg.Agent.SystemPrompt,
	))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			cfg.Agent.Queue: {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create queue client: %w", err)
	}

	if err := client.Start(c.Context); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	log.Info().
		Str("queue", cfg.Agent.Queue).
		Int("max_workers", maxWorkers).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return client.Stop(ctx)
}
