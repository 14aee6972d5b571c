package app

import (
	"context"
	"fmt"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/dag"
	"github.com/vk/voxpipe/internal/executor"
)

// Run executes the application's primary logic: build the dependency graph
// from the loaded pipeline and execute it with the configured worker pool.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if appConfig.HealthcheckPort > 0 {
		stop, err := a.startHealthcheck(ctx, appConfig.HealthcheckPort)
		if err != nil {
			return fmt.Errorf("failed to start healthcheck server: %w", err)
		}
		defer stop()
	}

	graph, err := dag.Build(ctx, a.config, a.registry)
	if err != nil {
		return fmt.Errorf("failed to build execution graph: %w", err)
	}
	a.logger.Debug("Execution graph built.", "nodes", len(graph.Nodes))

	exec := executor.New(graph, appConfig.WorkerCount, a.registry, a.converter)

	a.logger.Info("🚀 Starting concurrent execution...", "workers", appConfig.WorkerCount)
	if err := exec.Run(ctx); err != nil {
		return err
	}
	a.logger.Info("🏁 Execution finished.")
	return nil
}
