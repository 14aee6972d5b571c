package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/voxpipe/internal/config"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/dag"
	"github.com/vk/voxpipe/internal/registry"
)

// Executor orchestrates the end-to-end execution of a dependency graph. It
// manages the worker pool, resource lifecycles, and failure propagation.
type Executor struct {
	Graph      *dag.Graph
	numWorkers int
	registry   *registry.Registry
	converter  config.Converter

	// resourceInstances maps a resource node ID to its live asset object.
	resourceInstances sync.Map

	// cleanup bookkeeping: destruction functions run LIFO, each at most once.
	cleanupMu    sync.Mutex
	cleanupFns   map[string]func()
	cleanupOrder []*dag.Node

	wg sync.WaitGroup
}

// New creates an Executor for the given graph.
func New(graph *dag.Graph, numWorkers int, r *registry.Registry, converter config.Converter) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{
		Graph:      graph,
		numWorkers: numWorkers,
		registry:   r,
		converter:  converter,
		cleanupFns: make(map[string]func()),
	}
}

// Run executes the entire graph concurrently and returns an error if any node
// fails. It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer e.executeCleanupStack(ctx)

	readyChan := make(chan *dag.Node, len(e.Graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Initializing executor, finding root nodes...")
	rootNodeCount := 0
	for _, node := range e.Graph.Nodes {
		if node.DepCount() == 0 {
			logger.Debug("Found root node.", "nodeID", node.ID)
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.Graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	logger.Info("Waiting for all nodes to complete...")
	e.wg.Wait()
	logger.Debug("All nodes completed.")
	close(readyChan)

	var failedNodes []string
	var rootCauseError error
	for _, node := range e.Graph.Nodes {
		if node.GetState() == dag.Failed {
			logger.Error("Node failed execution.", "nodeID", node.ID, "error", node.Error)
			// A "skipped" error is a symptom, not a cause.
			if node.Error != nil && !strings.HasPrefix(node.Error.Error(), "skipped") && !errors.Is(node.Error, context.Canceled) {
				failedNodes = append(failedNodes, node.ID)
				// Prioritize the first "real" error as the root cause.
				if rootCauseError == nil {
					rootCauseError = node.Error
				}
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}

	return nil
}

// skipDependents recursively marks all downstream nodes as failed.
func (e *Executor) skipDependents(ctx context.Context, node *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		err := fmt.Errorf("skipped due to upstream failure of '%s'", node.ID)
		if dependent.Skip(err, &e.wg) {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dependent.ID, "dependency", node.ID)
			e.skipDependents(ctx, dependent)
		}
	}
}
