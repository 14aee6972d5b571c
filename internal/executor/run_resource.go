package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/dag"
)

// runResourceNode handles the creation of a stateful resource.
func (e *Executor) runResourceNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("resource", node.ID)
	resourceCtx := ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Creating resource")

	assetType := node.ResourceConfig.AssetType
	assetDef, ok := e.registry.AssetDefinitionRegistry[assetType]
	if !ok {
		return fmt.Errorf("unknown asset type '%s'", assetType)
	}
	createHandlerName := assetDef.Lifecycle.Create
	destroyHandlerName := assetDef.Lifecycle.Destroy

	assetHandler, ok := e.registry.AssetHandlerRegistry[createHandlerName]
	if !ok || assetHandler.CreateFn == nil {
		return fmt.Errorf("create handler '%s' not registered", createHandlerName)
	}

	destroyHandler, ok := e.registry.AssetHandlerRegistry[destroyHandlerName]
	if !ok || destroyHandler.DestroyFn == nil {
		return fmt.Errorf("destroy handler '%s' not registered", destroyHandlerName)
	}

	logger.Debug("Decoding resource arguments.")
	evalCtx := e.buildEvalContext(ctx, node)
	inputStruct := assetHandler.NewInput()
	if inputStruct != nil {
		err := e.converter.DecodeBody(resourceCtx, inputStruct, node.ResourceConfig.Arguments, assetDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("decoding arguments for resource %s: %w", node.ID, err)
		}
	}

	logger.Debug("Calling resource create handler.", "handler", createHandlerName)
	handlerFunc := reflect.ValueOf(assetHandler.CreateFn)
	results := handlerFunc.Call([]reflect.Value{reflect.ValueOf(resourceCtx), reflect.ValueOf(inputStruct)})
	resourceObj, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	node.Output = resourceObj
	e.resourceInstances.Store(node.ID, resourceObj)
	e.pushCleanup(node, func() {
		logger.Info("🔥 Destroying resource")
		reflect.ValueOf(destroyHandler.DestroyFn).Call([]reflect.Value{reflect.ValueOf(resourceObj)})
		e.resourceInstances.Delete(node.ID)
	})

	logger.Info("✅ Resource created")
	return nil
}

// pushCleanup records a destruction function for a resource node.
func (e *Executor) pushCleanup(node *dag.Node, fn func()) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	e.cleanupFns[node.ID] = fn
	e.cleanupOrder = append(e.cleanupOrder, node)
}

// destroyResource runs a resource's destruction function early, as soon as
// its last stage consumer has finished.
func (e *Executor) destroyResource(ctx context.Context, node *dag.Node) {
	e.cleanupMu.Lock()
	fn := e.cleanupFns[node.ID]
	e.cleanupMu.Unlock()

	if fn == nil {
		return
	}
	node.Destroy(fn)
}

// executeCleanupStack destroys any remaining resources in LIFO order.
func (e *Executor) executeCleanupStack(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e.cleanupMu.Lock()
	order := make([]*dag.Node, len(e.cleanupOrder))
	copy(order, e.cleanupOrder)
	e.cleanupMu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		e.cleanupMu.Lock()
		fn := e.cleanupFns[node.ID]
		e.cleanupMu.Unlock()
		if fn == nil {
			continue
		}
		logger.Debug("Running cleanup for resource.", "resourceID", node.ID)
		node.Destroy(fn)
	}
}
