package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// runStageNode handles the execution of a stateless stage.
func (e *Executor) runStageNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("stage", node.ID)
	stageCtx := ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Starting stage")

	runnerDef, ok := e.registry.DefinitionRegistry[node.StageConfig.RunnerType]
	if !ok {
		return fmt.Errorf("unknown runner type '%s'", node.StageConfig.RunnerType)
	}
	handlerName := runnerDef.Lifecycle.OnRun
	registeredHandler, ok := e.registry.HandlerRegistry[handlerName]
	if !ok {
		return fmt.Errorf("handler '%s' not registered", handlerName)
	}

	logger.Debug("Decoding stage arguments.")
	evalCtx := e.buildEvalContext(ctx, node)
	inputStruct := registeredHandler.NewInput()
	if inputStruct != nil {
		err := e.converter.DecodeBody(stageCtx, inputStruct, node.StageConfig.Arguments, runnerDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("decoding arguments for stage %s: %w", node.ID, err)
		}
	}

	logger.Debug("Building stage dependencies.")
	depsStruct, err := e.buildDepsStruct(stageCtx, node, registeredHandler)
	if err != nil {
		return err
	}

	logger.Debug("Calling stage run handler.", "handler", handlerName)
	handlerFunc := reflect.ValueOf(registeredHandler.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(stageCtx), reflect.ValueOf(depsStruct)}
	if inputStruct == nil {
		inputType := handlerFunc.Type().In(2)
		callArgs = append(callArgs, reflect.Zero(inputType))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := handlerFunc.Call(callArgs)
	outputVal, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	if outputVal == nil {
		node.Output = cty.NilVal
	} else if ctyOutput, isCty := outputVal.(cty.Value); isCty {
		node.Output = ctyOutput
	} else {
		converted, err := e.converter.ToCtyValue(outputVal)
		if err != nil {
			return fmt.Errorf("converting output of stage %s: %w", node.ID, err)
		}
		node.Output = converted
	}

	logger.Info("✅ Finished stage")
	return nil
}
