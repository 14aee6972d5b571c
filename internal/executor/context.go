package executor

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// buildEvalContext creates the HCL evaluation context for a node. It exposes
// the outputs of every successfully completed stage under
// stage.<runner_type>.<instance_name>.output so downstream arguments can
// reference them.
func (e *Executor) buildEvalContext(ctx context.Context, node *dag.Node) *hcl.EvalContext {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building HCL evaluation context.", "node", node.ID)
	vars := make(map[string]cty.Value)

	// map[runner_type] -> map[instance_name] -> wrapped output
	stageOutputsByRunner := make(map[string]map[string]cty.Value)

	for _, graphNode := range e.Graph.Nodes {
		// Only consider stage nodes that finished successfully with an output.
		if graphNode.Type != dag.StageNode || graphNode.GetState() != dag.Done {
			continue
		}
		outputVal, ok := graphNode.Output.(cty.Value)
		if !ok || outputVal == cty.NilVal {
			continue
		}

		runnerType := graphNode.StageConfig.RunnerType
		instanceName := graphNode.StageConfig.Name

		if _, ok := stageOutputsByRunner[runnerType]; !ok {
			stageOutputsByRunner[runnerType] = make(map[string]cty.Value)
		}
		stageOutputsByRunner[runnerType][instanceName] = cty.ObjectVal(map[string]cty.Value{
			"output": outputVal,
		})
		logger.Debug("Collected completed stage output.",
			"source_node_id", graphNode.ID,
			"runner", runnerType,
			"name", instanceName,
		)
	}

	finalStageOutputs := make(map[string]cty.Value)
	for runnerType, instances := range stageOutputsByRunner {
		finalStageOutputs[runnerType] = cty.ObjectVal(instances)
	}
	vars["stage"] = cty.ObjectVal(finalStageOutputs)

	logger.Debug("Finished building HCL evaluation context.", "node", node.ID)
	return &hcl.EvalContext{Variables: vars}
}
