package dag

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/voxpipe/internal/config"
	"github.com/vk/voxpipe/internal/registry"
)

func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "failed to parse expression %q: %s", src, diags.Error())
	return expr
}

func stage(runnerType, name string) *config.Stage {
	return &config.Stage{RunnerType: runnerType, Name: name}
}

func modelWith(stages ...*config.Stage) *config.Model {
	return &config.Model{
		Runners:  make(map[string]*config.RunnerDefinition),
		Assets:   make(map[string]*config.AssetDefinition),
		Pipeline: &config.Pipeline{Stages: stages},
	}
}

func TestBuild_ExplicitDependency(t *testing.T) {
	t.Parallel()

	a := stage("script", "A")
	b := stage("script", "B")
	b.DependsOn = []string{"script.A"}

	graph, err := Build(context.Background(), modelWith(a, b), registry.New())
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 2)

	nodeA := graph.Nodes["stage.script.A"]
	nodeB := graph.Nodes["stage.script.B"]
	require.NotNil(t, nodeA)
	require.NotNil(t, nodeB)

	assert.Contains(t, nodeB.Deps, nodeA.ID)
	assert.Contains(t, nodeA.Dependents, nodeB.ID)
	assert.Equal(t, int32(0), nodeA.DepCount())
	assert.Equal(t, int32(1), nodeB.DepCount())
}

func TestBuild_ImplicitDependencyFromArgument(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.DefinitionRegistry["synthetic_data"] = &config.RunnerDefinition{
		Type: "synthetic_data",
		Outputs: map[string]*config.OutputDefinition{
			"images": {Name: "images"},
		},
	}

	source := stage("synthetic_data", "dataset")
	consumer := stage("script", "train")
	consumer.Arguments = map[string]hcl.Expression{
		"args": parseExpr(t, "stage.synthetic_data.dataset.output.images"),
	}

	graph, err := Build(context.Background(), modelWith(source, consumer), r)
	require.NoError(t, err)

	assert.Contains(t, graph.Nodes["stage.script.train"].Deps, "stage.synthetic_data.dataset")
}

func TestBuild_UndeclaredOutputReference(t *testing.T) {
	t.Parallel()

	r := registry.New()
	r.DefinitionRegistry["synthetic_data"] = &config.RunnerDefinition{
		Type:    "synthetic_data",
		Outputs: map[string]*config.OutputDefinition{},
	}

	source := stage("synthetic_data", "dataset")
	consumer := stage("script", "train")
	consumer.Arguments = map[string]hcl.Expression{
		"args": parseExpr(t, "stage.synthetic_data.dataset.output.nope"),
	}

	_, err := Build(context.Background(), modelWith(source, consumer), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `reference to undeclared output "nope"`)
}

func TestBuild_MissingExplicitDependency(t *testing.T) {
	t.Parallel()

	a := stage("script", "A")
	a.DependsOn = []string{"script.ghost"}

	_, err := Build(context.Background(), modelWith(a), registry.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-existent identifier 'script.ghost'")
}

func TestBuild_SelfDependency(t *testing.T) {
	t.Parallel()

	a := stage("script", "A")
	a.DependsOn = []string{"script.A"}

	_, err := Build(context.Background(), modelWith(a), registry.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot depend on itself")
}

func TestBuild_CycleDetection(t *testing.T) {
	t.Parallel()

	a := stage("script", "A")
	a.DependsOn = []string{"script.B"}
	b := stage("script", "B")
	b.DependsOn = []string{"script.A"}

	_, err := Build(context.Background(), modelWith(a, b), registry.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}

func TestBuild_ResourceDescendantCounters(t *testing.T) {
	t.Parallel()

	model := modelWith(stage("http_request", "fetch"))
	model.Pipeline.Stages[0].Uses = map[string]hcl.Expression{
		"client": parseExpr(t, "resource.http_client.shared"),
	}
	model.Pipeline.Resources = []*config.Resource{
		{AssetType: "http_client", Name: "shared"},
	}

	graph, err := Build(context.Background(), model, registry.New())
	require.NoError(t, err)

	res := graph.Nodes["resource.http_client.shared"]
	require.NotNil(t, res)
	assert.Contains(t, graph.Nodes["stage.http_request.fetch"].Deps, res.ID)
	assert.Equal(t, int32(1), res.DescendantCount())
}
