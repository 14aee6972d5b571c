package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/voxpipe/internal/config"
	"github.com/vk/voxpipe/internal/schema"
)

// translateStage converts the HCL-specific stage schema into the agnostic model.
func (l *Loader) translateStage(s *schema.Stage) *config.Stage {
	return &config.Stage{
		RunnerType: s.RunnerType,
		Name:       s.Name,
		Arguments:  extractBodyAttributes(bodyOf(s.Arguments)),
		Uses:       extractBodyAttributes(usesBodyOf(s.Uses)),
		DependsOn:  s.DependsOn,
	}
}

// translateResource converts the HCL-specific resource schema into the agnostic model.
func (l *Loader) translateResource(r *schema.Resource) *config.Resource {
	return &config.Resource{
		AssetType: r.AssetType,
		Name:      r.Name,
		Arguments: extractBodyAttributes(bodyOf(r.Arguments)),
		DependsOn: r.DependsOn,
	}
}

// translateRunnerDefinition converts the HCL-specific runner schema into the agnostic model.
func (l *Loader) translateRunnerDefinition(ctx context.Context, s *schema.RunnerDefinition) (*config.RunnerDefinition, error) {
	r := &config.RunnerDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
		Uses:        make(map[string]*config.UsesDefinition),
	}
	if s.Lifecycle != nil {
		r.Lifecycle = &config.Lifecycle{OnRun: s.Lifecycle.OnRun}
	}
	for _, in := range s.Inputs {
		inputDef, err := translateInputDefinition(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("runner %q, input %q: %w", s.Type, in.Name, err)
		}
		r.Inputs[in.Name] = inputDef
	}
	for _, out := range s.Outputs {
		outType, err := typeExprToCtyType(ctx, out.Type)
		if err != nil {
			return nil, fmt.Errorf("runner %q, output %q: %w", s.Type, out.Name, err)
		}
		r.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        outType,
			Description: out.Description,
		}
	}
	for _, use := range s.Uses {
		r.Uses[use.LocalName] = &config.UsesDefinition{
			LocalName: use.LocalName,
			AssetType: use.AssetType,
		}
	}
	return r, nil
}

// translateAssetDefinition converts the HCL-specific asset schema into the agnostic model.
func (l *Loader) translateAssetDefinition(ctx context.Context, s *schema.AssetDefinition) (*config.AssetDefinition, error) {
	a := &config.AssetDefinition{
		Type:        s.Type,
		Description: s.Description,
		Inputs:      make(map[string]*config.InputDefinition),
		Outputs:     make(map[string]*config.OutputDefinition),
	}
	if s.Lifecycle != nil {
		a.Lifecycle = &config.AssetLifecycle{
			Create:  s.Lifecycle.Create,
			Destroy: s.Lifecycle.Destroy,
		}
	}
	for _, in := range s.Inputs {
		inputDef, err := translateInputDefinition(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("asset %q, input %q: %w", s.Type, in.Name, err)
		}
		a.Inputs[in.Name] = inputDef
	}
	for _, out := range s.Outputs {
		outType, err := typeExprToCtyType(ctx, out.Type)
		if err != nil {
			return nil, fmt.Errorf("asset %q, output %q: %w", s.Type, out.Name, err)
		}
		a.Outputs[out.Name] = &config.OutputDefinition{
			Name:        out.Name,
			Type:        outType,
			Description: out.Description,
		}
	}
	return a, nil
}

// translateInputDefinition resolves the declared type and default of a single input.
func translateInputDefinition(ctx context.Context, in *schema.InputDefinition) (*config.InputDefinition, error) {
	inType, err := typeExprToCtyType(ctx, in.Type)
	if err != nil {
		return nil, err
	}

	def := &config.InputDefinition{
		Name:        in.Name,
		Type:        inType,
		Description: in.Description,
	}
	// A default is only valid if it is present and not null.
	if in.Default != nil && !in.Default.IsNull() {
		def.Default = in.Default
		def.Optional = true
	}
	return def, nil
}

// bodyOf safely unwraps the arguments block body.
func bodyOf(args *schema.StageArgs) hcl.Body {
	if args == nil {
		return nil
	}
	return args.Body
}

// usesBodyOf safely unwraps the uses block body.
func usesBodyOf(uses *schema.UsesBlock) hcl.Body {
	if uses == nil {
		return nil
	}
	return uses.Body
}

// extractBodyAttributes flattens an HCL body into a map of named expressions.
func extractBodyAttributes(body hcl.Body) map[string]hcl.Expression {
	if body == nil {
		return nil
	}
	attrs, _ := body.JustAttributes()
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]hcl.Expression, len(attrs))
	for name, attr := range attrs {
		out[name] = attr.Expr
	}
	return out
}
