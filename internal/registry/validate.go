package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry performs a strict parity check between manifests and Go code.
// It checks both the presence of inputs and the compatibility of their types.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for runnerType, def := range r.DefinitionRegistry {
		if def.Lifecycle == nil {
			errs = append(errs, fmt.Sprintf("runner '%s': manifest has no lifecycle block", runnerType))
			continue
		}
		handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]
		if !ok {
			errs = append(errs, fmt.Sprintf("runner '%s': handler '%s' is not registered", runnerType, def.Lifecycle.OnRun))
			continue
		}

		if handler.InputType == nil {
			if len(def.Inputs) > 0 {
				errs = append(errs, fmt.Sprintf("runner '%s': manifest declares inputs, but Go handler has no input struct", runnerType))
			}
			continue
		}

		hclInputs := make(map[string]struct{})
		for name := range def.Inputs {
			hclInputs[name] = struct{}{}
		}

		goInputs := make(map[string]reflect.StructField)
		inputType := handler.InputType
		for i := 0; i < inputType.NumField(); i++ {
			field := inputType.Field(i)
			if !field.IsExported() {
				continue
			}
			tag := field.Tag.Get("vxp")
			tagName := strings.Split(tag, ",")[0]
			if tagName != "" && tagName != "-" {
				goInputs[tagName] = field
			}
		}

		// Check for presence mismatches
		for name := range goInputs {
			if _, ok := hclInputs[name]; !ok {
				errs = append(errs, fmt.Sprintf("runner '%s': Go struct has field for input '%s' which is not declared in manifest", runnerType, name))
			}
		}
		for name := range hclInputs {
			if _, ok := goInputs[name]; !ok {
				errs = append(errs, fmt.Sprintf("runner '%s': manifest declares input '%s' which is not found in Go struct", runnerType, name))
			}
		}

		// Check for type mismatches
		for name, inputDef := range def.Inputs {
			goField, ok := goInputs[name]
			if !ok {
				continue // Already handled by presence check
			}

			manifestType := inputDef.Type
			if manifestType.Equals(cty.DynamicPseudoType) {
				logger.Debug("Manifest input declared with 'type = any', skipping static type check.", "runner", runnerType, "input", name)
				continue
			}

			// Infer type from the Go field
			goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
			if err != nil {
				errs = append(errs, fmt.Sprintf("runner '%s', input '%s': could not imply cty type from Go field type %s: %v", runnerType, name, goField.Type, err))
				continue
			}

			// The core type check
			if !manifestType.Equals(goFieldType) {
				errs = append(errs, fmt.Sprintf("runner '%s', input '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides type '%s'",
					runnerType, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
			}
		}
	}

	for assetType, def := range r.AssetDefinitionRegistry {
		if def.Lifecycle == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': manifest has no lifecycle block", assetType))
			continue
		}
		if handler, ok := r.AssetHandlerRegistry[def.Lifecycle.Create]; !ok || handler.CreateFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': create handler '%s' is not registered", assetType, def.Lifecycle.Create))
		}
		if handler, ok := r.AssetHandlerRegistry[def.Lifecycle.Destroy]; !ok || handler.DestroyFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': destroy handler '%s' is not registered", assetType, def.Lifecycle.Destroy))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
