package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/voxpipe/internal/config"
	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// DecodeBody evaluates HCL expressions, applies manifest defaults, and
// populates the provided Go struct using reflection. Struct fields are
// matched to manifest inputs via the `vxp` tag.
func (c *Converter) DecodeBody(
	ctx context.Context,
	inputStruct any,
	args map[string]hcl.Expression,
	defs map[string]*config.InputDefinition,
	evalCtx *hcl.EvalContext,
) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting HCL body decoding.")

	structVal := reflect.ValueOf(inputStruct)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("inputStruct must be a non-nil pointer")
	}
	structVal = structVal.Elem()
	structType := structVal.Type()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldVal := structVal.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		lookupName := field.Name
		if tag := field.Tag.Get("vxp"); tag != "" {
			lookupName = strings.Split(tag, ",")[0]
		}

		inputDef, defExists := defs[lookupName]
		if !defExists {
			continue
		}

		targetPtr := fieldVal.Addr().Interface()
		argExpr, argProvided := args[lookupName]

		if argProvided {
			val, diags := argExpr.Value(evalCtx)
			if diags.HasErrors() {
				return diags
			}
			if err := c.decode(ctx, val, inputDef.Type, targetPtr); err != nil {
				return fmt.Errorf("failed to decode argument '%s': %w", lookupName, err)
			}
		} else {
			if inputDef.Default == nil && !inputDef.Optional {
				return fmt.Errorf("missing required argument %q", lookupName)
			}

			if inputDef.Default != nil {
				if err := c.decode(ctx, *inputDef.Default, inputDef.Type, targetPtr); err != nil {
					return fmt.Errorf("failed to apply default for '%s': %w", lookupName, err)
				}
			}
		}
	}
	logger.Debug("Finished HCL body decoding successfully.")
	return nil
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
// Pointers are dereferenced first, and structs are mapped via `cty` tags.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	if ctyVal, ok := v.(cty.Value); ok {
		return ctyVal, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return cty.NilVal, nil
		}
		rv = rv.Elem()
	}
	v = rv.Interface()

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
