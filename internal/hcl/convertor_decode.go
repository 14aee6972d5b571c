package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// decode is a recursive function that populates a Go value from a cty.Value,
// guided by a manifest-derived cty.Type.
func (c *Converter) decode(ctx context.Context, val cty.Value, manifestType cty.Type, goVal any) error {
	valPtr := reflect.ValueOf(goVal)
	goPtr := valPtr.Elem()
	goType := goPtr.Type()
	logger := ctxlog.FromContext(ctx).With("go_kind", goType.Kind().String())

	// If the target field in the Go struct is of type cty.Value, we don't need
	// to decode it further. We just assign the value directly.
	if goType == reflect.TypeOf(cty.Value{}) {
		logger.Debug("Target is cty.Value, performing direct assignment.")
		if val.IsKnown() {
			goPtr.Set(reflect.ValueOf(val))
		}
		return nil
	}

	if !val.IsKnown() || val.IsNull() {
		logger.Debug("Skipping decode for null or unknown value.")
		return nil // Nothing to decode.
	}

	switch goType.Kind() {
	case reflect.Struct:
		logger.Debug("Decoding as struct.")
		if !val.Type().IsObjectType() && val.Type() != cty.DynamicPseudoType {
			return fmt.Errorf("type mismatch: cannot decode cty value of type %s into Go struct %s", val.Type().FriendlyName(), goType.String())
		}

		isManifestObject := manifestType.IsObjectType()
		attrMap := val.AsValueMap()

		for i := 0; i < goType.NumField(); i++ {
			fieldDef := goType.Field(i)
			fieldVal := goPtr.Field(i)

			if !fieldDef.IsExported() || !fieldVal.CanSet() {
				continue
			}

			tagName := strings.Split(fieldDef.Tag.Get("cty"), ",")[0]
			if tagName == "" || tagName == "-" {
				continue
			}

			attrVal, ok := attrMap[tagName]
			if !ok {
				continue
			}

			var attrManifestType cty.Type
			if isManifestObject {
				attrManifestType = manifestType.AttributeTypes()[tagName]
			} else {
				attrManifestType = attrVal.Type()
			}

			if err := c.decode(ctx, attrVal, attrManifestType, fieldVal.Addr().Interface()); err != nil {
				return fmt.Errorf("in attribute '%s': %w", tagName, err)
			}
		}
		return nil

	case reflect.Interface: // This handles 'any'
		logger.Debug("Decoding as interface (any).")
		nativeVal, err := ctyToNative(val)
		if err != nil {
			return err
		}
		if nativeVal != nil {
			goPtr.Set(reflect.ValueOf(nativeVal))
		}
		return nil

	case reflect.Map:
		return c.decodeMap(ctx, val, manifestType, goPtr)

	case reflect.Slice:
		logger.Debug("Decoding as slice.")
		if !val.Type().IsListType() && !val.Type().IsTupleType() && !val.Type().IsSetType() {
			return fmt.Errorf("type mismatch: cannot decode cty.%s into Go slice %s", val.Type().FriendlyName(), goType.String())
		}

		if val.Type().IsTupleType() || val.Type().IsSetType() {
			goElemType := goType.Elem()
			ctyElemType, err := gocty.ImpliedType(reflect.Zero(goElemType).Interface())
			if err != nil {
				return fmt.Errorf("cannot imply cty type for slice element %s: %w", goElemType.String(), err)
			}

			listVal, err := convert.Convert(val, cty.List(ctyElemType))
			if err != nil {
				return fmt.Errorf("cannot convert value to a uniform list for slice %s: %w", goType.String(), err)
			}
			val = listVal
		}

		newSlice := reflect.MakeSlice(goType, val.LengthInt(), val.LengthInt())
		var elemManifestType cty.Type
		if manifestType.IsListType() || manifestType.IsSetType() {
			elemManifestType = manifestType.ElementType()
		} else {
			elemManifestType = val.Type().ElementType()
		}

		it := val.ElementIterator()
		for i := 0; it.Next(); i++ {
			_, elemVal := it.Element()
			if err := c.decode(ctx, elemVal, elemManifestType, newSlice.Index(i).Addr().Interface()); err != nil {
				return fmt.Errorf("in slice element %d: %w", i, err)
			}
		}
		goPtr.Set(newSlice)
		return nil

	default: // Base cases for primitives (string, int, bool, float64, etc.)
		logger.Debug("Decoding as primitive.")
		targetType := manifestType
		if targetType == cty.DynamicPseudoType {
			impliedType, err := gocty.ImpliedType(goPtr.Interface())
			if err != nil {
				return fmt.Errorf("cannot imply cty type for %s: %w", goType.String(), err)
			}
			targetType = impliedType
		}
		convertedVal, err := convert.Convert(val, targetType)
		if err != nil {
			return fmt.Errorf("cannot convert value of type %s to required type %s: %w", val.Type().FriendlyName(), targetType.FriendlyName(), err)
		}
		return gocty.FromCtyValue(convertedVal, goVal)
	}
}

// decodeMap populates a Go map from a cty object or map value.
func (c *Converter) decodeMap(ctx context.Context, val cty.Value, manifestType cty.Type, goPtr reflect.Value) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding as map.")

	goType := goPtr.Type()
	if goType.Key().Kind() != reflect.String {
		return fmt.Errorf("unsupported map key type %s: only string keys are supported", goType.Key().String())
	}
	if !val.Type().IsMapType() && !val.Type().IsObjectType() {
		return fmt.Errorf("type mismatch: cannot decode cty.%s into Go map %s", val.Type().FriendlyName(), goType.String())
	}

	newMap := reflect.MakeMap(goType)
	var elemManifestType cty.Type
	if manifestType.IsMapType() {
		elemManifestType = manifestType.ElementType()
	} else {
		elemManifestType = cty.DynamicPseudoType
	}

	for it := val.ElementIterator(); it.Next(); {
		k, v := it.Element()
		elemPtr := reflect.New(goType.Elem())
		elemType := elemManifestType
		if elemType == cty.DynamicPseudoType {
			elemType = v.Type()
		}
		if err := c.decode(ctx, v, elemType, elemPtr.Interface()); err != nil {
			return fmt.Errorf("in map key '%s': %w", k.AsString(), err)
		}
		newMap.SetMapIndex(reflect.ValueOf(k.AsString()), elemPtr.Elem())
	}
	goPtr.Set(newMap)
	return nil
}
