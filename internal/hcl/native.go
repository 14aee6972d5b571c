package hcl

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// ctyToNative converts a cty.Value to a plain Go value (string, float64,
// bool, map[string]any, []any), for targets typed as `any`.
func ctyToNative(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	if val.Type().IsPrimitiveType() {
		switch val.Type() {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			return normalizeNumber(val.AsBigFloat()), nil
		case cty.Bool:
			return val.True(), nil
		default:
			return nil, fmt.Errorf("unsupported primitive type: %s", val.Type().FriendlyName())
		}
	}
	if val.Type().IsObjectType() || val.Type().IsMapType() {
		out := make(map[string]any)
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			nativeVal, err := ctyToNative(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = nativeVal
		}
		return out, nil
	}
	if val.Type().IsTupleType() || val.Type().IsListType() || val.Type().IsSetType() {
		var out []any
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			nativeVal, err := ctyToNative(v)
			if err != nil {
				return nil, err
			}
			out = append(out, nativeVal)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", val.Type().FriendlyName())
}

// normalizeNumber keeps integral numbers as int64 so JSON patches do not
// turn epochs or batch sizes into floats.
func normalizeNumber(bf *big.Float) any {
	if bf.IsInt() {
		if i, acc := bf.Int64(); acc == big.Exact {
			return i
		}
	}
	f, _ := bf.Float64()
	return f
}
