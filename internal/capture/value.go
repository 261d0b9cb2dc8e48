package capture

import (
	"fmt"
	"math"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"staged/internal/value"
)

const (
	valList   = "list"
	valFunc   = "func"
	valString = "string"
)

// EncodeValue converts v to its recorded form.
func EncodeValue(v value.Value, r Resolver) (Val, error) {
	switch v.Kind {
	case value.KindObject:
		switch obj := v.AsObject().(type) {
		case []value.Value:
			out := Val{Kind: valList, List: make([]Val, len(obj))}
			for i, e := range obj {
				ev, err := EncodeValue(e, r)
				if err != nil {
					return Val{}, err
				}
				out.List[i] = ev
			}
			return out, nil
		case string:
			return Val{Kind: valString, Str: norm.NFC.String(obj)}, nil
		}
		if r.Name != nil {
			if name, ok := r.Name(v); ok {
				return Val{Kind: valFunc, Str: name}, nil
			}
		}
		return Val{}, fmt.Errorf("%w: %T", ErrUnnamed, v.AsObject())
	case value.KindFloat, value.KindDouble:
		return Val{Kind: v.Kind.String(), Float: v.AsDouble()}, nil
	case value.KindBool:
		if v.AsBool() {
			return Val{Kind: v.Kind.String(), Int: 1}, nil
		}
		return Val{Kind: v.Kind.String()}, nil
	case value.KindInvalid:
		return Val{}, fmt.Errorf("capture: cannot record an invalid value")
	default:
		return Val{Kind: v.Kind.String(), Int: v.AsLong()}, nil
	}
}

// DecodeValue converts a recorded value back.
func DecodeValue(v Val, r Resolver) (value.Value, error) {
	switch v.Kind {
	case valList:
		out := make([]value.Value, len(v.List))
		for i, e := range v.List {
			dv, err := DecodeValue(e, r)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = dv
		}
		return value.Object(out), nil
	case valString:
		return value.Object(v.Str), nil
	case valFunc:
		if r.Lookup == nil {
			return value.Value{}, fmt.Errorf("%w: %q", ErrUnresolved, v.Str)
		}
		fn, ok := r.Lookup(v.Str)
		if !ok {
			return value.Value{}, fmt.Errorf("%w: %q", ErrUnresolved, v.Str)
		}
		return fn, nil
	}

	kind, err := value.ParseKind(v.Kind)
	if err != nil {
		return value.Value{}, err
	}
	switch kind {
	case value.KindBool:
		return value.Bool(v.Int != 0), nil
	case value.KindByte:
		n, err := safecast.Conv[int8](v.Int)
		return value.Byte(n), err
	case value.KindChar:
		n, err := safecast.Conv[uint16](v.Int)
		return value.Char(n), err
	case value.KindShort:
		n, err := safecast.Conv[int16](v.Int)
		return value.Short(n), err
	case value.KindInt:
		n, err := safecast.Conv[int32](v.Int)
		return value.Int(n), err
	case value.KindLong:
		return value.Long(v.Int), nil
	case value.KindFloat:
		if math.Abs(v.Float) > math.MaxFloat32 && !math.IsInf(v.Float, 0) {
			return value.Value{}, fmt.Errorf("capture: float %g out of range", v.Float)
		}
		return value.Float(float32(v.Float)), nil
	case value.KindDouble:
		return value.Double(v.Float), nil
	default:
		return value.Value{}, fmt.Errorf("capture: object value of kind %q", v.Kind)
	}
}
