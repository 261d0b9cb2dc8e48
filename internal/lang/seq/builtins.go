package seq

import (
	"reflect"
	"slices"

	"staged/internal/synth"
	"staged/internal/value"
)

// Builtins is the table of named functions available to seq programs and to
// recordings.
var Builtins = map[string]value.Value{
	"inc":      value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() + 1), nil })),
	"dec":      value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() - 1), nil })),
	"double":   value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() * 2), nil })),
	"square":   value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(v.AsLong() * v.AsLong()), nil })),
	"negate":   value.Object(synth.MapFunc(func(v value.Value) (value.Value, error) { return value.Long(-v.AsLong()), nil })),
	"even":     value.Object(synth.PredFunc(func(v value.Value) (bool, error) { return v.AsLong()%2 == 0, nil })),
	"odd":      value.Object(synth.PredFunc(func(v value.Value) (bool, error) { return v.AsLong()%2 != 0, nil })),
	"positive": value.Object(synth.PredFunc(func(v value.Value) (bool, error) { return v.AsLong() > 0, nil })),
}

// Lookup resolves a builtin by name.
func Lookup(name string) (value.Value, bool) {
	v, ok := Builtins[name]
	return v, ok
}

// NameOf returns the builtin name of a function value.
func NameOf(v value.Value) (string, bool) {
	obj := v.AsObject()
	if obj == nil || reflect.TypeOf(obj).Kind() != reflect.Func {
		return "", false
	}
	ptr := reflect.ValueOf(obj).Pointer()
	for _, name := range Names() {
		if reflect.ValueOf(Builtins[name].AsObject()).Pointer() == ptr {
			return name, true
		}
	}
	return "", false
}

// Names lists the builtins in sorted order.
func Names() []string {
	out := make([]string, 0, len(Builtins))
	for name := range Builtins {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
