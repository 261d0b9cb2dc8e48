package bind

import (
	"fmt"
	"slices"

	"staged/internal/diag"
	"staged/internal/value"
)

// Closure is a compiled staged computation. Implementations must be
// immutable after construction; Eval may run concurrently on distinct
// Environments.
type Closure interface {
	Eval(env *Env) (value.Value, error)
}

// Const ignores the Environment and returns a baked-in value. List values
// are copied on every evaluation so callers own the result.
type Const struct {
	V value.Value
}

// Eval implements Closure.
func (c Const) Eval(*Env) (value.Value, error) { return ownList(c.V), nil }

func ownList(v value.Value) value.Value {
	list, ok := v.AsObject().([]value.Value)
	if !ok || v.Kind != value.KindObject {
		return v
	}
	out := slices.Clone(list)
	for i, x := range out {
		out[i] = ownList(x)
	}
	return value.Object(out)
}

// SlotRead returns the value of one Environment slot.
type SlotRead struct {
	Slot Slot
	Type value.Kind
}

// Eval implements Closure.
func (c SlotRead) Eval(env *Env) (value.Value, error) {
	v, err := env.Get(c.Slot)
	if err != nil {
		return value.Value{}, err
	}
	if v.Kind != c.Type {
		return value.Value{}, &diag.EvalError{
			Code: diag.EvalTypeMismatch,
			Msg:  fmt.Sprintf("slot %d holds %s, want %s", c.Slot, v.Kind, c.Type),
		}
	}
	return v, nil
}

// Func adapts a plain function to Closure.
type Func func(env *Env) (value.Value, error)

// Eval implements Closure.
func (f Func) Eval(env *Env) (value.Value, error) { return f(env) }
