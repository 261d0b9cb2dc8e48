// Package bind assigns Environment slots to deferred leaves at compile time
// and defines the closures that read them at evaluation time.
package bind

import (
	"fmt"

	"staged/internal/diag"
	"staged/internal/value"
)

// Slot is a stable index into an Environment.
type Slot uint32

// Env holds the runtime values of one top-level evaluation, addressed by
// Slot. It is built once per evaluation and never mutated afterwards, so
// closures can read it concurrently without locking.
type Env struct {
	vals []value.Value
}

// NewEnv copies vals into a fresh Environment.
func NewEnv(vals ...value.Value) *Env {
	own := make([]value.Value, len(vals))
	copy(own, vals)
	return &Env{vals: own}
}

// Len returns the number of slots.
func (e *Env) Len() int {
	if e == nil {
		return 0
	}
	return len(e.vals)
}

// Get returns the value stored in slot s.
func (e *Env) Get(s Slot) (value.Value, error) {
	if e == nil || int(s) >= len(e.vals) {
		return value.Value{}, &diag.EvalError{
			Code: diag.EvalSlotOutOfRange,
			Msg:  fmt.Sprintf("slot %d of %d", s, e.Len()),
		}
	}
	return e.vals[s], nil
}
