package capture

import (
	"context"
	"errors"
	"fmt"

	"staged/internal/observ"
	"staged/internal/stage"
	"staged/internal/value"
)

// ErrMismatch is returned when a replayed run disagrees with its recorded
// expectation.
var ErrMismatch = errors.New("capture: result mismatch")

// Outcome is the result of one replayed run.
type Outcome struct {
	Run    int
	Args   []value.Value
	Result value.Value
}

// Replay rebuilds the recorded graph, compiles it with e and evaluates every
// recorded run. timer may be nil.
func Replay(ctx context.Context, e *stage.Engine, rec *Recording, r Resolver, timer *observ.Timer) ([]Outcome, error) {
	compiled, err := Compile(ctx, e, rec, r, timer)
	if err != nil {
		return nil, err
	}
	return Evaluate(compiled, rec, r, timer)
}

// Compile rebuilds the recorded graph and compiles it for the recorded domain.
func Compile(ctx context.Context, e *stage.Engine, rec *Recording, r Resolver, timer *observ.Timer) (*stage.Compiled, error) {
	g, root, err := rec.Graph(r)
	if err != nil {
		return nil, err
	}
	return e.Compile(ctx, rec.Domain, g, root, timer)
}

// Evaluate runs every recorded argument set against compiled and checks the
// recorded expectations.
func Evaluate(compiled *stage.Compiled, rec *Recording, r Resolver, timer *observ.Timer) ([]Outcome, error) {
	out := make([]Outcome, 0, len(rec.Runs))
	for i := range rec.Runs {
		args, err := rec.Args(i, r)
		if err != nil {
			return out, err
		}
		var res value.Value
		err = timer.Measure("eval", func() error {
			var err error
			res, err = compiled.Eval(args...)
			return err
		})
		if err != nil {
			return out, fmt.Errorf("run %d: %w", i, err)
		}
		if exp := rec.Expectation(i); exp != nil {
			want, err := DecodeValue(*exp, r)
			if err != nil {
				return out, err
			}
			if !sameValue(res, want) {
				return out, fmt.Errorf("%w: run %d = %s, want %s", ErrMismatch, i, res, want)
			}
		}
		out = append(out, Outcome{Run: i, Args: args, Result: res})
	}
	return out, nil
}

func sameValue(a, b value.Value) bool {
	la, aok := a.AsObject().([]value.Value)
	lb, bok := b.AsObject().([]value.Value)
	if aok || bok {
		if !aok || !bok || len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !sameValue(la[i], lb[i]) {
				return false
			}
		}
		return true
	}
	return a.Equal(b)
}
