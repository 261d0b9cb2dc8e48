package expr

import "math"

const (
	chunkBits = 8
	chunkSize = 1 << chunkBits
)

// Arena stores values in fixed-size chunks addressed by 1-based handles; 0
// is never issued. Pointers returned by Get stay valid as the arena grows.
type Arena[T any] struct {
	chunks [][]T
	n      uint32
}

// NewArena creates an arena sized for about capHint values.
func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{chunks: make([][]T, 0, capHint/chunkSize+1)}
}

// Allocate stores v and returns its handle.
func (a *Arena[T]) Allocate(v T) uint32 {
	if a.n == math.MaxUint32 {
		panic("expr: arena full")
	}
	if a.n%chunkSize == 0 {
		a.chunks = append(a.chunks, make([]T, 0, chunkSize))
	}
	last := len(a.chunks) - 1
	a.chunks[last] = append(a.chunks[last], v)
	a.n++
	return a.n
}

// Get returns nil for 0 and for handles not yet issued.
func (a *Arena[T]) Get(h uint32) *T {
	if h == 0 || h > a.n {
		return nil
	}
	i := h - 1
	return &a.chunks[i>>chunkBits][i&(chunkSize-1)]
}

// Len returns the number of stored values.
func (a *Arena[T]) Len() uint32 { return a.n }
