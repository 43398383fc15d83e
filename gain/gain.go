// Package gain provides a pure scaling stage: every sample of a buffer is
// multiplied by a fixed real coefficient.
package gain

import (
	"context"
	"math"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/pipe"
)

// Gain scales a branch segment by a constant coefficient. Zero is a valid
// coefficient and silences the segment.
type Gain struct {
	Coefficient uemux.Gain
}

// New returns a new gain stage.
func New(coefficient uemux.Gain) *Gain {
	return &Gain{Coefficient: coefficient}
}

// Apply scales the buffer by the coefficient. The input buffer is never
// mutated, output length equals input length.
func Apply(b uemux.Buffer, coefficient uemux.Gain) uemux.Buffer {
	out := make(uemux.Buffer, len(b))
	c := complex(float64(coefficient), 0)
	for i, s := range b {
		out[i] = s * c
	}
	return out
}

// Process implements pipe.Processor.
func (g *Gain) Process(string) (pipe.ProcessFunc, error) {
	return func(_ context.Context, b uemux.Buffer) (uemux.Buffer, error) {
		return Apply(b, g.Coefficient), nil
	}, nil
}

// Valid reports whether the coefficient is a finite number.
func (g *Gain) Valid() bool {
	return !math.IsNaN(float64(g.Coefficient)) && !math.IsInf(float64(g.Coefficient), 0)
}
