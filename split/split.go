// Package split provides a fan-out bridge: it sinks one branch and pumps
// identical buffers into several downstream branches.
package split

import (
	"context"
	"io"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/pipe"
)

// Splitter delivers every sunk buffer to all registered downstream
// branches. Downstream stages never mutate their input, so all branches
// share a reference to the same buffer.
type Splitter struct {
	pumps []chan uemux.Buffer
}

// New returns a new splitter.
func New() *Splitter {
	return &Splitter{}
}

// Sink implements pipe.Sink for the upstream branch. Must be called once
// per splitter.
func (s *Splitter) Sink(string) (pipe.SinkFunc, error) {
	return func(ctx context.Context, b uemux.Buffer) error {
		for _, pump := range s.pumps {
			select {
			case pump <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}, nil
}

// Flush ends all downstream branches.
func (s *Splitter) Flush(string) error {
	for _, pump := range s.pumps {
		close(pump)
	}
	s.pumps = nil
	return nil
}

// Pump implements pipe.Pump for one downstream branch. Must be called once
// per downstream branch before the topology starts.
func (s *Splitter) Pump(string) (pipe.PumpFunc, error) {
	pump := make(chan uemux.Buffer, 1)
	s.pumps = append(s.pumps, pump)
	return func(ctx context.Context) (uemux.Buffer, error) {
		select {
		case b, ok := <-pump:
			if !ok {
				return nil, io.EOF
			}
			return b, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}
