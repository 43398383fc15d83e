// Package mixer provides a fan-in combiner: it sums the sample streams of
// several branches elementwise into one combined stream.
//
// The mixer sinks every member branch and pumps the combined branch. It is
// the sole synchronization point of a topology: the k-th combined buffer is
// produced only once every member delivered its k-th buffer, which holds
// all member workers to the cadence of the slowest one.
package mixer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/pipe"
)

// Mixer sums time-aligned buffers of registered inputs into one output
// stream. All inputs must be registered before the topology starts.
type Mixer struct {
	in   chan inMessage
	out  chan uemux.Buffer
	done chan struct{}

	inputs  int
	once    sync.Once
	started atomic.Bool

	err error // set before out is closed
}

type inMessage struct {
	inputID string
	buffer  uemux.Buffer // nil reports that the input is finished
}

// frame aligns the k-th buffers of all inputs.
type frame struct {
	buffers  []uemux.Buffer
	expected int
	next     *frame
}

// New returns a new mixer.
func New() *Mixer {
	return &Mixer{
		in:   make(chan inMessage, 1),
		out:  make(chan uemux.Buffer),
		done: make(chan struct{}),
	}
}

// Combine sums the buffers elementwise. All buffers must be non-empty and
// of equal length, otherwise uemux.ErrBufferLengthMismatch is returned:
// unequal lengths indicate a misconfigured topology, not a transient
// condition.
func Combine(buffers []uemux.Buffer) (uemux.Buffer, error) {
	if len(buffers) == 0 {
		return nil, fmt.Errorf("%w: no input buffers", uemux.ErrBufferLengthMismatch)
	}
	size := buffers[0].Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: empty input buffer", uemux.ErrBufferLengthMismatch)
	}
	for _, b := range buffers {
		if b.Size() != size {
			return nil, fmt.Errorf("%w: got %d and %d samples", uemux.ErrBufferLengthMismatch, size, b.Size())
		}
	}
	out := make(uemux.Buffer, size)
	for _, b := range buffers {
		for i, s := range b {
			out[i] += s
		}
	}
	return out, nil
}

// Sink registers a new input and implements pipe.Sink for a member branch.
// Must be called once per member before the topology starts.
func (m *Mixer) Sink(inputID string) (pipe.SinkFunc, error) {
	m.inputs++
	return func(ctx context.Context, b uemux.Buffer) error {
		m.start(ctx)
		select {
		case m.in <- inMessage{inputID: inputID, buffer: b}:
			return nil
		case <-m.done:
			// combined stream has ended, member has nowhere to deliver
			return io.EOF
		case <-ctx.Done():
			return ctx.Err()
		}
	}, nil
}

// Flush reports the end of one input. The combined stream is defined only
// while every member produces, so the first finished input ends it.
func (m *Mixer) Flush(inputID string) error {
	if !m.started.Load() {
		// no buffer ever reached the mixer, there is no stream to end
		return nil
	}
	select {
	case m.in <- inMessage{inputID: inputID}:
	case <-m.done:
	}
	return nil
}

// Pump implements pipe.Pump for the combined branch.
func (m *Mixer) Pump(string) (pipe.PumpFunc, error) {
	return func(ctx context.Context) (uemux.Buffer, error) {
		m.start(ctx)
		select {
		case b, ok := <-m.out:
			if !ok {
				if m.err != nil {
					return nil, m.err
				}
				return nil, io.EOF
			}
			return b, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}

// start launches the mix loop once all allocators are bound. Topology is
// static, so the first processed buffer implies registration is complete.
func (m *Mixer) start(ctx context.Context) {
	m.once.Do(func() {
		m.started.Store(true)
		go m.mix(ctx)
	})
}

// mix aligns the k-th buffers of all inputs and emits their sum. Frames
// complete in order because every input delivers in order, so frontier
// always points at the oldest unemitted frame. When an input finishes, the
// frames it already contributed to are still emitted, then the combined
// stream ends: it is defined only while every member produces.
func (m *Mixer) mix(ctx context.Context) {
	defer close(m.out)
	defer close(m.done)
	current := make(map[string]*frame)
	head := &frame{expected: m.inputs}
	frontier := head
	var stop *frame
	for {
		var msg inMessage
		select {
		case msg = <-m.in:
		case <-ctx.Done():
			return
		}
		f, ok := current[msg.inputID]
		if !ok {
			f = head
		}
		if msg.buffer == nil {
			stop = f
			if frontier == stop {
				return
			}
			continue
		}
		f.buffers = append(f.buffers, msg.buffer)
		if f.next == nil {
			f.next = &frame{expected: f.expected}
		}
		current[msg.inputID] = f.next
		if len(f.buffers) == f.expected {
			sum, err := Combine(f.buffers)
			f.buffers = nil
			if err != nil {
				m.err = err
				return
			}
			select {
			case m.out <- sum:
			case <-ctx.Done():
				return
			}
			frontier = f.next
			if stop != nil && frontier == stop {
				return
			}
		}
	}
}
