// Package mock provides mocks for pipeline stages and allows to execute
// integration tests without sockets.
package mock

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/pipe"
)

// Pump mocks a pipe.Pump: it produces Limit constant-valued buffers.
type Pump struct {
	Limit       int
	BufferSize  int
	Value       complex128
	Interval    time.Duration
	ErrorOnCall error

	Flushed bool
	counter
}

// Pump implements pipe.Pump.
func (m *Pump) Pump(string) (pipe.PumpFunc, error) {
	return func(ctx context.Context) (uemux.Buffer, error) {
		if m.ErrorOnCall != nil {
			return nil, m.ErrorOnCall
		}
		if m.Messages() >= m.Limit {
			return nil, io.EOF
		}
		if m.Interval > 0 {
			select {
			case <-time.After(m.Interval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		b := make(uemux.Buffer, m.BufferSize)
		for i := range b {
			b[i] = m.Value
		}
		m.advance(b.Size())
		return b, nil
	}, nil
}

// Flush implements pipe.Flusher.
func (m *Pump) Flush(string) error {
	m.Flushed = true
	return nil
}

// Processor mocks a pipe.Processor: it passes buffers through unchanged.
type Processor struct {
	ErrorOnCall error
	counter
}

// Process implements pipe.Processor.
func (m *Processor) Process(string) (pipe.ProcessFunc, error) {
	return func(_ context.Context, b uemux.Buffer) (uemux.Buffer, error) {
		if m.ErrorOnCall != nil {
			return nil, m.ErrorOnCall
		}
		m.advance(b.Size())
		return b, nil
	}, nil
}

// Sink mocks a pipe.Sink: it records all received buffers.
type Sink struct {
	ErrorOnCall error

	Flushed bool
	counter

	mu      sync.Mutex
	buffers []uemux.Buffer
}

// Sink implements pipe.Sink.
func (m *Sink) Sink(string) (pipe.SinkFunc, error) {
	return func(_ context.Context, b uemux.Buffer) error {
		if m.ErrorOnCall != nil {
			return m.ErrorOnCall
		}
		m.mu.Lock()
		m.buffers = append(m.buffers, b.Clone())
		m.mu.Unlock()
		m.advance(b.Size())
		return nil
	}, nil
}

// Flush implements pipe.Flusher.
func (m *Sink) Flush(string) error {
	m.Flushed = true
	return nil
}

// Buffers returns a snapshot of all received buffers.
func (m *Sink) Buffers() []uemux.Buffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uemux.Buffer, len(m.buffers))
	copy(out, m.buffers)
	return out
}

// counter counts processed messages and samples.
type counter struct {
	mu       sync.Mutex
	messages int
	samples  int
}

func (c *counter) advance(size int) {
	c.mu.Lock()
	c.messages++
	c.samples += size
	c.mu.Unlock()
}

// Messages returns the number of processed buffers.
func (c *counter) Messages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Samples returns the number of processed samples.
func (c *counter) Samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}
