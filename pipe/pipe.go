// Package pipe provides a branch execution engine for signal pipelines.
//
// A Pipe is one branch: a single pump, zero or more processors and a single
// sink. Each stage runs in its own goroutine, stages are joined by
// unbuffered channels, so a blocked source never stalls unrelated branches.
package pipe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/log"
	"github.com/uemux/uemux/metric"
)

type (
	// PumpFunc pulls the next buffer of a branch. It returns io.EOF when
	// the stream is finished gracefully.
	PumpFunc func(ctx context.Context) (uemux.Buffer, error)

	// ProcessFunc transforms a buffer. It must not mutate the input.
	ProcessFunc func(ctx context.Context, b uemux.Buffer) (uemux.Buffer, error)

	// SinkFunc consumes a buffer.
	SinkFunc func(ctx context.Context, b uemux.Buffer) error
)

// Pump is a source of samples. The allocator binds the component to a
// branch and returns a closure used for every pull.
type Pump interface {
	Pump(branch string) (PumpFunc, error)
}

// Processor is an intermediate transform stage.
type Processor interface {
	Process(branch string) (ProcessFunc, error)
}

// Sink is the final stage of a branch.
type Sink interface {
	Sink(branch string) (SinkFunc, error)
}

// Flusher is executed once the branch stops, regardless of the cause.
// Components use it to release sockets, close files or signal downstream
// branches.
type Flusher interface {
	Flush(branch string) error
}

// Pipe is a single branch with a fully defined processing sequence:
//	 1 		pump
//	 0..n 	processors
//	 1		sink
type Pipe struct {
	uid  string
	name string

	pump       *pumpRunner
	processors []*processRunner
	sink       *sinkRunner

	metric *metric.Registry
	logger log.Logger
}

// Option provides a way to set functional parameters to pipe.
type Option func(p *Pipe) error

// ErrMissingStage is returned when a pipe is built without a pump or a sink.
var ErrMissingStage = errors.New("pipe requires a pump and a sink")

// New creates a new pipe for the named branch and applies provided options.
func New(name string, options ...Option) (*Pipe, error) {
	p := &Pipe{
		uid:        xid.New().String(),
		name:       name,
		processors: make([]*processRunner, 0),
		logger:     log.GetLogger(),
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	if p.pump == nil || p.sink == nil {
		return nil, ErrMissingStage
	}
	return p, nil
}

// WithLogger sets logger to pipe.
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Pipe) error {
		p.logger = logger
		return nil
	}
}

// WithMetric adds counters for this pipe and all components.
func WithMetric(m *metric.Registry) Option {
	return func(p *Pipe) error {
		p.metric = m
		return nil
	}
}

// WithPump sets pump to pipe.
func WithPump(pump Pump) Option {
	return func(p *Pipe) error {
		fn, err := pump.Pump(p.name)
		if err != nil {
			return fmt.Errorf("pump: %w", err)
		}
		p.pump = &pumpRunner{fn: fn, component: pump}
		return nil
	}
}

// WithProcessors sets processors to pipe.
func WithProcessors(processors ...Processor) Option {
	return func(p *Pipe) error {
		for _, proc := range processors {
			fn, err := proc.Process(p.name)
			if err != nil {
				return fmt.Errorf("processor: %w", err)
			}
			p.processors = append(p.processors, &processRunner{fn: fn, component: proc})
		}
		return nil
	}
}

// WithSink sets sink to pipe.
func WithSink(sink Sink) Option {
	return func(p *Pipe) error {
		fn, err := sink.Sink(p.name)
		if err != nil {
			return fmt.Errorf("sink: %w", err)
		}
		p.sink = &sinkRunner{fn: fn, component: sink}
		return nil
	}
}

// Name returns the branch name of the pipe.
func (p *Pipe) Name() string {
	return p.name
}

// Run starts the execution of pipe. The returned channel is closed after
// all stages have stopped; at most one error is sent. Buffers keep strict
// arrival order within the branch. The first stage error cancels the
// whole branch, so an upstream stage never stays blocked on a consumer
// that already failed.
func (p *Pipe) Run(ctx context.Context) <-chan error {
	p.logger.Debug("starting branch ", p.name)
	ctx, cancel := context.WithCancel(ctx)
	errcList := make([]<-chan error, 0, 2+len(p.processors))

	out, errc := p.pump.run(ctx, p)
	errcList = append(errcList, errc)

	for _, proc := range p.processors {
		out, errc = proc.run(ctx, p, out)
		errcList = append(errcList, errc)
	}

	errcList = append(errcList, p.sink.run(ctx, p, out))

	merger := errorMerger{errorChan: make(chan error, 1), cancel: cancel}
	merger.add(errcList...)
	go merger.wait()
	return merger.errorChan
}

func (p *Pipe) meter(component interface{}) metric.ResetFunc {
	return p.metric.Meter(componentType(component), 0)
}
