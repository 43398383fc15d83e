// Package flow builds a running pipeline from a declarative topology: a
// list of typed nodes and edges compiled once at startup into concurrent
// branch workers. The same engine hosts any topology the configuration
// describes; the stages stay unit-testable in isolation.
package flow

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/uemux/uemux/config"
	"github.com/uemux/uemux/gain"
	"github.com/uemux/uemux/log"
	"github.com/uemux/uemux/metric"
	"github.com/uemux/uemux/mixer"
	"github.com/uemux/uemux/natsq"
	"github.com/uemux/uemux/pipe"
	"github.com/uemux/uemux/split"
	"github.com/uemux/uemux/throttle"
	"github.com/uemux/uemux/wavtap"
)

// Conn is the socket transport shared by all source and sink adapters.
// Satisfied by *nats.Conn.
type Conn interface {
	natsq.Requester
	natsq.Replier
}

// Flow is a compiled topology: one pipe per branch.
type Flow struct {
	pipes  []*pipe.Pipe
	logger *logrus.Logger
	metric *metric.Registry
}

// Option provides a way to set functional parameters to flow.
type Option func(f *Flow)

// WithLogger sets logger to flow and all branches.
func WithLogger(logger *logrus.Logger) Option {
	return func(f *Flow) {
		f.logger = logger
	}
}

// WithMetric adds counters for all branches.
func WithMetric(m *metric.Registry) Option {
	return func(f *Flow) {
		f.metric = m
	}
}

// Build validates the topology and compiles it into branches. The branch
// set is static: it is constructed once here and torn down only when Run
// returns.
func Build(cfg *config.Config, conn Conn, options ...Option) (*Flow, error) {
	f := &Flow{logger: log.GetLogger()}
	for _, option := range options {
		option(f)
	}
	g := newGraph(cfg)
	if err := g.validate(); err != nil {
		return nil, err
	}
	components := f.components(cfg, conn)

	for _, name := range g.order {
		n := g.nodes[name]
		switch n.Type {
		case config.TypeSource:
			p, err := f.branch(g, components, name, components[name].(pipe.Pump), g.out[name][0])
			if err != nil {
				return nil, err
			}
			f.pipes = append(f.pipes, p)
		case config.TypeCombiner:
			p, err := f.branch(g, components, name, components[name].(pipe.Pump), g.out[name][0])
			if err != nil {
				return nil, err
			}
			f.pipes = append(f.pipes, p)
		case config.TypeSplit:
			for _, next := range g.out[name] {
				p, err := f.branch(g, components, next, components[name].(pipe.Pump), next)
				if err != nil {
					return nil, err
				}
				f.pipes = append(f.pipes, p)
			}
		}
	}
	return f, nil
}

// components instantiates one stage per node.
func (f *Flow) components(cfg *config.Config, conn Conn) map[string]interface{} {
	components := make(map[string]interface{}, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		switch n.Type {
		case config.TypeSource:
			retries := -1 // unset, adapter default applies
			if cfg.Source.Retries != nil {
				retries = *cfg.Source.Retries
			}
			components[n.Name] = natsq.NewPump(conn, n.Subject, natsq.PumpConfig{
				Timeout: cfg.Source.Timeout.Std(),
				Retries: retries,
				Backoff: cfg.Source.Backoff.Std(),
				Logger:  f.logger,
				Metric:  f.metric,
			})
		case config.TypeGain:
			components[n.Name] = gain.New(n.Gain)
		case config.TypeThrottle:
			components[n.Name] = throttle.New(cfg.SampleRate)
		case config.TypeCombiner:
			components[n.Name] = mixer.New()
		case config.TypeSplit:
			components[n.Name] = split.New()
		case config.TypeSink:
			components[n.Name] = natsq.NewSink(conn, n.Subject, natsq.SinkConfig{
				IdleTimeout: cfg.Sink.IdleTimeout.Std(),
				Logger:      f.logger,
				Metric:      f.metric,
			})
		case config.TypeWavTap:
			components[n.Name] = wavtap.NewSink(n.Path, cfg.SampleRate)
		}
	}
	return components
}

// branch assembles one pipe, walking the chain from the first stage after
// the pump until a terminating node.
func (f *Flow) branch(g *graph, components map[string]interface{}, name string, pump pipe.Pump, start string) (*pipe.Pipe, error) {
	var processors []pipe.Processor
	var sink pipe.Sink
	cur := start
walk:
	for {
		n := g.nodes[cur]
		switch n.Type {
		case config.TypeGain, config.TypeThrottle:
			processors = append(processors, components[cur].(pipe.Processor))
			cur = g.out[cur][0]
		case config.TypeSink, config.TypeWavTap, config.TypeCombiner, config.TypeSplit:
			sink = components[cur].(pipe.Sink)
			break walk
		default:
			return nil, fmt.Errorf("node %q: type %s cannot appear mid-branch", cur, n.Type)
		}
	}
	return pipe.New(name,
		pipe.WithPump(pump),
		pipe.WithProcessors(processors...),
		pipe.WithSink(sink),
		pipe.WithLogger(f.logger),
		pipe.WithMetric(f.metric),
	)
}

// Branches returns the number of compiled branches.
func (f *Flow) Branches() int {
	return len(f.pipes)
}

// Run executes all branches until the context is canceled or a branch
// stops. A stopped branch breaks the topology for every co-combined
// branch, so the first one to finish releases all others: blocked socket
// calls and pacing waits are unblocked within the configured timeout.
func (f *Flow) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range f.pipes {
		p := p
		g.Go(func() error {
			err := <-p.Run(ctx)
			entry := log.WithBranch(f.logger, p.Name())
			if err != nil {
				entry.Warn("branch failed: ", err)
			} else {
				entry.Info("branch finished")
			}
			cancel()
			return err
		})
	}
	return g.Wait()
}
