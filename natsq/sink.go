package natsq

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/log"
	"github.com/uemux/uemux/metric"
	"github.com/uemux/uemux/pipe"
)

// SinkConfig tunes a publish sink adapter.
type SinkConfig struct {
	// IdleTimeout is the window without any consumer request after which
	// the sink logs a warning. The sink is passive: absence of consumers
	// never halts the pipeline.
	IdleTimeout time.Duration

	Logger *logrus.Logger
	Metric *metric.Registry
}

// DefaultSinkConfig is used for zero-valued config fields.
var DefaultSinkConfig = SinkConfig{
	IdleTimeout: 5 * time.Second,
}

// Sink serves the most recently published buffer to any requesting
// consumer. Repeated requests between publishes return the same bytes:
// slow consumers see repeats, not backlog. Before the first publish the
// reply is an empty, zero-sample payload.
type Sink struct {
	conn    Replier
	subject string
	cfg     SinkConfig
	logger  log.Logger

	current  atomic.Value // []byte, swapped whole per publish
	lastReq  atomic.Int64 // unix nanos of the last consumer request
	lastWarn time.Time
	sub      *nats.Subscription
}

// NewSink returns a new publish sink adapter bound to the subject.
func NewSink(conn Replier, subject string, cfg SinkConfig) *Sink {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultSinkConfig.IdleTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Sink{
		conn:    conn,
		subject: subject,
		cfg:     cfg,
		logger:  logger,
	}
}

// Sink implements pipe.Sink. Subscribing happens here so that a consumer
// connecting before the first buffer still gets a reply.
func (s *Sink) Sink(branch string) (pipe.SinkFunc, error) {
	sub, err := s.conn.Subscribe(s.subject, s.serve)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	s.lastReq.Store(time.Now().UnixNano())
	return func(_ context.Context, b uemux.Buffer) error {
		s.Publish(b)
		return nil
	}, nil
}

// Publish stores the buffer as current. Consumers requesting afterwards
// receive exactly these samples until the next publish.
func (s *Sink) Publish(b uemux.Buffer) {
	s.current.Store(uemux.EncodeBuffer(b))
	s.checkIdle()
}

// serve answers one consumer request with a snapshot of the current
// buffer. The slot is swapped atomically, a reader never observes a
// partially written payload.
func (s *Sink) serve(msg *nats.Msg) {
	s.lastReq.Store(time.Now().UnixNano())
	s.cfg.Metric.Request(s.subject)
	data, _ := s.current.Load().([]byte)
	if err := s.conn.Publish(msg.Reply, data); err != nil {
		s.logger.Warn("reply on ", s.subject, " failed: ", err)
	}
}

// checkIdle logs at most once per idle window when no consumer showed up.
func (s *Sink) checkIdle() {
	last := time.Unix(0, s.lastReq.Load())
	if time.Since(last) < s.cfg.IdleTimeout {
		return
	}
	if time.Since(s.lastWarn) < s.cfg.IdleTimeout {
		return
	}
	s.lastWarn = time.Now()
	s.logger.Warn(s.subject, ": ", uemux.ErrSinkTimeout)
}

// Flush releases the subscription.
func (s *Sink) Flush(string) error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}
