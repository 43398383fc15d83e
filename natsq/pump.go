package natsq

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/log"
	"github.com/uemux/uemux/metric"
	"github.com/uemux/uemux/pipe"
)

// PumpConfig bounds the request/reply discipline of a source adapter.
type PumpConfig struct {
	// Timeout bounds one request/reply round trip.
	Timeout time.Duration
	// Retries is the number of additional attempts after a failed pull.
	// Zero disables retrying, negative means unset.
	Retries int
	// Backoff is the initial delay between attempts, doubled per attempt.
	Backoff time.Duration

	Logger *logrus.Logger
	Metric *metric.Registry
}

// DefaultPumpConfig is used for unset config fields.
var DefaultPumpConfig = PumpConfig{
	Timeout: 500 * time.Millisecond,
	Retries: 5,
	Backoff: 100 * time.Millisecond,
}

// Pump pulls one buffer per request from a remote generator. A branch has
// at most one in-flight request: every pull issues exactly one outbound
// request and waits for exactly one reply.
type Pump struct {
	conn    Requester
	subject string
	cfg     PumpConfig
	logger  log.Logger
}

// NewPump returns a new source adapter pulling from the subject.
func NewPump(conn Requester, subject string, cfg PumpConfig) *Pump {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPumpConfig.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = DefaultPumpConfig.Retries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultPumpConfig.Backoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Pump{
		conn:    conn,
		subject: subject,
		cfg:     cfg,
		logger:  logger,
	}
}

// Pump implements pipe.Pump.
func (p *Pump) Pump(branch string) (pipe.PumpFunc, error) {
	return func(ctx context.Context) (uemux.Buffer, error) {
		return p.pull(ctx)
	}, nil
}

// pull blocks until the peer replies or the retry budget is exhausted.
// Transient failures are retried locally with doubling backoff; exhaustion
// surfaces uemux.ErrSourceUnavailable and terminates the branch.
func (p *Pump) pull(ctx context.Context) (uemux.Buffer, error) {
	backoff := p.cfg.Backoff
	var lastErr error
	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 {
			p.cfg.Metric.Retry(p.subject)
			p.logger.Debug("retrying pull from ", p.subject, " after ", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		rctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		msg, err := p.conn.RequestWithContext(rctx, p.subject, nil)
		cancel()
		if err == nil {
			return uemux.DecodeBuffer(msg.Data)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", uemux.ErrSourceUnavailable, p.subject, p.cfg.Retries+1, lastErr)
}
