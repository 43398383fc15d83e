// Package throttle provides a pacing stage that limits the long-run sample
// rate of a branch. Pacing blocks the caller for a bounded delay, buffers
// are never dropped: back-pressure propagates upstream instead.
package throttle

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/pipe"
)

// Throttle paces buffers so that the average output rate does not exceed
// the target samples per second. The token bucket starts empty, so the
// first buffer is paced the same way as every following one and no call
// blocks longer than bufferLen/rate.
type Throttle struct {
	rate    uemux.SampleRate
	limiter *rate.Limiter
}

// New returns a new throttle for the target sample rate. Burst equals one
// second worth of samples: buffers longer than that cannot be paced and
// are rejected by Emit.
func New(target uemux.SampleRate) *Throttle {
	limiter := rate.NewLimiter(rate.Limit(target), int(target))
	// drain the initially full bucket
	limiter.AllowN(time.Now(), int(target))
	return &Throttle{
		rate:    target,
		limiter: limiter,
	}
}

// Emit releases the buffer once the pacing clock permits it. The wait is
// interrupted by context cancellation.
func (t *Throttle) Emit(ctx context.Context, b uemux.Buffer) (uemux.Buffer, error) {
	if b.Size() > t.limiter.Burst() {
		return nil, fmt.Errorf("buffer of %d samples exceeds one second at rate %d", b.Size(), t.rate)
	}
	if err := t.limiter.WaitN(ctx, b.Size()); err != nil {
		return nil, err
	}
	return b, nil
}

// Process implements pipe.Processor.
func (t *Throttle) Process(string) (pipe.ProcessFunc, error) {
	return t.Emit, nil
}
