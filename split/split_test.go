package split_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/gain"
	"github.com/uemux/uemux/internal/mock"
	"github.com/uemux/uemux/pipe"
	"github.com/uemux/uemux/split"
)

// One upstream branch fanned out to three downstream branches, each with
// its own gain.
func TestSplitPipes(t *testing.T) {
	defer goleak.VerifyNone(t)

	splitter := split.New()
	upstream, err := pipe.New("tap",
		pipe.WithPump(&mock.Pump{Limit: 8, BufferSize: 4, Value: 1}),
		pipe.WithSink(splitter),
	)
	require.NoError(t, err)

	coefficients := []uemux.Gain{0.05, 0.08, 0.05}
	sinks := make([]*mock.Sink, len(coefficients))
	downstream := make([]*pipe.Pipe, len(coefficients))
	for i, c := range coefficients {
		sinks[i] = &mock.Sink{}
		downstream[i], err = pipe.New("tap_out",
			pipe.WithPump(splitter),
			pipe.WithProcessors(gain.New(c)),
			pipe.WithSink(sinks[i]),
		)
		require.NoError(t, err)
	}

	ctx := context.Background()
	errcs := []<-chan error{upstream.Run(ctx)}
	for _, p := range downstream {
		errcs = append(errcs, p.Run(ctx))
	}
	for _, errc := range errcs {
		require.NoError(t, <-errc)
	}

	for i, sink := range sinks {
		buffers := sink.Buffers()
		require.Equal(t, 8, len(buffers))
		for _, b := range buffers {
			require.Equal(t, 4, b.Size())
			for _, s := range b {
				assert.InDelta(t, float64(coefficients[i]), real(s), 1e-12)
			}
		}
	}
}

func TestSplitCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	splitter := split.New()
	upstream, err := pipe.New("tap",
		pipe.WithPump(&mock.Pump{Limit: 100, BufferSize: 4, Value: 1}),
		pipe.WithSink(splitter),
	)
	require.NoError(t, err)
	// A downstream branch is registered but never run, so the upstream
	// branch blocks on fan-out until canceled.
	_, err = splitter.Pump("stuck")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := upstream.Run(ctx)
	cancel()
	assert.NoError(t, <-errc)
}
