package mixer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/internal/mock"
	"github.com/uemux/uemux/mixer"
	"github.com/uemux/uemux/pipe"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name     string
		buffers  []uemux.Buffer
		expected uemux.Buffer
	}{
		{
			name:     "two inputs",
			buffers:  []uemux.Buffer{{1 + 1i, 2}, {3, 4i}},
			expected: uemux.Buffer{4 + 1i, 2 + 4i},
		},
		{
			name:     "three inputs",
			buffers:  []uemux.Buffer{{0.05}, {0.08}, {0.05}},
			expected: uemux.Buffer{0.18},
		},
		{
			name:     "zero buffer is identity",
			buffers:  []uemux.Buffer{{0, 0, 0}, {1 + 2i, -1, 0.5i}},
			expected: uemux.Buffer{1 + 2i, -1, 0.5i},
		},
		{
			name:     "single input",
			buffers:  []uemux.Buffer{{7 - 2i}},
			expected: uemux.Buffer{7 - 2i},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := mixer.Combine(test.buffers)
			require.NoError(t, err)
			require.Equal(t, test.expected.Size(), out.Size())
			for i := range test.expected {
				assert.InDelta(t, real(test.expected[i]), real(out[i]), 1e-12)
				assert.InDelta(t, imag(test.expected[i]), imag(out[i]), 1e-12)
			}
		})
	}
}

// Summation does not depend on the order of inputs.
func TestCombineCommutative(t *testing.T) {
	a := uemux.Buffer{1 + 1i, 2}
	b := uemux.Buffer{3, 4i}
	c := uemux.Buffer{-1, -1}

	first, err := mixer.Combine([]uemux.Buffer{a, b, c})
	require.NoError(t, err)
	second, err := mixer.Combine([]uemux.Buffer{c, a, b})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCombineLengthMismatch(t *testing.T) {
	tests := []struct {
		name    string
		buffers []uemux.Buffer
	}{
		{"two inputs", []uemux.Buffer{{1, 2}, {1}}},
		{"three inputs", []uemux.Buffer{{1}, {1}, {1, 2, 3}}},
		{"empty input", []uemux.Buffer{{}, {1}}},
		{"no inputs", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := mixer.Combine(test.buffers)
			assert.ErrorIs(t, err, uemux.ErrBufferLengthMismatch)
		})
	}
}

// Two member branches deliver into the mixer, the combined branch sums
// them buffer by buffer in arrival order.
func TestMixerPipes(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := mixer.New()
	members := []*mock.Pump{
		{Limit: 4, BufferSize: 2, Value: 0.7},
		{Limit: 4, BufferSize: 2, Value: 0.5},
	}
	pipes := make([]*pipe.Pipe, 0, 3)
	for i, member := range members {
		p, err := pipe.New(string(rune('a'+i)),
			pipe.WithPump(member),
			pipe.WithSink(m),
		)
		require.NoError(t, err)
		pipes = append(pipes, p)
	}

	sink := &mock.Sink{}
	combined, err := pipe.New("combined",
		pipe.WithPump(m),
		pipe.WithSink(sink),
	)
	require.NoError(t, err)
	pipes = append(pipes, combined)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errcs := make([]<-chan error, 0, len(pipes))
	for _, p := range pipes {
		errcs = append(errcs, p.Run(ctx))
	}
	// the combined branch ends once the first member is exhausted
	for _, errc := range errcs[:2] {
		assert.NoError(t, <-errc)
	}
	cancel()
	assert.NoError(t, <-errcs[2])

	buffers := sink.Buffers()
	require.Equal(t, 4, len(buffers))
	for _, b := range buffers {
		require.Equal(t, 2, b.Size())
		for i := range b {
			assert.InDelta(t, 1.2, real(b[i]), 1e-12)
			assert.InDelta(t, 0, imag(b[i]), 1e-12)
		}
	}
}

// A member delivering longer buffers than its peers is a fatal
// configuration error surfaced on the combined branch.
func TestMixerLengthMismatchFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := mixer.New()
	members := []*mock.Pump{
		{Limit: 2, BufferSize: 2, Value: 1},
		{Limit: 2, BufferSize: 3, Value: 1},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errcs := make([]<-chan error, 0, 3)
	for i, member := range members {
		p, err := pipe.New(string(rune('a'+i)),
			pipe.WithPump(member),
			pipe.WithSink(m),
		)
		require.NoError(t, err)
		errcs = append(errcs, p.Run(ctx))
	}
	sink := &mock.Sink{}
	combined, err := pipe.New("combined",
		pipe.WithPump(m),
		pipe.WithSink(sink),
	)
	require.NoError(t, err)
	combinedErrc := combined.Run(ctx)

	err = <-combinedErrc
	assert.ErrorIs(t, err, uemux.ErrBufferLengthMismatch)
	cancel()
	for _, errc := range errcs {
		<-errc
	}
	assert.Empty(t, sink.Buffers())
}
