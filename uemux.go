package uemux

import (
	"errors"
	"time"

	"github.com/rs/xid"
)

// Buffer is a fixed-length block of complex samples. It is the atomic unit
// of transfer between pipeline stages: a stage either consumes a whole
// buffer or none of it.
type Buffer []complex128

// Size returns the number of samples in the buffer.
func (b Buffer) Size() int {
	return len(b)
}

// Clone returns a copy of the buffer. Stages that keep a reference past the
// processing call must clone, as upstream may reuse the original.
func (b Buffer) Clone() Buffer {
	if b == nil {
		return nil
	}
	out := make(Buffer, len(b))
	copy(out, b)
	return out
}

// SampleRate is a number of samples per second.
type SampleRate int

// DurationOf returns the time duration of n samples at this rate.
func (rate SampleRate) DurationOf(n int) time.Duration {
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}

// Gain is a real scaling coefficient applied elementwise to a branch
// segment. Zero is valid and silences the segment.
type Gain float64

// UID is a string unique identifier.
type UID string

// NewUID returns a new unique identifier.
func NewUID() UID {
	return UID(xid.New().String())
}

var (
	// ErrSourceUnavailable is returned when an upstream peer did not reply
	// within the configured timeout and the retry budget is exhausted.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrBufferLengthMismatch is returned when combiner inputs carry
	// buffers of unequal length. It indicates a misconfigured topology and
	// is always fatal.
	ErrBufferLengthMismatch = errors.New("buffer length mismatch")

	// ErrSinkTimeout reports that no consumer request was observed within
	// the configured idle window. The sink logs it and keeps publishing.
	ErrSinkTimeout = errors.New("no consumer request within idle window")
)
