// Package wavtap provides a file tap sink: it records a branch's I/Q
// stream as a two-channel wav file for offline inspection, I on the left
// channel and Q on the right.
package wavtap

import (
	"context"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/uemux/uemux"
	"github.com/uemux/uemux/pipe"
)

const bitDepth = 16

// Sink saves complex samples to a wav file. It cannot be reused for
// consequent runs.
type Sink struct {
	path       string
	sampleRate uemux.SampleRate
	file       *os.File
	encoder    *wav.Encoder
}

// NewSink creates a new wav tap sink.
func NewSink(path string, sampleRate uemux.SampleRate) *Sink {
	return &Sink{
		path:       path,
		sampleRate: sampleRate,
	}
}

// Sink implements pipe.Sink.
func (s *Sink) Sink(string) (pipe.SinkFunc, error) {
	f, err := os.Create(s.path)
	if err != nil {
		return nil, err
	}
	s.file = f
	s.encoder = wav.NewEncoder(f, int(s.sampleRate), bitDepth, 2, 1)
	return func(_ context.Context, b uemux.Buffer) error {
		ib := &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 2,
				SampleRate:  int(s.sampleRate),
			},
			Data:           make([]int, 2*len(b)),
			SourceBitDepth: bitDepth,
		}
		for i, sample := range b {
			ib.Data[2*i] = toPCM(real(sample))
			ib.Data[2*i+1] = toPCM(imag(sample))
		}
		return s.encoder.Write(ib)
	}, nil
}

// Flush flushes the encoder and closes the file.
func (s *Sink) Flush(string) error {
	if s.encoder == nil {
		return nil
	}
	if err := s.encoder.Close(); err != nil {
		return err
	}
	return s.file.Close()
}

// toPCM clips the value to [-1, 1] and scales it to 16 bit.
func toPCM(v float64) int {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int(v * 32767)
}
