package uemux

import (
	"encoding/binary"
	"fmt"
	"math"
)

// elementWidth is the wire size of one complex sample: two little-endian
// float32 values, I then Q.
const elementWidth = 8

// EncodeBuffer packs a buffer into its wire form. Payload length is always
// a multiple of the element width, buffer length stays implicit.
func EncodeBuffer(b Buffer) []byte {
	data := make([]byte, len(b)*elementWidth)
	for i, s := range b {
		binary.LittleEndian.PutUint32(data[i*elementWidth:], math.Float32bits(float32(real(s))))
		binary.LittleEndian.PutUint32(data[i*elementWidth+4:], math.Float32bits(float32(imag(s))))
	}
	return data
}

// DecodeBuffer unpacks a wire payload into a buffer. An empty payload is a
// valid zero-sample buffer.
func DecodeBuffer(data []byte) (Buffer, error) {
	if len(data)%elementWidth != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a whole number of %d-byte samples", len(data), elementWidth)
	}
	b := make(Buffer, len(data)/elementWidth)
	for i := range b {
		re := math.Float32frombits(binary.LittleEndian.Uint32(data[i*elementWidth:]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(data[i*elementWidth+4:]))
		b[i] = complex(float64(re), float64(im))
	}
	return b, nil
}
