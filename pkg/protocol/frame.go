// Package protocol implements the lamp's binary command protocol: fixed-length
// command frames and the color-space conversion the device's HSV encoding
// requires. Everything in this package is pure and deterministic; no I/O.
package protocol

import "bytes"

// Frame is an immutable fixed-length binary command understood by the lamp.
// Frames are created once by the encoders below and never mutated.
type Frame []byte

const (
	powerFrameLength = 21
	colorFrameLength = 20

	opcodePowerOn  = 0x23
	opcodePowerOff = 0x24
)

// Header and tail bytes are vendor constants, captured from the stock app.
var (
	powerHeader = []byte{0x00, 0x04, 0x80, 0x00, 0x00, 0x0d, 0x0e, 0x0b, 0x3b}
	powerTail   = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x32, 0x00, 0x00, 0x90}
	colorHeader = []byte{0x00, 0x05, 0x80, 0x00, 0x00, 0x0d, 0x0e, 0x0b, 0x3b, 0xa1}
)

// Power encodes an absolute power command. The two variants differ only in
// byte 9.
func Power(on bool) Frame {
	frame := make(Frame, 0, powerFrameLength)
	frame = append(frame, powerHeader...)
	if on {
		frame = append(frame, opcodePowerOn)
	} else {
		frame = append(frame, opcodePowerOff)
	}
	frame = append(frame, powerTail...)
	return frame
}

// Color encodes an absolute HSV color command. Out-of-range components are
// clamped, never rejected: hue to [0,180] (the device uses half-degree
// units), saturation and value to [0,100].
func Color(h, s, v int) Frame {
	frame := make(Frame, colorFrameLength)
	copy(frame, colorHeader)
	frame[10] = byte(clamp(h, 0, 180))
	frame[11] = byte(clamp(s, 0, 100))
	frame[12] = byte(clamp(v, 0, 100))
	return frame
}

// Equal reports byte-exact equality.
func (f Frame) Equal(other Frame) bool {
	return bytes.Equal(f, other)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
