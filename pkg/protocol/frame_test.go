package protocol

import (
	"bytes"
	"testing"
)

func TestPowerFrameEncoding(t *testing.T) {
	on := Power(true)
	off := Power(false)

	expectedOn := Frame{
		0x00, 0x04, 0x80, 0x00, 0x00, 0x0d, 0x0e, 0x0b, 0x3b, 0x23,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x32, 0x00, 0x00, 0x90,
	}
	if !on.Equal(expectedOn) {
		t.Errorf("Power(true) = % x, expected % x", []byte(on), []byte(expectedOn))
	}
	if len(off) != powerFrameLength {
		t.Errorf("Power(false) is %d bytes, expected %d", len(off), powerFrameLength)
	}

	// The two variants must differ in byte 9 and nowhere else.
	if on[9] != opcodePowerOn || off[9] != opcodePowerOff {
		t.Errorf("opcode bytes: on=%#x off=%#x", on[9], off[9])
	}
	for i := range on {
		if i == 9 {
			continue
		}
		if on[i] != off[i] {
			t.Errorf("frames differ at byte %d: %#x != %#x", i, on[i], off[i])
		}
	}
}

func TestColorFrameEncoding(t *testing.T) {
	frame := Color(90, 50, 75)
	if len(frame) != colorFrameLength {
		t.Fatalf("Color frame is %d bytes, expected %d", len(frame), colorFrameLength)
	}
	if !bytes.Equal(frame[:10], colorHeader) {
		t.Errorf("header = % x, expected % x", []byte(frame[:10]), colorHeader)
	}
	if frame[10] != 90 || frame[11] != 50 || frame[12] != 75 {
		t.Errorf("payload = %d %d %d, expected 90 50 75", frame[10], frame[11], frame[12])
	}
	for i := 13; i < colorFrameLength; i++ {
		if frame[i] != 0 {
			t.Errorf("trailing byte %d = %#x, expected zero", i, frame[i])
		}
	}
}

func TestColorFrameClamping(t *testing.T) {
	frame := Color(300, -5, 250)
	if frame[10] != 180 || frame[11] != 0 || frame[12] != 100 {
		t.Errorf("clamped payload = %d %d %d, expected 180 0 100", frame[10], frame[11], frame[12])
	}
}

func TestFrameEqual(t *testing.T) {
	if !Power(true).Equal(Power(true)) {
		t.Error("identical frames compared unequal")
	}
	if Power(true).Equal(Power(false)) {
		t.Error("distinct frames compared equal")
	}
	if Power(true).Equal(Color(0, 0, 0)) {
		t.Error("frames of different lengths compared equal")
	}
}
