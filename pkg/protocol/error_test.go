package protocol

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	terminal := []error{
		ErrBluetoothUnavailable,
		ErrBluetoothUnauthorized,
		ErrDeviceNotSelected,
	}
	transient := []error{
		ErrDeviceNotFound,
		ErrConnectionFailed,
		ErrServiceNotFound,
		ErrCharacteristicNotFound,
		ErrTimeout,
		ErrSuperseded,
	}
	for _, err := range terminal {
		if !Terminal(err) {
			t.Errorf("%s: expected terminal", err)
		}
	}
	for _, err := range transient {
		if Terminal(err) {
			t.Errorf("%s: expected transient", err)
		}
	}
	if Terminal(errors.New("plain")) {
		t.Error("foreign error reported as terminal")
	}
}

func TestErrorWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: dial tcp refused", ErrConnectionFailed)
	if !errors.Is(wrapped, ErrConnectionFailed) {
		t.Error("errors.Is failed to match wrapped sentinel")
	}
	if errors.Is(wrapped, ErrTimeout) {
		t.Error("errors.Is matched the wrong sentinel")
	}
	if Terminal(wrapped) {
		t.Error("wrapping changed the terminal classification")
	}
}

func TestUserMessage(t *testing.T) {
	// Each condition maps to one fixed message regardless of wrapping depth.
	direct := UserMessage(ErrDeviceNotFound)
	wrapped := UserMessage(fmt.Errorf("%w: hci0 scan empty", ErrDeviceNotFound))
	if direct != wrapped {
		t.Errorf("wrapped message %q differs from direct message %q", wrapped, direct)
	}
	if direct == "" {
		t.Error("sentinel has no user message")
	}

	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q", got)
	}
	if got := UserMessage(errors.New("backend exploded")); got != "backend exploded" {
		t.Errorf("UserMessage passthrough = %q", got)
	}
}
