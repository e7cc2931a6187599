//go:build !linux

package goble

import (
	"errors"

	"github.com/go-ble/ble"
)

func newDevice() (ble.Device, error) {
	return nil, errors.New("the goble backend is only supported on Linux; use the tinygo backend")
}
