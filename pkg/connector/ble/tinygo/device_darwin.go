package tinygo

import (
	"errors"
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/halolight/lamp-command/pkg/connector/ble"
)

func IsAdapterError(_ error) bool {
	return false
}

func AdapterErrorHelpMessage(err error) string {
	return err.Error()
}

func newAdapter(id string) (*bluetooth.Adapter, error) {
	if id != "" {
		return nil, errors.New("ble: adapter selection is not supported on Darwin")
	}

	return bluetooth.DefaultAdapter, nil
}

var (
	deviceCharacteristicWrite = bluetooth.DeviceCharacteristic.Write
	supportedWriteModes       = []ble.WriteMode{ble.WriteWithResponse}
)

func parseAddress(address string) (bluetooth.Address, error) {
	// Darwin hides MAC addresses behind per-host peripheral UUIDs.
	uuid, err := bluetooth.ParseUUID(address)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("ble: failed to parse peripheral UUID: %s", err)
	}

	return bluetooth.Address{
		UUID: uuid,
	}, nil
}
