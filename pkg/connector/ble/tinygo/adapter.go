// Package tinygo implements the ble.Adapter capability interface on top of
// tinygo.org/x/bluetooth.
package tinygo

import (
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/protocol"
)

// NewAdapter initializes the host Bluetooth stack. The id selects a specific
// HCI adapter where the platform supports that; pass "" for the default.
func NewAdapter(id string) (ble.Adapter, error) {
	device, err := newAdapter(id)
	if err != nil {
		return nil, fmt.Errorf("ble: failed to create adapter: %s", err)
	}
	if err = device.Enable(); err != nil {
		if IsAdapterError(err) {
			return nil, fmt.Errorf("%w\n%s", protocol.ErrBluetoothUnavailable, AdapterErrorHelpMessage(err))
		}
		return nil, fmt.Errorf("%w: %s", protocol.ErrBluetoothUnavailable, err)
	}

	return &adapter{
		device:      device,
		peripherals: make(map[string]*peripheral),
	}, nil
}

type adapter struct {
	device *bluetooth.Adapter

	mu          sync.Mutex
	events      ble.Events
	scanning    bool
	peripherals map[string]*peripheral
}

func (a *adapter) State() ble.State {
	// The library offers no portable power/authorization query after Enable
	// succeeds; a usable adapter is reported as powered on, and failures to
	// enable surface from NewAdapter instead.
	return ble.StatePoweredOn
}

func (a *adapter) SetEvents(events ble.Events) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = events
}

func (a *adapter) sink() ble.Events {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events
}

func (a *adapter) StartScan(handler func(ble.Advertisement)) error {
	a.mu.Lock()
	if a.scanning {
		a.mu.Unlock()
		return errors.New("ble: scan already active")
	}
	a.scanning = true
	a.mu.Unlock()

	// Scan blocks until StopScan, so it runs in its own goroutine.
	go func() {
		err := a.device.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			handler(ble.Advertisement{
				ID:          result.Address.String(),
				LocalName:   result.LocalName(),
				RSSI:        result.RSSI,
				Connectable: true,
			})
		})
		if err != nil {
			log.Warning("ble: scan terminated: %s", err)
		}
		a.mu.Lock()
		a.scanning = false
		a.mu.Unlock()
	}()
	return nil
}

func (a *adapter) StopScan() error {
	a.mu.Lock()
	scanning := a.scanning
	a.mu.Unlock()
	if !scanning {
		return nil
	}
	if err := a.device.StopScan(); err != nil {
		return fmt.Errorf("ble: failed to stop scan: %s", err)
	}
	return nil
}

func (a *adapter) Connect(id string) error {
	addr, err := parseAddress(id)
	if err != nil {
		return fmt.Errorf("%w: %s", protocol.ErrDeviceNotFound, err)
	}

	go func() {
		events := a.sink()
		if events == nil {
			return
		}
		device, err := a.device.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			events.Connected(nil, err)
			return
		}
		p := &peripheral{adapter: a, id: id, device: device}
		a.mu.Lock()
		a.peripherals[id] = p
		a.mu.Unlock()
		events.Connected(p, nil)
	}()
	return nil
}

func (a *adapter) CachedPeripheral(id string) (ble.Peripheral, bool) {
	a.mu.Lock()
	p, ok := a.peripherals[id]
	a.mu.Unlock()
	if ok {
		return p, true
	}
	// The stack connects by address, so any parseable identity is reachable
	// without a prior scan. The returned handle becomes live on Connect.
	if _, err := parseAddress(id); err != nil {
		return nil, false
	}
	return &peripheral{adapter: a, id: id}, true
}

func (a *adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.device = nil
	a.peripherals = nil
	return nil
}

type peripheral struct {
	adapter *adapter
	id      string
	name    string
	device  bluetooth.Device

	mu       sync.Mutex
	services map[string]bluetooth.DeviceService
}

func (p *peripheral) ID() string {
	return p.id
}

func (p *peripheral) LocalName() string {
	return p.name
}

func (p *peripheral) DiscoverService(uuid string) {
	go func() {
		events := p.adapter.sink()
		if events == nil {
			return
		}
		parsed, err := bluetooth.ParseUUID(uuid)
		if err != nil {
			events.ServiceDiscovered(p, uuid, fmt.Errorf("ble: invalid service UUID: %s", err))
			return
		}
		services, err := p.device.DiscoverServices([]bluetooth.UUID{parsed})
		if err != nil {
			events.ServiceDiscovered(p, uuid, fmt.Errorf("ble: failed to enumerate services: %s", err))
			return
		}
		if len(services) != 1 {
			events.ServiceDiscovered(p, uuid, errors.New("ble: service not present"))
			return
		}
		p.mu.Lock()
		if p.services == nil {
			p.services = make(map[string]bluetooth.DeviceService)
		}
		p.services[uuid] = services[0]
		p.mu.Unlock()
		events.ServiceDiscovered(p, uuid, nil)
	}()
}

func (p *peripheral) DiscoverCharacteristic(serviceUUID, characteristicUUID string) {
	go func() {
		events := p.adapter.sink()
		if events == nil {
			return
		}
		p.mu.Lock()
		service, ok := p.services[serviceUUID]
		p.mu.Unlock()
		if !ok {
			events.CharacteristicDiscovered(p, nil, errors.New("ble: service not discovered"))
			return
		}
		parsed, err := bluetooth.ParseUUID(characteristicUUID)
		if err != nil {
			events.CharacteristicDiscovered(p, nil, fmt.Errorf("ble: invalid characteristic UUID: %s", err))
			return
		}
		characteristics, err := service.DiscoverCharacteristics([]bluetooth.UUID{parsed})
		if err != nil {
			events.CharacteristicDiscovered(p, nil, fmt.Errorf("ble: failed to discover characteristics: %s", err))
			return
		}
		if len(characteristics) != 1 {
			events.CharacteristicDiscovered(p, nil, errors.New("ble: characteristic not present"))
			return
		}
		events.CharacteristicDiscovered(p, &characteristic{char: characteristics[0]}, nil)
	}()
}

func (p *peripheral) Close() error {
	return p.device.Disconnect()
}

type characteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *characteristic) UUID() string {
	return c.char.UUID().String()
}

func (c *characteristic) Modes() []ble.WriteMode {
	// The library does not expose characteristic properties; the supported
	// write procedure is fixed per platform, matching the write call each
	// platform backend provides.
	return supportedWriteModes
}

func (c *characteristic) Write(data []byte, mode ble.WriteMode) error {
	supported := false
	for _, m := range supportedWriteModes {
		if m == mode {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("ble: %s not supported on this platform", mode)
	}
	n, err := deviceCharacteristicWrite(c.char, data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("ble: short write: %d of %d bytes", n, len(data))
	}
	return nil
}
