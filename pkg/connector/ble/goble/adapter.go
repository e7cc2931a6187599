// Package goble implements the ble.Adapter capability interface on top of
// github.com/go-ble/ble, driving the HCI socket directly on Linux.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goble "github.com/go-ble/ble"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/protocol"
)

const dialTimeout = 20 * time.Second

// NewAdapter initializes the HCI device.
func NewAdapter(id string) (ble.Adapter, error) {
	if id != "" {
		log.Warning("ble: adapter ID selection is not supported by the goble backend")
	}
	device, err := newDevice()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrBluetoothUnavailable, err)
	}
	return &adapter{
		device:      device,
		peripherals: make(map[string]*peripheral),
	}, nil
}

type adapter struct {
	device goble.Device

	mu          sync.Mutex
	events      ble.Events
	scanCancel  context.CancelFunc
	peripherals map[string]*peripheral
}

func (a *adapter) State() ble.State {
	// A Device handle implies the HCI interface came up; power loss surfaces
	// as scan or dial errors rather than a state query.
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
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if a.scanCancel != nil {
		a.mu.Unlock()
		cancel()
		return errors.New("ble: scan already active")
	}
	a.scanCancel = cancel
	a.mu.Unlock()

	go func() {
		err := a.device.Scan(ctx, true, func(adv goble.Advertisement) {
			handler(ble.Advertisement{
				ID:          adv.Addr().String(),
				LocalName:   adv.LocalName(),
				RSSI:        int16(adv.RSSI()),
				Connectable: adv.Connectable(),
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warning("ble: scan terminated: %s", err)
		}
	}()
	return nil
}

func (a *adapter) StopScan() error {
	a.mu.Lock()
	cancel := a.scanCancel
	a.scanCancel = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (a *adapter) Connect(id string) error {
	go func() {
		events := a.sink()
		if events == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		client, err := a.device.Dial(ctx, goble.NewAddr(id))
		if err != nil {
			events.Connected(nil, fmt.Errorf("ble: failed to dial %s: %s", id, err))
			return
		}
		p := &peripheral{adapter: a, id: id, client: client}
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
	// HCI connects by address; any identity is dialable without a prior scan.
	return &peripheral{adapter: a, id: id}, true
}

func (a *adapter) Close() error {
	_ = a.StopScan()
	return a.device.Stop()
}

type peripheral struct {
	adapter *adapter
	id      string
	name    string
	client  goble.Client

	mu       sync.Mutex
	services map[string]*goble.Service
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
		parsed, err := goble.Parse(uuid)
		if err != nil {
			events.ServiceDiscovered(p, uuid, fmt.Errorf("ble: invalid service UUID: %s", err))
			return
		}
		services, err := p.client.DiscoverServices([]goble.UUID{parsed})
		if err != nil {
			events.ServiceDiscovered(p, uuid, fmt.Errorf("ble: failed to enumerate services: %s", err))
			return
		}
		if len(services) == 0 {
			events.ServiceDiscovered(p, uuid, errors.New("ble: service not present"))
			return
		}
		p.mu.Lock()
		if p.services == nil {
			p.services = make(map[string]*goble.Service)
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
		parsed, err := goble.Parse(characteristicUUID)
		if err != nil {
			events.CharacteristicDiscovered(p, nil, fmt.Errorf("ble: invalid characteristic UUID: %s", err))
			return
		}
		characteristics, err := p.client.DiscoverCharacteristics([]goble.UUID{parsed}, service)
		if err != nil {
			events.CharacteristicDiscovered(p, nil, fmt.Errorf("ble: failed to discover characteristics: %s", err))
			return
		}
		var match *goble.Characteristic
		for _, c := range characteristics {
			if c.UUID.Equal(parsed) {
				match = c
				break
			}
		}
		if match == nil {
			events.CharacteristicDiscovered(p, nil, errors.New("ble: characteristic not present"))
			return
		}
		events.CharacteristicDiscovered(p, &characteristic{client: p.client, char: match}, nil)
	}()
}

func (p *peripheral) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.CancelConnection()
}

type characteristic struct {
	client goble.Client
	char   *goble.Characteristic
}

func (c *characteristic) UUID() string {
	return c.char.UUID.String()
}

func (c *characteristic) Modes() []ble.WriteMode {
	var modes []ble.WriteMode
	if c.char.Property&goble.CharWriteNR != 0 {
		modes = append(modes, ble.WriteWithoutResponse)
	}
	if c.char.Property&goble.CharWrite != 0 {
		modes = append(modes, ble.WriteWithResponse)
	}
	return modes
}

func (c *characteristic) Write(data []byte, mode ble.WriteMode) error {
	return c.client.WriteCharacteristic(c.char, data, mode == ble.WriteWithoutResponse)
}
