// Package ble defines the capability interface the session layer requires
// from a host BLE stack. The interface is deliberately callback-shaped:
// connect and discovery results arrive asynchronously on an Events sink, and
// the session layer is responsible for bridging them back into sequential,
// awaitable operations.
//
// Two backends implement Adapter: tinygo (tinygo.org/x/bluetooth,
// cross-platform) and goble (github.com/go-ble/ble, Linux HCI).
package ble

// Default UUIDs of the lamp's vendor-generic control service and its
// write-only control characteristic. Overridable through configuration for
// clone devices that relocate the endpoint.
const (
	LampServiceUUID        = "0000ffd5-0000-1000-8000-00805f9b34fb"
	LampCharacteristicUUID = "0000ffd9-0000-1000-8000-00805f9b34fb"
)

// State describes the host adapter's power and authorization state.
type State int

const (
	StateUnknown State = iota
	StateUnsupported
	StateUnauthorized
	StatePoweredOff
	StatePoweredOn
)

func (s State) String() string {
	switch s {
	case StateUnsupported:
		return "unsupported"
	case StateUnauthorized:
		return "unauthorized"
	case StatePoweredOff:
		return "powered-off"
	case StatePoweredOn:
		return "powered-on"
	default:
		return "unknown"
	}
}

// Operable returns true if the adapter can scan and connect.
func (s State) Operable() bool {
	return s == StatePoweredOn
}

// Definitive returns true if the state will not resolve further on its own:
// either the adapter is usable or the user has to intervene.
func (s State) Definitive() bool {
	return s != StateUnknown
}

// Advertisement is one observation of a discoverable peripheral. The ID is an
// opaque transport-assigned identifier that is stable across advertisements
// from the same peripheral.
type Advertisement struct {
	ID          string
	LocalName   string
	RSSI        int16
	Connectable bool
}

// WriteMode selects the BLE write procedure for a characteristic.
type WriteMode int

const (
	// WriteWithResponse waits for a device acknowledgment.
	WriteWithResponse WriteMode = iota
	// WriteWithoutResponse trades reliability for latency. The session layer
	// compensates with repeated transmission.
	WriteWithoutResponse
)

func (m WriteMode) String() string {
	if m == WriteWithoutResponse {
		return "write-without-response"
	}
	return "write-with-response"
}

// Characteristic is a writable control endpoint on a connected peripheral.
type Characteristic interface {
	UUID() string

	// Modes lists the write procedures the characteristic advertises.
	Modes() []WriteMode

	// Write issues a single write using the given mode. For
	// WriteWithoutResponse the returned error only covers local submission;
	// delivery is best-effort.
	Write(p []byte, mode WriteMode) error
}

// Peripheral is a live handle to a connected device. Discovery methods are
// asynchronous; their outcomes arrive on the adapter's Events sink.
type Peripheral interface {
	ID() string
	LocalName() string

	// DiscoverService starts discovery of the service with the given UUID.
	// Completion is reported via Events.ServiceDiscovered.
	DiscoverService(uuid string)

	// DiscoverCharacteristic starts discovery of a characteristic within a
	// previously discovered service. Completion is reported via
	// Events.CharacteristicDiscovered.
	DiscoverCharacteristic(serviceUUID, characteristicUUID string)

	// Close releases the connection. Idempotent.
	Close() error
}

// Events receives the adapter's asynchronous callbacks. Each callback fires
// at most once per initiating call, in no guaranteed order relative to other
// kinds, and possibly after the initiator has given up waiting.
type Events interface {
	StateChanged(state State)
	Connected(p Peripheral, err error)
	ServiceDiscovered(p Peripheral, serviceUUID string, err error)
	CharacteristicDiscovered(p Peripheral, c Characteristic, err error)
}

// Adapter is the host BLE stack boundary.
type Adapter interface {
	// State reports the current adapter state.
	State() State

	// SetEvents installs the callback sink. Must be called before any
	// asynchronous operation is started.
	SetEvents(events Events)

	// StartScan begins advertisement scanning. The handler is invoked for
	// every advertisement event, including repeats from the same peripheral.
	StartScan(handler func(Advertisement)) error

	// StopScan stops an active scan. Stopping an inactive scan is a no-op.
	StopScan() error

	// Connect initiates a connection to the peripheral with the given
	// identity. The outcome arrives via Events.Connected.
	Connect(id string) error

	// CachedPeripheral returns a previously seen handle for the identity, if
	// the transport retains one.
	CachedPeripheral(id string) (Peripheral, bool)

	// Close releases the adapter.
	Close() error
}
