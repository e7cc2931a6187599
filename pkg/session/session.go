// Package session owns the lamp's BLE session lifecycle. It bridges the
// transport's asynchronous, single-shot callbacks into a linear sequence of
// awaitable steps (power-on wait, connect, service discovery, characteristic
// discovery, write sequence, disconnect), bounded by per-step timeouts.
//
// All transport-facing state (pending-operation slots, the active scan, the
// discovery registry) is owned by one worker goroutine. Public operations
// post closures onto the worker and suspend on waiter channels while the
// worker stays free to process the callback that will resume them. This
// single-writer discipline replaces fine-grained locking.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/protocol"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("session: closed")

const (
	defaultStepTimeout      = 12 * time.Second
	defaultWriteRepetitions = 3
	defaultWriteSpacing     = 500 * time.Millisecond
	defaultStreamBuffer     = 16
)

// Options tune the session. The zero value selects production defaults.
type Options struct {
	// ServiceUUID and CharacteristicUUID locate the lamp's control endpoint.
	ServiceUUID        string
	CharacteristicUUID string

	// StepTimeout bounds each transport-callback wait in the connect
	// pipeline. Default 12s.
	StepTimeout time.Duration

	// WriteRepetitions and WriteSpacing configure best-effort repeated
	// transmission. Defaults 3 and 500ms.
	WriteRepetitions int
	WriteSpacing     time.Duration

	// StreamBuffer is the scan stream's channel capacity. Default 16.
	StreamBuffer int
}

func (o Options) withDefaults() Options {
	if o.ServiceUUID == "" {
		o.ServiceUUID = ble.LampServiceUUID
	}
	if o.CharacteristicUUID == "" {
		o.CharacteristicUUID = ble.LampCharacteristicUUID
	}
	if o.StepTimeout == 0 {
		o.StepTimeout = defaultStepTimeout
	}
	if o.WriteRepetitions == 0 {
		o.WriteRepetitions = defaultWriteRepetitions
	}
	if o.WriteSpacing == 0 {
		o.WriteSpacing = defaultWriteSpacing
	}
	if o.StreamBuffer == 0 {
		o.StreamBuffer = defaultStreamBuffer
	}
	return o
}

// machineState tracks where the session is in the connect pipeline. Used for
// logging and the Status snapshot; transitions are enforced by the pipeline's
// control flow, not by checking this value.
type machineState int

const (
	stateIdle machineState = iota
	stateAwaitingPowerOn
	stateConnecting
	stateDiscoveringService
	stateDiscoveringCharacteristic
	stateReady
	stateWriting
	stateDisconnecting
)

func (st machineState) String() string {
	switch st {
	case stateIdle:
		return "idle"
	case stateAwaitingPowerOn:
		return "awaiting-power-on"
	case stateConnecting:
		return "connecting"
	case stateDiscoveringService:
		return "discovering-service"
	case stateDiscoveringCharacteristic:
		return "discovering-characteristic"
	case stateReady:
		return "ready"
	case stateWriting:
		return "writing"
	case stateDisconnecting:
		return "disconnecting"
	default:
		return "invalid"
	}
}

// Session drives one adapter. Create with New, release with Close.
type Session struct {
	adapter ble.Adapter
	opts    Options

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once

	// opMu serializes the send/verify pipelines. This is a single-device
	// control system; contention here is acceptable, interleaved connect
	// pipelines are not.
	opMu sync.Mutex

	// Worker-owned state. Only the worker goroutine touches these.
	state   machineState
	pending [numSlots]*waiter
	scan    *Scan
}

// New wires a Session to adapter and starts its worker. The Session installs
// itself as the adapter's event sink.
func New(adapter ble.Adapter, opts Options) *Session {
	s := &Session{
		adapter: adapter,
		opts:    opts.withDefaults(),
		ops:     make(chan func(), 64),
		done:    make(chan struct{}),
	}
	adapter.SetEvents(&transportEvents{s: s})
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.done:
			return
		}
	}
}

// post schedules fn on the worker without waiting. Dropped after Close.
func (s *Session) post(fn func()) {
	select {
	case s.ops <- fn:
	case <-s.done:
	}
}

// call runs fn on the worker and waits for it to complete.
func (s *Session) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	wrapped := func() {
		fn()
		close(ran)
	}
	select {
	case s.ops <- wrapped:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) setState(st machineState) {
	if s.state != st {
		log.Debug("session: %s -> %s", s.state, st)
		s.state = st
	}
}

// await suspends until w resolves, the timeout elapses, or ctx is cancelled.
// On timeout or cancellation the slot is cleared so a late callback finds no
// waiter. A zero timeout waits indefinitely (bounded by ctx only).
func (s *Session) await(ctx context.Context, kind slotKind, w *waiter, timeout time.Duration) (outcome, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case o := <-w.ch:
		if o.err != nil {
			return o, o.err
		}
		return o, nil
	case <-expired:
		s.post(func() { s.discard(kind, w) })
		return outcome{}, protocol.ErrTimeout
	case <-ctx.Done():
		s.post(func() { s.discard(kind, w) })
		return outcome{}, ctx.Err()
	}
}

// stateError maps a definitive adapter state to the session's error taxonomy.
func stateError(st ble.State) error {
	switch st {
	case ble.StatePoweredOn:
		return nil
	case ble.StateUnauthorized:
		return protocol.ErrBluetoothUnauthorized
	default:
		return protocol.ErrBluetoothUnavailable
	}
}

// EnsureReady resolves once the adapter reaches a definitive power and
// authorization state. It returns immediately if the adapter is already
// operable; otherwise it installs a power-readiness waiter that the
// transport's state-change notification resolves. Unavailable and
// unauthorized outcomes are terminal, never retried.
func (s *Session) EnsureReady(ctx context.Context) error {
	var (
		w   *waiter
		err error
	)
	if cerr := s.call(ctx, func() {
		st := s.adapter.State()
		if st.Definitive() {
			err = stateError(st)
			return
		}
		w = s.install(slotPower)
		s.setState(stateAwaitingPowerOn)
	}); cerr != nil {
		return cerr
	}
	if w == nil {
		return err
	}
	o, aerr := s.await(ctx, slotPower, w, 0)
	s.post(func() {
		if s.state == stateAwaitingPowerOn {
			s.setState(stateIdle)
		}
	})
	if aerr != nil {
		return aerr
	}
	return stateError(o.state)
}

// resolveDevice checks that a live handle exists for id: the current scan
// session's registry first, then a direct transport lookup.
func (s *Session) resolveDevice(ctx context.Context, id string) error {
	var err error
	if cerr := s.call(ctx, func() {
		if s.scan != nil {
			if _, ok := s.scan.devices[id]; ok {
				return
			}
		}
		if _, ok := s.adapter.CachedPeripheral(id); ok {
			return
		}
		err = protocol.ErrDeviceNotFound
	}); cerr != nil {
		return cerr
	}
	return err
}

// connectAndDiscover walks the connect pipeline: stop any active scan, await
// connect, then service discovery, then characteristic discovery, each
// bounded by StepTimeout. On a non-nil peripheral the caller must release the
// connection whether or not err is nil; a timeout can leave a partially open
// connection behind.
func (s *Session) connectAndDiscover(ctx context.Context, id string) (p ble.Peripheral, c ble.Characteristic, err error) {
	var w *waiter
	var connectErr error
	if cerr := s.call(ctx, func() {
		// Scanning and connecting cannot overlap on the transport.
		s.stopActiveScan()
		w = s.install(slotConnect)
		s.setState(stateConnecting)
		if terr := s.adapter.Connect(id); terr != nil {
			s.discard(slotConnect, w)
			connectErr = terr
		}
	}); cerr != nil {
		return nil, nil, cerr
	}
	if connectErr != nil {
		s.toIdle()
		return nil, nil, connectErr
	}
	o, aerr := s.await(ctx, slotConnect, w, s.opts.StepTimeout)
	if aerr != nil {
		s.toIdle()
		return nil, nil, aerr
	}
	p = o.peripheral

	if cerr := s.call(ctx, func() {
		w = s.install(slotService)
		s.setState(stateDiscoveringService)
		p.DiscoverService(s.opts.ServiceUUID)
	}); cerr != nil {
		return p, nil, cerr
	}
	if _, aerr = s.await(ctx, slotService, w, s.opts.StepTimeout); aerr != nil {
		return p, nil, aerr
	}

	if cerr := s.call(ctx, func() {
		w = s.install(slotCharacteristic)
		s.setState(stateDiscoveringCharacteristic)
		p.DiscoverCharacteristic(s.opts.ServiceUUID, s.opts.CharacteristicUUID)
	}); cerr != nil {
		return p, nil, cerr
	}
	o, aerr = s.await(ctx, slotCharacteristic, w, s.opts.StepTimeout)
	if aerr != nil {
		return p, nil, aerr
	}

	s.post(func() { s.setState(stateReady) })
	return p, o.characteristic, nil
}

func (s *Session) toIdle() {
	s.post(func() { s.setState(stateIdle) })
}

// operate runs the full resolve, connect/discover, act, disconnect pipeline.
// The disconnect is unconditional: it runs on success, failure, and caller
// cancellation, so the transport never accumulates open connections.
func (s *Session) operate(ctx context.Context, id string, fn func(context.Context, ble.Characteristic) error) error {
	if id == "" {
		return protocol.ErrDeviceNotSelected
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.EnsureReady(ctx); err != nil {
		return err
	}
	if err := s.resolveDevice(ctx, id); err != nil {
		return err
	}
	p, c, err := s.connectAndDiscover(ctx, id)
	if p != nil {
		defer func() {
			s.post(func() { s.setState(stateDisconnecting) })
			if cerr := p.Close(); cerr != nil {
				log.Warning("session: failed to disconnect from %s: %s", p.ID(), cerr)
			}
			s.toIdle()
		}()
	}
	if err != nil {
		return err
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, c)
}

// SendSequence delivers frames to the lamp identified by id using best-effort
// repeated transmission, then disconnects.
func (s *Session) SendSequence(ctx context.Context, id string, frames []protocol.Frame) error {
	return s.operate(ctx, id, func(ctx context.Context, c ble.Characteristic) error {
		return s.writeSequence(ctx, frames, c)
	})
}

// VerifyPeripheral runs the connect pipeline against id without writing
// anything. A nil return means the lamp is reachable and exposes the control
// characteristic.
func (s *Session) VerifyPeripheral(ctx context.Context, id string) error {
	return s.operate(ctx, id, nil)
}

// Status is a point-in-time snapshot for debugging surfaces.
type Status struct {
	State        string
	AdapterState string
	Scanning     bool
	Pending      []string
}

// Status fetches the snapshot synchronously from the worker so it can never
// be stale relative to independently cached state.
func (s *Session) Status() Status {
	var status Status
	if err := s.call(context.Background(), func() {
		status.State = s.state.String()
		status.AdapterState = s.adapter.State().String()
		status.Scanning = s.scan != nil
		for kind := slotKind(0); kind < numSlots; kind++ {
			if s.pending[kind] != nil {
				status.Pending = append(status.Pending, kind.String())
			}
		}
	}); err != nil {
		status.State = "closed"
	}
	return status
}

// Close stops any active scan, fails all pending waiters, and terminates the
// worker. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.call(context.Background(), func() {
			s.stopActiveScan()
			for kind := slotKind(0); kind < numSlots; kind++ {
				if s.pending[kind] != nil {
					s.resolve(kind, outcome{err: ErrClosed})
				}
			}
		})
		close(s.done)
	})
}

// transportEvents adapts the adapter's callbacks onto the worker. Every
// callback resolves at most one pending slot; mapping to the error taxonomy
// happens here so awaiting code sees typed failures.
type transportEvents struct {
	s *Session
}

func (e *transportEvents) StateChanged(state ble.State) {
	e.s.post(func() {
		log.Debug("session: adapter state changed to %s", state)
		if !state.Definitive() {
			return
		}
		e.s.resolve(slotPower, outcome{state: state})
	})
}

func (e *transportEvents) Connected(p ble.Peripheral, err error) {
	e.s.post(func() {
		if err != nil {
			e.s.resolve(slotConnect, outcome{err: fmt.Errorf("%w: %s", protocol.ErrConnectionFailed, err)})
			return
		}
		e.s.resolve(slotConnect, outcome{peripheral: p})
	})
}

func (e *transportEvents) ServiceDiscovered(p ble.Peripheral, serviceUUID string, err error) {
	e.s.post(func() {
		if err != nil {
			e.s.resolve(slotService, outcome{err: fmt.Errorf("%w: %s", protocol.ErrServiceNotFound, err)})
			return
		}
		e.s.resolve(slotService, outcome{peripheral: p})
	})
}

func (e *transportEvents) CharacteristicDiscovered(p ble.Peripheral, c ble.Characteristic, err error) {
	e.s.post(func() {
		if err != nil {
			e.s.resolve(slotCharacteristic, outcome{err: fmt.Errorf("%w: %s", protocol.ErrCharacteristicNotFound, err)})
			return
		}
		e.s.resolve(slotCharacteristic, outcome{peripheral: p, characteristic: c})
	})
}
