package session

import (
	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/protocol"
)

// slotKind identifies the transport callback a pending operation awaits. Each
// kind has exactly one current waiter slot.
type slotKind int

const (
	slotPower slotKind = iota
	slotConnect
	slotService
	slotCharacteristic
	numSlots
)

func (k slotKind) String() string {
	switch k {
	case slotPower:
		return "power-readiness"
	case slotConnect:
		return "connect"
	case slotService:
		return "service-discovery"
	case slotCharacteristic:
		return "characteristic-discovery"
	default:
		return "unknown"
	}
}

// outcome carries the payload of a resolved transport callback. Exactly one
// field besides err is meaningful per slot kind.
type outcome struct {
	peripheral     ble.Peripheral
	characteristic ble.Characteristic
	state          ble.State
	err            error
}

// waiter is a single-resolution future. deliver never blocks and drops
// anything after the first outcome, so a waiter resolves at most once.
type waiter struct {
	ch chan outcome
}

func newWaiter() *waiter {
	return &waiter{ch: make(chan outcome, 1)}
}

func (w *waiter) deliver(o outcome) {
	select {
	case w.ch <- o:
	default:
	}
}

// install creates the waiter for kind, failing any previous waiter of the
// same kind with a superseded error first. Runs on the worker.
func (s *Session) install(kind slotKind) *waiter {
	if prev := s.pending[kind]; prev != nil {
		log.Debug("session: superseding pending %s operation", kind)
		prev.deliver(outcome{err: protocol.ErrSuperseded})
	}
	w := newWaiter()
	s.pending[kind] = w
	return w
}

// resolve delivers o to the current waiter for kind and empties the slot.
// A callback that arrives after its slot was cleared (timeout, supersession)
// finds no waiter and is a no-op. Runs on the worker.
func (s *Session) resolve(kind slotKind, o outcome) {
	w := s.pending[kind]
	if w == nil {
		log.Debug("session: dropping %s callback with no waiter", kind)
		return
	}
	s.pending[kind] = nil
	w.deliver(o)
}

// discard empties the slot for kind if it still holds w, without resolving.
// Runs on the worker.
func (s *Session) discard(kind slotKind, w *waiter) {
	if s.pending[kind] == w {
		s.pending[kind] = nil
	}
}
