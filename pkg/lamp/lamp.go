// Package lamp exposes the lamp's invocable command surface: seven named
// actions that encode frames, deliver them through a session, and keep the
// persisted last-known state current. The voice-shortcut layer and the
// control panel call these actions and present each Result.Message or error
// message verbatim.
package lamp

import (
	"context"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/protocol"
	"github.com/halolight/lamp-command/pkg/state"
)

// Commander is the session surface the actions depend on.
type Commander interface {
	// SendSequence delivers encoded frames to the device.
	SendSequence(ctx context.Context, id string, frames []protocol.Frame) error

	// VerifyPeripheral checks reachability without writing.
	VerifyPeripheral(ctx context.Context, id string) error
}

// Result reports a successful action.
type Result struct {
	// Message is the fixed human-readable outcome.
	Message string
}

// Lamp binds a Commander to the persisted state store.
type Lamp struct {
	conn  Commander
	store state.Store
}

func New(conn Commander, store state.Store) *Lamp {
	return &Lamp{conn: conn, store: store}
}

// load fetches the persisted record and enforces that a device has been
// selected.
func (l *Lamp) load() (state.Lamp, error) {
	saved, err := l.store.Load()
	if err != nil {
		return state.Lamp{}, err
	}
	if saved.DeviceID == "" {
		return state.Lamp{}, protocol.ErrDeviceNotSelected
	}
	return saved, nil
}

// transmit sends frames to the saved device and persists the updated record.
// Persistence happens only after a successful send; a failed save is logged
// but does not fail the action, since the lamp has already changed state.
func (l *Lamp) transmit(ctx context.Context, saved state.Lamp, frames ...protocol.Frame) error {
	if err := l.conn.SendSequence(ctx, saved.DeviceID, frames); err != nil {
		return err
	}
	if err := l.store.Save(saved); err != nil {
		log.Warning("lamp: failed to persist state: %s", err)
	}
	return nil
}

// Verify checks that the saved lamp is reachable and exposes its control
// characteristic. No frames are written and no state changes.
func (l *Lamp) Verify(ctx context.Context) (Result, error) {
	saved, err := l.load()
	if err != nil {
		return Result{}, err
	}
	if err := l.conn.VerifyPeripheral(ctx, saved.DeviceID); err != nil {
		return Result{}, err
	}
	return Result{Message: "The lamp is reachable."}, nil
}
