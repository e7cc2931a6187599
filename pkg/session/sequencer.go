package session

import (
	"context"
	"fmt"
	"time"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/protocol"
)

// preferredWriteMode picks the write procedure from the characteristic's
// advertised capabilities: without acknowledgment when available, otherwise
// with acknowledgment.
func preferredWriteMode(c ble.Characteristic) (ble.WriteMode, error) {
	var withResponse bool
	for _, m := range c.Modes() {
		switch m {
		case ble.WriteWithoutResponse:
			return ble.WriteWithoutResponse, nil
		case ble.WriteWithResponse:
			withResponse = true
		}
	}
	if withResponse {
		return ble.WriteWithResponse, nil
	}
	return 0, protocol.ErrCharacteristicNotFound
}

// writeSequence performs best-effort repeated transmission: every frame, in
// the supplied order, repeated WriteRepetitions times, with WriteSpacing
// after each individual write. The repetition compensates statistically for
// unacknowledged-write loss on this radio link; it is not retry-on-error, and
// in unacknowledged mode per-write outcomes are not inspected.
//
// Blind repetition is only safe because every lamp command sets absolute
// state. A command that toggled rather than set state must not be sent
// through this path unmodified.
func (s *Session) writeSequence(ctx context.Context, frames []protocol.Frame, c ble.Characteristic) error {
	mode, err := preferredWriteMode(c)
	if err != nil {
		return err
	}
	log.Debug("session: writing %d frames x%d using %s", len(frames), s.opts.WriteRepetitions, mode)

	s.post(func() { s.setState(stateWriting) })
	for rep := 0; rep < s.opts.WriteRepetitions; rep++ {
		for i, frame := range frames {
			if err := ctx.Err(); err != nil {
				return err
			}
			if werr := c.Write(frame, mode); werr != nil {
				if mode == ble.WriteWithResponse {
					return fmt.Errorf("%w: %s", protocol.ErrConnectionFailed, werr)
				}
				// Unacknowledged mode: local submission failures are logged
				// and covered by the remaining repetitions.
				log.Debug("session: unacknowledged write %d of repetition %d failed locally: %s", i+1, rep+1, werr)
			}
			select {
			case <-time.After(s.opts.WriteSpacing):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
