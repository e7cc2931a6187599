package session

import (
	"context"
	"sort"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/halolight/lamp-command/internal/log"
	"github.com/halolight/lamp-command/pkg/connector/ble"
	"github.com/halolight/lamp-command/pkg/protocol"
)

// Scan is one logical scan activation. It owns the deduplicated device
// registry for its lifetime and exposes a live advertisement stream. At most
// one Scan is active per Session; starting a new one finishes the previous
// stream before the transport scan restarts.
type Scan struct {
	id      uuid.UUID
	session *Session

	stream     chan ble.Advertisement
	finished   chan struct{}
	finishOnce sync.Once

	// devices is the per-scan registry, keyed by identity, last-seen-wins.
	// Owned by the session worker.
	devices map[string]ble.Advertisement
}

// StartScan activates advertisement scanning. If a scan is already active its
// stream is finished first (a graceful end-of-stream for its consumers, not
// an error); there is no window in which two scan sessions own the
// transport's scan state.
func (s *Session) StartScan(ctx context.Context) (*Scan, error) {
	var (
		scan *Scan
		err  error
	)
	if cerr := s.call(ctx, func() {
		st := s.adapter.State()
		if !st.Operable() {
			if st == ble.StateUnauthorized {
				err = protocol.ErrBluetoothUnauthorized
			} else {
				err = protocol.ErrBluetoothUnavailable
			}
			return
		}
		s.stopActiveScan()

		sc := &Scan{
			id:       uuid.NewV4(),
			session:  s,
			stream:   make(chan ble.Advertisement, s.opts.StreamBuffer),
			finished: make(chan struct{}),
			devices:  make(map[string]ble.Advertisement),
		}
		if serr := s.adapter.StartScan(func(adv ble.Advertisement) {
			s.post(func() {
				// Advertisements from a superseded transport scan must not
				// leak into the session that replaced it.
				if s.scan == sc {
					sc.observe(adv)
				}
			})
		}); serr != nil {
			err = serr
			return
		}
		s.scan = sc
		scan = sc
		log.Info("session: scan %s started", sc.ID())
	}); cerr != nil {
		return nil, cerr
	}
	return scan, err
}

// StopScan deactivates the current scan session, if any. Idempotent.
func (s *Session) StopScan() {
	_ = s.call(context.Background(), func() {
		s.stopActiveScan()
	})
}

// stopActiveScan finishes the active scan's stream and deactivates the
// transport scan. Runs on the worker.
func (s *Session) stopActiveScan() {
	if s.scan == nil {
		return
	}
	log.Info("session: scan %s stopped", s.scan.ID())
	s.scan.finish()
	s.scan = nil
	if err := s.adapter.StopScan(); err != nil {
		log.Warning("session: failed to stop transport scan: %s", err)
	}
}

// observe records one advertisement: the registry entry for the identity is
// overwritten (never merged or averaged) and the event is offered to the
// stream. A consumer stalled past the stream buffer drops events; the
// registry still holds the latest observation. Runs on the worker.
func (sc *Scan) observe(adv ble.Advertisement) {
	sc.devices[adv.ID] = adv
	select {
	case sc.stream <- adv:
	default:
	}
}

func (sc *Scan) finish() {
	sc.finishOnce.Do(func() {
		close(sc.finished)
		close(sc.stream)
	})
}

// ID returns the scan session's identity token.
func (sc *Scan) ID() string {
	return sc.id.String()
}

// Advertisements returns the live stream. One entry per advertisement event,
// including repeats of an already-seen identity; consumers fold by ID if they
// want deduplication, or use Devices. A consumer stalled past the stream
// buffer misses events rather than blocking the scan; the registry still
// records every observation. The channel closes when the scan ends.
func (sc *Scan) Advertisements() <-chan ble.Advertisement {
	return sc.stream
}

// Done is closed when this scan session terminates.
func (sc *Scan) Done() <-chan struct{} {
	return sc.finished
}

// Stop ends this scan's stream. The transport scan is deactivated only if
// this is still the active session; a stale Stop from a superseded session
// must not stop a newer session's scan. Idempotent.
func (sc *Scan) Stop() {
	_ = sc.session.call(context.Background(), func() {
		if sc.session.scan == sc {
			sc.session.stopActiveScan()
			return
		}
		sc.finish()
	})
}

// Devices returns the deduplicated registry snapshot, sorted by descending
// signal strength. The snapshot is fetched synchronously from the worker.
func (sc *Scan) Devices() []ble.Advertisement {
	var list []ble.Advertisement
	_ = sc.session.call(context.Background(), func() {
		list = make([]ble.Advertisement, 0, len(sc.devices))
		for _, adv := range sc.devices {
			list = append(list, adv)
		}
	})
	sort.Slice(list, func(i, j int) bool {
		if list[i].RSSI != list[j].RSSI {
			return list[i].RSSI > list[j].RSSI
		}
		return list[i].ID < list[j].ID
	})
	return list
}
