// Package events subscribes to the BLE stack's event stream and reduces each
// event into registry and scan controller updates on the event loop.
package events

import (
	"errors"
	"log/slog"

	"github.com/chaz8081/blescreen/internal/ble"
	"github.com/chaz8081/blescreen/internal/registry"
)

// ErrAlreadyBound is returned by Bind when subscriptions are already held.
var ErrAlreadyBound = errors.New("events: already bound")

// Source is the listener half of ble.Stack.
type Source interface {
	AddListener(kind ble.EventKind, handler func(ble.Event)) ble.Subscription
}

// Poster queues work on the event loop. eventloop.Loop implements it.
type Poster interface {
	Post(fn func()) bool
}

// ScanTracker receives scan lifecycle events. scan.Controller implements it.
type ScanTracker interface {
	Started()
	Stopped()
}

// Bridge owns the stack subscriptions for one screen activation.
type Bridge struct {
	reg  *registry.Registry
	scan ScanTracker
	subs []ble.Subscription
}

// New creates an unbound Bridge.
func New(reg *registry.Registry, scan ScanTracker) *Bridge {
	return &Bridge{reg: reg, scan: scan}
}

// Bind subscribes to every event kind. Callbacks, which may arrive on any
// goroutine, are posted to the loop and reduced there with Handle.
func (b *Bridge) Bind(src Source, post Poster) error {
	if b.subs != nil {
		return ErrAlreadyBound
	}
	b.subs = make([]ble.Subscription, 0, len(ble.EventKinds))
	for _, kind := range ble.EventKinds {
		b.subs = append(b.subs, src.AddListener(kind, func(ev ble.Event) {
			if !post.Post(func() { b.Handle(ev) }) {
				slog.Debug("[EVENTS] event after teardown dropped", "kind", ev.Kind, "device", ev.ID)
			}
		}))
	}
	return nil
}

// Bound reports whether subscriptions are held.
func (b *Bridge) Bound() bool {
	return b.subs != nil
}

// Close releases every subscription. Safe to call more than once.
func (b *Bridge) Close() {
	for _, s := range b.subs {
		s.Remove()
	}
	b.subs = nil
}

// Handle applies a single event and reports whether it changed anything.
// Discovery events without a name are the only events filtered out.
func (b *Bridge) Handle(ev ble.Event) bool {
	switch ev.Kind {
	case ble.PeripheralDiscovered:
		if ev.Name == "" {
			return false
		}
		if b.reg.UpsertDiscovered(ev.ID, ev.Name, ev.RSSI) {
			slog.Debug("[EVENTS] discovered", "device", ev.ID, "name", ev.Name, "rssi", ev.RSSI)
		}
		return true
	case ble.PeripheralConnected:
		return b.reg.MarkConnected(ev.ID)
	case ble.PeripheralDisconnected:
		return b.reg.MarkDisconnected(ev.ID)
	case ble.ScanStarted:
		b.scan.Started()
		return true
	case ble.ScanStopped:
		b.scan.Stopped()
		return true
	default:
		slog.Warn("[EVENTS] unknown event kind", "kind", ev.Kind)
		return false
	}
}
