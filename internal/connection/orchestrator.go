// Package connection issues connect and disconnect commands for registry
// devices and applies their results back to the registry.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/blescreen/internal/ble"
	"github.com/chaz8081/blescreen/internal/notify"
	"github.com/chaz8081/blescreen/internal/registry"
)

var (
	// ErrUnknownDevice is returned for an ID the registry does not track.
	ErrUnknownDevice = errors.New("connection: unknown device")
	// ErrNotDisconnected is returned by Connect for a device that is not
	// Disconnected.
	ErrNotDisconnected = errors.New("connection: device is not disconnected")
	// ErrBusy is returned while a command for the device is in flight.
	ErrBusy = errors.New("connection: command already in flight")
)

// Stack is the part of ble.Stack the orchestrator drives.
type Stack interface {
	Connect(ctx context.Context, id string) error
	Disconnect(ctx context.Context, id string) error
	RetrieveServices(ctx context.Context, id string) ([]ble.Service, error)
}

// Runner runs stack calls off the event loop and delivers their results on
// it. eventloop.Loop implements it.
type Runner interface {
	Async(work func(ctx context.Context) error, done func(err error))
}

// Options configures the orchestrator.
type Options struct {
	Timeout          time.Duration // per connect/disconnect call (default 10s)
	RetrieveServices bool          // discover services after a successful connect
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:          10 * time.Second,
		RetrieveServices: true,
	}
}

// Orchestrator must only be used from the event loop.
type Orchestrator struct {
	reg      *registry.Registry
	stack    Stack
	run      Runner
	notifier notify.Notifier
	locale   *notify.Localizer
	opts     Options
}

// New creates an Orchestrator. A nil locale uses English.
func New(reg *registry.Registry, stack Stack, run Runner, notifier notify.Notifier, locale *notify.Localizer, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if locale == nil {
		locale = notify.English()
	}
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Orchestrator{
		reg:      reg,
		stack:    stack,
		run:      run,
		notifier: notifier,
		locale:   locale,
		opts:     opts,
	}
}

// Connect starts connecting a Disconnected device. The result is applied
// only if the device is still Connecting when it arrives.
func (o *Orchestrator) Connect(id string) error {
	d, ok := o.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if d.State != registry.Disconnected {
		return fmt.Errorf("%w: %s is %s", ErrNotDisconnected, id, d.State)
	}
	o.reg.Transition(id, registry.Disconnected, registry.Connecting)
	slog.Info("[CONN] connecting", "device", id, "name", d.Name)

	o.run.Async(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
		return o.stack.Connect(ctx, id)
	}, func(err error) {
		o.connectResult(id, err)
	})
	return nil
}

func (o *Orchestrator) connectResult(id string, err error) {
	if err != nil {
		if !o.reg.Transition(id, registry.Connecting, registry.Disconnected) {
			slog.Info("[CONN] ignoring connect error, device no longer connecting", "device", id, "error", err)
			return
		}
		slog.Warn("[CONN] connect failed", "device", id, "error", err)
		o.notifier.Notify(o.locale.ConnectFailed(id, err))
		return
	}

	current, ok := o.reg.Get(id)
	switch {
	case !ok:
		slog.Info("[CONN] connect finished for a device no longer listed", "device", id)
		return
	case current.State == registry.Connecting:
		o.reg.MarkConnected(id)
	case current.State == registry.Connected:
		// A PeripheralConnected event got here first.
	default:
		slog.Info("[CONN] ignoring stale connect result", "device", id, "state", current.State)
		return
	}

	slog.Info("[CONN] connected", "device", id)
	o.notifier.Notify(o.locale.Connected(id))
	if o.opts.RetrieveServices {
		o.retrieveServices(id)
	}
}

func (o *Orchestrator) retrieveServices(id string) {
	var services []ble.Service
	o.run.Async(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
		var err error
		services, err = o.stack.RetrieveServices(ctx, id)
		return err
	}, func(err error) {
		if err != nil {
			slog.Warn("[CONN] retrieve services failed", "device", id, "error", err)
			return
		}
		for _, svc := range services {
			slog.Info("[CONN] service", "device", id, "uuid", svc.UUID, "characteristics", len(svc.Characteristics))
		}
	})
}

// Disconnect closes the connection to a device. Connected devices move to
// Disconnecting; other states are attempted best-effort with no state
// change. On failure the device returns to the state it had.
func (o *Orchestrator) Disconnect(id string) error {
	d, ok := o.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	if d.State == registry.Disconnecting {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	if d.State == registry.Connected {
		o.reg.Transition(id, registry.Connected, registry.Disconnecting)
	}
	slog.Info("[CONN] disconnecting", "device", id, "state", d.State)
	o.issueDisconnect(id)
	return nil
}

func (o *Orchestrator) issueDisconnect(id string) {
	o.run.Async(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
		return o.stack.Disconnect(ctx, id)
	}, func(err error) {
		if err != nil {
			slog.Warn("[CONN] disconnect failed", "device", id, "error", err)
			o.reg.Transition(id, registry.Disconnecting, registry.Connected)
			o.notifier.Notify(o.locale.DisconnectFailed(id, err))
			return
		}
		o.reg.MarkDisconnected(id)
		slog.Info("[CONN] disconnected", "device", id)
		o.notifier.Notify(o.locale.Disconnected(id))
	})
}

// Toggle handles a press on a device: Connected disconnects, Disconnected
// connects, in-flight states are rejected.
func (o *Orchestrator) Toggle(id string) error {
	d, ok := o.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	switch d.State {
	case registry.Connected:
		return o.Disconnect(id)
	case registry.Disconnected:
		return o.Connect(id)
	default:
		return fmt.Errorf("%w: %s is %s", ErrBusy, id, d.State)
	}
}

// DisconnectAll issues a disconnect for every connected device without
// waiting for the results, and returns the IDs it targeted.
func (o *Orchestrator) DisconnectAll() []string {
	ids := o.reg.ConnectedIDs()
	for _, id := range ids {
		if err := o.Disconnect(id); err != nil {
			slog.Debug("[CONN] skipping disconnect", "device", id, "error", err)
		}
	}
	return ids
}
