// Package screen owns one activation of the device screen: it wires the BLE
// stack, event bridge, registry, scan controller and connection orchestrator
// onto a single event loop, accepts user intents and produces View
// snapshots for a renderer.
package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chaz8081/blescreen/internal/ble"
	"github.com/chaz8081/blescreen/internal/connection"
	"github.com/chaz8081/blescreen/internal/eventloop"
	"github.com/chaz8081/blescreen/internal/events"
	"github.com/chaz8081/blescreen/internal/notify"
	"github.com/chaz8081/blescreen/internal/permission"
	"github.com/chaz8081/blescreen/internal/registry"
	"github.com/chaz8081/blescreen/internal/scan"
)

var (
	// ErrAlreadyActive is returned by Run on a screen that has been run before.
	ErrAlreadyActive = errors.New("screen: already active")
	// ErrInactive is returned by View once the screen has been torn down.
	ErrInactive = errors.New("screen: not active")
)

// teardownGrace bounds how long Run waits for in-flight stack calls.
const teardownGrace = 2 * time.Second

// Options configures a Screen.
type Options struct {
	Enabled     bool // initial Bluetooth toggle state
	AutoScan    bool // start a scan once permissions are checked
	FreshList   bool // clear the list before a user-requested scan when nothing is connected
	Scan        scan.Options
	Connection  connection.Options
	Start       ble.StartOptions
	Locale      *notify.Localizer
	NoticeLimit int
	QueueSize   int
}

// View is a snapshot of everything a renderer needs.
type View struct {
	Devices    []registry.Device
	Scanning   bool
	Session    scan.Session
	Enabled    bool
	Permission permission.Result
}

// Screen is single-use: once Run returns it cannot be run again.
type Screen struct {
	stack ble.Stack
	opts  Options

	loop    *eventloop.Loop
	reg     *registry.Registry
	scanner *scan.Controller
	conn    *connection.Orchestrator
	bridge  *events.Bridge
	gate    *permission.Gate
	inbox   *notify.Inbox

	active atomic.Bool

	// owned by the loop
	enabled bool
	perm    permission.Result
}

// New builds an inactive Screen. A nil locale uses English.
func New(stack ble.Stack, provider permission.Provider, opts Options) *Screen {
	if opts.Locale == nil {
		opts.Locale = notify.English()
	}

	s := &Screen{
		stack:   stack,
		opts:    opts,
		loop:    eventloop.New(opts.QueueSize),
		reg:     registry.New(),
		inbox:   notify.NewInbox(opts.NoticeLimit),
		enabled: opts.Enabled,
	}
	notifier := notify.Multi{s.inbox, notify.LogNotifier{}}

	s.scanner = scan.NewController(stack, s.loop, notifier, opts.Locale, opts.Scan)
	s.conn = connection.New(s.reg, stack, s.loop, notifier, opts.Locale, opts.Connection)
	s.bridge = events.New(s.reg, s.scanner)
	s.gate = permission.NewGate(provider, notifier, opts.Locale)
	return s
}

// Run activates the screen and processes events until ctx is done or Close
// is called. It returns nil on a normal shutdown.
func (s *Screen) Run(ctx context.Context) error {
	if !s.active.CompareAndSwap(false, true) {
		return ErrAlreadyActive
	}

	if err := s.stack.Start(s.opts.Start); err != nil {
		s.loop.Stop()
		return fmt.Errorf("screen: starting bluetooth: %w", err)
	}
	if err := s.bridge.Bind(s.stack, s.loop); err != nil {
		s.loop.Stop()
		return fmt.Errorf("screen: binding events: %w", err)
	}
	defer s.teardown()

	s.loop.Post(s.activate)

	err := s.loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// teardown runs after the loop has exited, so it has the loop's state to
// itself.
func (s *Screen) teardown() {
	s.bridge.Close()
	s.scanner.ForceIdle()

	ctx, cancel := context.WithTimeout(context.Background(), teardownGrace)
	defer cancel()
	if err := s.loop.Wait(ctx); err != nil {
		slog.Warn("[SCREEN] stack calls still running after teardown", "error", err)
	}
	slog.Info("[SCREEN] inactive")
}

// Close stops a running screen. Safe to call more than once.
func (s *Screen) Close() {
	s.loop.Stop()
}

func (s *Screen) activate() {
	slog.Info("[SCREEN] active", "enabled", s.enabled, "auto_scan", s.opts.AutoScan)

	var result permission.Result
	s.loop.Async(func(ctx context.Context) error {
		result = s.gate.EnsurePermissions(ctx)
		return nil
	}, func(error) {
		s.perm = result
		if s.enabled && s.opts.AutoScan {
			s.startScan()
		}
	})
}

// StartScanRequested asks for a new scan.
func (s *Screen) StartScanRequested() {
	s.post("start scan", s.startScan)
}

// DevicePressed toggles the connection of the device with the given ID.
func (s *Screen) DevicePressed(id string) {
	s.post("press", func() {
		if !s.enabled {
			slog.Info("[SCREEN] bluetooth disabled, ignoring press", "device", id)
			return
		}
		if err := s.conn.Toggle(id); err != nil {
			slog.Info("[SCREEN] press ignored", "device", id, "error", err)
		}
	})
}

// BluetoothToggled turns Bluetooth on (and scans) or off (disconnecting
// everything and clearing the list).
func (s *Screen) BluetoothToggled(on bool) {
	s.post("toggle", func() {
		s.enabled = on
		if on {
			slog.Info("[SCREEN] bluetooth enabled")
			s.startScan()
			return
		}
		s.disable()
	})
}

func (s *Screen) startScan() {
	if !s.enabled {
		slog.Info("[SCREEN] bluetooth disabled, ignoring scan request")
		return
	}
	if !s.scanner.Scanning() && s.opts.FreshList && !s.reg.HasActiveConnections() {
		s.reg.Reset()
	}
	s.scanner.Start()
}

// disable leaves the registry empty whatever the disconnects report later.
func (s *Screen) disable() {
	ids := s.conn.DisconnectAll()
	s.reg.Reset()
	s.scanner.ForceIdle()
	slog.Info("[SCREEN] bluetooth disabled", "disconnecting", len(ids))
}

func (s *Screen) post(intent string, fn func()) {
	if !s.loop.Post(fn) {
		slog.Debug("[SCREEN] intent dropped, screen inactive", "intent", intent)
	}
}

// View returns a snapshot built on the loop.
func (s *Screen) View(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	if !s.loop.Post(func() { ch <- s.snapshot() }) {
		return View{}, ErrInactive
	}
	select {
	case v := <-ch:
		return v, nil
	case <-s.loop.Done():
		return View{}, ErrInactive
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (s *Screen) snapshot() View {
	return View{
		Devices:    s.reg.List(),
		Scanning:   s.scanner.Scanning(),
		Session:    s.scanner.Session(),
		Enabled:    s.enabled,
		Permission: s.perm,
	}
}

// Notices drains pending notices, oldest first. Safe for concurrent use.
func (s *Screen) Notices() []notify.Notice {
	return s.inbox.Drain()
}
