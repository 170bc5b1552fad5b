// Package scan runs discovery: at most one scan at a time, each lasting a
// fixed duration enforced by a timer owned by the controller.
package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/chaz8081/blescreen/internal/ble"
	"github.com/chaz8081/blescreen/internal/notify"
)

// DefaultDuration is used when Options.Duration is not set.
const DefaultDuration = 10 * time.Second

// Scanner is the part of ble.Stack the controller drives.
type Scanner interface {
	Scan(ctx context.Context, opts ble.ScanOptions) error
	StopScan() error
}

// Scheduler runs stack calls off the event loop and schedules timers on it.
// eventloop.Loop implements it.
type Scheduler interface {
	Async(work func(ctx context.Context) error, done func(err error))
	After(d time.Duration, fn func()) (cancel func())
}

// Options configures each scan.
type Options struct {
	ServiceUUIDs    []string
	Duration        time.Duration
	AllowDuplicates bool
}

// Session describes the current scan.
type Session struct {
	Active    bool
	StartedAt time.Time
	Timeout   time.Duration
}

// Controller is the Idle/Scanning state machine. It must only be used from
// the event loop.
type Controller struct {
	scanner  Scanner
	sched    Scheduler
	notifier notify.Notifier
	locale   *notify.Localizer
	opts     Options
	now      func() time.Time

	session     Session
	gen         uint64 // bumped on every transition; stale timers and results compare against it
	cancelTimer func()

	// Stack scan commands never overlap: a session started while the
	// previous Scan or a StopScan is outstanding waits in queued.
	inFlight bool
	stopping bool
	queued   bool
}

// NewController creates an idle Controller. A nil locale uses English.
func NewController(scanner Scanner, sched Scheduler, notifier notify.Notifier, locale *notify.Localizer, opts Options) *Controller {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if locale == nil {
		locale = notify.English()
	}
	return &Controller{
		scanner:  scanner,
		sched:    sched,
		notifier: notifier,
		locale:   locale,
		opts:     opts,
		now:      time.Now,
	}
}

// Start begins a scan. Requests while a scan is active are logged and
// ignored; Start reports whether a new session began. The stack scan is
// issued once the previous scan command has finished.
func (c *Controller) Start() bool {
	if c.session.Active {
		slog.Info("[SCAN] already scanning, ignoring start request",
			"started_at", c.session.StartedAt)
		return false
	}

	c.begin()
	if c.inFlight || c.stopping {
		c.queued = true
		slog.Debug("[SCAN] previous scan still winding down, queueing")
		return true
	}
	c.issue()
	return true
}

// issue sends the stack scan for the current session.
func (c *Controller) issue() {
	gen := c.gen
	opts := ble.ScanOptions{
		ServiceUUIDs:    c.opts.ServiceUUIDs,
		Duration:        c.opts.Duration,
		AllowDuplicates: c.opts.AllowDuplicates,
	}
	slog.Info("[SCAN] scanning", "duration", c.opts.Duration, "services", len(opts.ServiceUUIDs))

	c.inFlight = true
	c.sched.Async(func(ctx context.Context) error {
		return c.scanner.Scan(ctx, opts)
	}, func(err error) {
		c.inFlight = false
		if err != nil {
			slog.Error("[SCAN] scan failed", "error", err)
			if c.notifier != nil {
				c.notifier.Notify(c.locale.ScanFailed(err))
			}
			if c.gen == gen {
				c.idle("scan failed")
			}
		}
		c.issueQueued()
	})
}

func (c *Controller) issueQueued() {
	if c.queued && !c.inFlight && !c.stopping {
		c.queued = false
		c.issue()
	}
}

// Started handles a ScanStarted event. A scan the controller did not issue
// still gets a session and a timeout.
func (c *Controller) Started() {
	if c.session.Active {
		return
	}
	c.begin()
	slog.Debug("[SCAN] scan started by stack")
}

// Stopped handles a ScanStopped event: Idle immediately. While the current
// session is still queued the event belongs to the previous scan.
func (c *Controller) Stopped() {
	if !c.session.Active || c.queued {
		return
	}
	c.idle("stopped by stack")
}

// ForceIdle ends any active scan, best-effort stopping the stack.
func (c *Controller) ForceIdle() {
	active := c.session.Active
	if active {
		c.idle("forced")
	}
	if !(active || c.inFlight) || c.stopping {
		return
	}
	c.stopping = true
	c.sched.Async(func(context.Context) error {
		return c.scanner.StopScan()
	}, func(err error) {
		c.stopping = false
		if err != nil {
			slog.Warn("[SCAN] stop scan failed", "error", err)
		}
		c.issueQueued()
	})
}

// Session returns a copy of the current session.
func (c *Controller) Session() Session {
	return c.session
}

// Scanning reports whether a scan is active.
func (c *Controller) Scanning() bool {
	return c.session.Active
}

// begin enters Scanning and arms the timeout.
func (c *Controller) begin() {
	c.gen++
	gen := c.gen
	c.session = Session{Active: true, StartedAt: c.now(), Timeout: c.opts.Duration}
	c.cancelTimer = c.sched.After(c.opts.Duration, func() {
		if c.gen != gen || !c.session.Active {
			return
		}
		c.idle("timeout")
	})
}

func (c *Controller) idle(reason string) {
	c.gen++
	c.queued = false
	if c.cancelTimer != nil {
		c.cancelTimer()
		c.cancelTimer = nil
	}
	c.session = Session{}
	slog.Info("[SCAN] idle", "reason", reason)
}
