// Package notify produces the transient, user-visible notices shown by the
// screen: permission warnings, scan failures and connect/disconnect results.
// Titles and messages are localized through golang.org/x/text.
package notify

import (
	"log/slog"
	"sync"
)

// Kind classifies a notice.
type Kind int

const (
	// KindSuccess reports a completed connect or disconnect.
	KindSuccess Kind = iota
	// KindPermissionDenied reports that one or more capabilities were refused.
	KindPermissionDenied
	// KindScanFailed reports that the stack rejected or aborted a scan.
	KindScanFailed
	// KindConnectFailed reports a failed connect attempt.
	KindConnectFailed
	// KindDisconnectFailed reports a failed disconnect attempt.
	KindDisconnectFailed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindPermissionDenied:
		return "permission_denied"
	case KindScanFailed:
		return "scan_failed"
	case KindConnectFailed:
		return "connect_failed"
	case KindDisconnectFailed:
		return "disconnect_failed"
	default:
		return "unknown"
	}
}

// Notice is a single user-visible message.
type Notice struct {
	Kind     Kind
	DeviceID string // empty when not device related
	Title    string
	Message  string
	Err      error // underlying cause, nil for success notices
}

// Notifier receives notices.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a plain function to the Notifier interface.
type Func func(n Notice)

func (f Func) Notify(n Notice) { f(n) }

// Multi fans a notice out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// LogNotifier writes every notice to a slog logger. A nil Logger uses the
// default logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"kind", n.Kind.String(), "title", n.Title, "message", n.Message}
	if n.DeviceID != "" {
		attrs = append(attrs, "device", n.DeviceID)
	}
	if n.Err != nil {
		logger.Warn("[NOTICE]", append(attrs, "error", n.Err)...)
		return
	}
	logger.Info("[NOTICE]", attrs...)
}

// Inbox buffers notices until the renderer drains them. When full the oldest
// notice is dropped. Safe for concurrent use.
type Inbox struct {
	mu    sync.Mutex
	items []Notice
	limit int
}

// NewInbox creates an Inbox holding at most limit notices (default 16).
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 16
	}
	return &Inbox{limit: limit}
}

func (b *Inbox) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.limit {
		b.items = b.items[1:]
	}
	b.items = append(b.items, n)
}

// Drain returns and clears all pending notices, oldest first.
func (b *Inbox) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Len returns the number of pending notices.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
