package notify

import (
	"errors"
	"strings"
	"testing"
)

func TestInboxDrain(t *testing.T) {
	b := NewInbox(4)
	b.Notify(Notice{Kind: KindSuccess, DeviceID: "A"})
	b.Notify(Notice{Kind: KindConnectFailed, DeviceID: "B"})

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	got := b.Drain()
	if len(got) != 2 || got[0].DeviceID != "A" || got[1].DeviceID != "B" {
		t.Errorf("Drain() = %+v, want A then B", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", b.Len())
	}
}

func TestInboxDropsOldest(t *testing.T) {
	b := NewInbox(2)
	b.Notify(Notice{DeviceID: "1"})
	b.Notify(Notice{DeviceID: "2"})
	b.Notify(Notice{DeviceID: "3"})

	got := b.Drain()
	if len(got) != 2 || got[0].DeviceID != "2" || got[1].DeviceID != "3" {
		t.Errorf("Drain() = %+v, want [2 3]", got)
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b []Notice
	m := Multi{
		Func(func(n Notice) { a = append(a, n) }),
		nil,
		Func(func(n Notice) { b = append(b, n) }),
	}
	m.Notify(Notice{Kind: KindScanFailed})
	if len(a) != 1 || len(b) != 1 {
		t.Errorf("fan out: a=%d b=%d, want 1 and 1", len(a), len(b))
	}
}

func TestLocalizerEnglish(t *testing.T) {
	l := English()
	cause := errors.New("timeout")

	n := l.ConnectFailed("AA:BB", cause)
	if n.Kind != KindConnectFailed {
		t.Errorf("Kind = %v, want %v", n.Kind, KindConnectFailed)
	}
	if n.Title != "Error" {
		t.Errorf("Title = %q, want %q", n.Title, "Error")
	}
	if n.Message != "Failed to connect to device: AA:BB" {
		t.Errorf("Message = %q", n.Message)
	}
	if !errors.Is(n.Err, cause) {
		t.Errorf("Err = %v, want %v", n.Err, cause)
	}
}

func TestLocalizerSpanish(t *testing.T) {
	l, err := NewLocalizer("es-MX")
	if err != nil {
		t.Fatalf("NewLocalizer() error = %v", err)
	}
	n := l.Connected("AA:BB")
	if !strings.HasPrefix(n.Message, "Conectado al dispositivo") {
		t.Errorf("Message = %q, want Spanish text", n.Message)
	}
	if n.Title != "Éxito" {
		t.Errorf("Title = %q, want %q", n.Title, "Éxito")
	}
}

func TestLocalizerFallsBackToEnglish(t *testing.T) {
	l, err := NewLocalizer("fr")
	if err != nil {
		t.Fatalf("NewLocalizer() error = %v", err)
	}
	if got := l.PermissionDenied(nil).Title; got != "Permission Denied" {
		t.Errorf("Title = %q, want English fallback", got)
	}
}

func TestLocalizerRejectsMalformedLocale(t *testing.T) {
	if _, err := NewLocalizer("not a locale!"); err == nil {
		t.Error("NewLocalizer() should reject malformed locale")
	}
}
