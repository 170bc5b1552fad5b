package bletest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chaz8081/blescreen/internal/ble"
)

func TestScanEmitsLifecycle(t *testing.T) {
	s := New()
	s.Advertise(ble.Event{Kind: ble.PeripheralDiscovered, ID: "A", Name: "Speaker", RSSI: -40})

	var kinds []ble.EventKind
	for _, k := range ble.EventKinds {
		s.AddListener(k, func(ev ble.Event) { kinds = append(kinds, ev.Kind) })
	}

	if err := s.Scan(context.Background(), ble.ScanOptions{Duration: time.Second}); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []ble.EventKind{ble.ScanStarted, ble.PeripheralDiscovered, ble.ScanStopped}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestHeldScanEndsOnStop(t *testing.T) {
	s := New()
	s.HoldScan(true)

	done := make(chan error, 1)
	go func() { done <- s.Scan(context.Background(), ble.ScanOptions{}) }()

	// StopScan before Scan registers its stop channel is a no-op, so retry.
	deadline := time.After(time.Second)
	for {
		_ = s.StopScan()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Scan() error = %v", err)
			}
			return
		case <-deadline:
			t.Fatal("held scan did not end after StopScan")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestScriptedFailures(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailConnect("A", boom)
	s.FailDisconnect("B", boom)

	if err := s.Connect(context.Background(), "A"); !errors.Is(err, boom) {
		t.Errorf("Connect(A) = %v, want boom", err)
	}
	if err := s.Connect(context.Background(), "B"); err != nil {
		t.Errorf("Connect(B) = %v, want nil", err)
	}
	if err := s.Disconnect(context.Background(), "B"); !errors.Is(err, boom) {
		t.Errorf("Disconnect(B) = %v, want boom", err)
	}

	want := []string{"connect A", "connect B", "disconnect B"}
	got := s.Calls()
	if len(got) != len(want) {
		t.Fatalf("Calls() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Calls()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
