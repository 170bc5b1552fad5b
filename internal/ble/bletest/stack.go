// Package bletest provides an in-memory ble.Stack for tests. Events are
// injected with Emit and every command is recorded.
package bletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaz8081/blescreen/internal/ble"
)

// Stack is a scriptable ble.Stack.
type Stack struct {
	ble.Emitter

	mu            sync.Mutex
	calls         []string
	startErr      error
	scanErr       error
	connectErr    map[string]error
	disconnectErr map[string]error
	services      map[string][]ble.Service
	adverts       []ble.Event
	holdScan      bool
	stop          chan struct{}
	scans         []ble.ScanOptions
}

// New returns an empty Stack whose commands all succeed.
func New() *Stack {
	return &Stack{
		connectErr:    make(map[string]error),
		disconnectErr: make(map[string]error),
		services:      make(map[string][]ble.Service),
	}
}

// FailStart makes Start return err.
func (s *Stack) FailStart(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startErr = err
}

// FailScan makes Scan return err without emitting events.
func (s *Stack) FailScan(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanErr = err
}

// FailConnect makes Connect(id) return err; nil clears it.
func (s *Stack) FailConnect(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectErr[id] = err
}

// FailDisconnect makes Disconnect(id) return err; nil clears it.
func (s *Stack) FailDisconnect(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectErr[id] = err
}

// SetServices sets the result of RetrieveServices(id).
func (s *Stack) SetServices(id string, svcs []ble.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[id] = svcs
}

// Advertise queues discovery events emitted by every subsequent Scan.
func (s *Stack) Advertise(evs ...ble.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adverts = append(s.adverts, evs...)
}

// HoldScan makes Scan block after emitting its adverts until StopScan is
// called or its context ends.
func (s *Stack) HoldScan(hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdScan = hold
}

// Calls returns the recorded commands ("start", "scan", "stop", "connect A",
// "disconnect A", "services A").
func (s *Stack) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CountCalls returns how many recorded commands equal call.
func (s *Stack) CountCalls(call string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Scans returns the options of every Scan call.
func (s *Stack) Scans() []ble.ScanOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ble.ScanOptions(nil), s.scans...)
}

func (s *Stack) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *Stack) Start(_ ble.StartOptions) error {
	s.record("start")
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startErr
}

func (s *Stack) Scan(ctx context.Context, opts ble.ScanOptions) error {
	s.record("scan")
	s.mu.Lock()
	s.scans = append(s.scans, opts)
	if s.scanErr != nil {
		err := s.scanErr
		s.mu.Unlock()
		return err
	}
	adverts := append([]ble.Event(nil), s.adverts...)
	hold := s.holdScan
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	s.Emit(ble.Event{Kind: ble.ScanStarted})
	for _, ev := range adverts {
		s.Emit(ev)
	}
	if hold {
		select {
		case <-stop:
		case <-ctx.Done():
		}
	}
	s.Emit(ble.Event{Kind: ble.ScanStopped})
	return nil
}

func (s *Stack) StopScan() error {
	s.record("stop")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

func (s *Stack) Connect(_ context.Context, id string) error {
	s.record("connect " + id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectErr[id]
}

func (s *Stack) Disconnect(_ context.Context, id string) error {
	s.record("disconnect " + id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectErr[id]
}

func (s *Stack) RetrieveServices(_ context.Context, id string) ([]ble.Service, error) {
	s.record("services " + id)
	s.mu.Lock()
	defer s.mu.Unlock()
	svcs, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("bletest: no services for %s", id)
	}
	return svcs, nil
}

var _ ble.Stack = (*Stack)(nil)
