package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoStack wraps tinygo-org/bluetooth.
// On macOS, peripheral IDs are CoreBluetooth UUIDs (not MAC addresses); on
// Linux they are MAC addresses. Either way the ID is Address.String().
type TinyGoStack struct {
	Emitter

	adapter *bluetooth.Adapter

	// mu protects scanning and the devices map.
	mu       sync.Mutex
	scanning bool
	devices  map[string]*bluetooth.Device // open connections keyed by ID
}

// NewTinyGoStack creates a Stack backed by the default adapter.
func NewTinyGoStack() *TinyGoStack {
	return &TinyGoStack{
		adapter: bluetooth.DefaultAdapter,
		devices: make(map[string]*bluetooth.Device),
	}
}

func (s *TinyGoStack) Start(opts StartOptions) error {
	if opts.ShowAlert {
		slog.Debug("[BLE] show_alert is not supported by this stack, ignoring")
	}
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	// The adapter-level handler fires for connections we opened and for
	// drops initiated by the peripheral or the OS.
	s.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		if connected {
			s.Emit(Event{Kind: PeripheralConnected, ID: id})
			return
		}
		s.mu.Lock()
		delete(s.devices, id)
		s.mu.Unlock()
		s.Emit(Event{Kind: PeripheralDisconnected, ID: id})
	})

	return nil
}

func (s *TinyGoStack) Scan(ctx context.Context, opts ScanOptions) error {
	filters := make([]bluetooth.UUID, 0, len(opts.ServiceUUIDs))
	for _, raw := range opts.ServiceUUIDs {
		uuid, err := bluetooth.ParseUUID(raw)
		if err != nil {
			return fmt.Errorf("ble: parse service UUID %q: %w", raw, err)
		}
		filters = append(filters, uuid)
	}

	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		return ErrScanInProgress
	}
	s.scanning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
		s.Emit(Event{Kind: ScanStopped})
	}()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}
	if ctx.Err() != nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.adapter.StopScan()
		case <-done:
		}
	}()

	var seenMu sync.Mutex
	seen := make(map[string]bool)

	s.Emit(Event{Kind: ScanStarted})
	err := s.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !matchesService(result, filters) {
			return
		}
		id := result.Address.String()
		if !opts.AllowDuplicates {
			seenMu.Lock()
			dup := seen[id]
			seen[id] = true
			seenMu.Unlock()
			if dup {
				return
			}
		}
		s.Emit(Event{
			Kind: PeripheralDiscovered,
			ID:   id,
			Name: result.LocalName(),
			RSSI: int(result.RSSI),
		})
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func matchesService(result bluetooth.ScanResult, filters []bluetooth.UUID) bool {
	if len(filters) == 0 {
		return true
	}
	for _, uuid := range filters {
		if result.HasServiceUUID(uuid) {
			return true
		}
	}
	return false
}

func (s *TinyGoStack) StopScan() error {
	s.mu.Lock()
	scanning := s.scanning
	s.mu.Unlock()
	if !scanning {
		return nil
	}
	if err := s.adapter.StopScan(); err != nil {
		return fmt.Errorf("ble: stop scan: %w", err)
	}
	return nil
}

func (s *TinyGoStack) Connect(ctx context.Context, id string) error {
	s.mu.Lock()
	_, open := s.devices[id]
	s.mu.Unlock()
	if open {
		return nil
	}

	var addr bluetooth.Address
	addr.Set(id)

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := s.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect will eventually time out or succeed.
		// We can't cancel it from here, but we return immediately.
		return fmt.Errorf("ble: connect to %s: %w", id, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return fmt.Errorf("ble: connect to %s: %w", id, result.err)
		}
		s.mu.Lock()
		s.devices[id] = &result.device
		s.mu.Unlock()
		return nil
	}
}

func (s *TinyGoStack) Disconnect(ctx context.Context, id string) error {
	device, err := s.device(id)
	if err != nil {
		return err
	}

	ch := make(chan error, 1)
	go func() { ch <- device.Disconnect() }()

	select {
	case <-ctx.Done():
		return fmt.Errorf("ble: disconnect from %s: %w", id, ctx.Err())
	case err := <-ch:
		if err != nil {
			return fmt.Errorf("ble: disconnect from %s: %w", id, err)
		}
		s.mu.Lock()
		delete(s.devices, id)
		s.mu.Unlock()
		return nil
	}
}

func (s *TinyGoStack) RetrieveServices(ctx context.Context, id string) ([]Service, error) {
	device, err := s.device(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	svcs, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}

	services := make([]Service, 0, len(svcs))
	for _, svc := range svcs {
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("ble: discover characteristics of %s: %w", svc.UUID().String(), err)
		}
		out := Service{UUID: svc.UUID().String()}
		for _, c := range chars {
			out.Characteristics = append(out.Characteristics, c.UUID().String())
		}
		services = append(services, out)
	}
	return services, nil
}

func (s *TinyGoStack) device(id string) (*bluetooth.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[id]
	if !ok {
		return nil, fmt.Errorf("ble: %s: %w", id, ErrNotConnected)
	}
	return device, nil
}

// Compile-time check that TinyGoStack implements Stack.
var _ Stack = (*TinyGoStack)(nil)
