// Package ble is the boundary to the native BLE stack. It defines the Stack
// interface the screen drives, the tagged Event stream the stack emits, and
// the production Stack on top of tinygo-org/bluetooth.
package ble

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrScanInProgress is returned by Scan while another scan is running.
	ErrScanInProgress = errors.New("ble: scan already in progress")
	// ErrNotConnected is returned by Disconnect and RetrieveServices for a
	// peripheral without an open connection.
	ErrNotConnected = errors.New("ble: peripheral not connected")
)

// EventKind tags an Event.
type EventKind int

const (
	PeripheralDiscovered EventKind = iota
	ScanStarted
	ScanStopped
	PeripheralConnected
	PeripheralDisconnected
)

// EventKinds lists every kind the stack emits.
var EventKinds = []EventKind{
	PeripheralDiscovered,
	ScanStarted,
	ScanStopped,
	PeripheralConnected,
	PeripheralDisconnected,
}

func (k EventKind) String() string {
	switch k {
	case PeripheralDiscovered:
		return "PeripheralDiscovered"
	case ScanStarted:
		return "ScanStarted"
	case ScanStopped:
		return "ScanStopped"
	case PeripheralConnected:
		return "PeripheralConnected"
	case PeripheralDisconnected:
		return "PeripheralDisconnected"
	default:
		return "Unknown"
	}
}

// Event is a single callback from the stack. ID is set for peripheral
// events; Name and RSSI only for PeripheralDiscovered. Name is empty when
// the peripheral advertises none.
type Event struct {
	Kind EventKind
	ID   string
	Name string
	RSSI int
}

// Subscription is a registered listener. Remove is idempotent.
type Subscription interface {
	Remove()
}

// StartOptions configures Stack.Start.
type StartOptions struct {
	ShowAlert bool // ask the OS to prompt the user when Bluetooth is off
}

// ScanOptions configures a single scan.
type ScanOptions struct {
	ServiceUUIDs    []string // empty scans for every peripheral
	Duration        time.Duration
	AllowDuplicates bool // report every advertisement, not only the first per peripheral
}

// Service is a GATT service and the UUIDs of its characteristics.
type Service struct {
	UUID            string
	Characteristics []string
}

// Stack abstracts the native BLE stack for testing.
type Stack interface {
	// Start powers on and initializes the stack.
	Start(opts StartOptions) error
	// Scan discovers peripherals, emitting ScanStarted, PeripheralDiscovered
	// and finally ScanStopped. It blocks until the duration elapses, ctx is
	// cancelled or StopScan is called.
	Scan(ctx context.Context, opts ScanOptions) error
	// StopScan ends a running scan. Stopping an idle stack is not an error.
	StopScan() error
	// Connect opens a connection to the peripheral with the given ID.
	Connect(ctx context.Context, id string) error
	// Disconnect closes the connection to the peripheral with the given ID.
	Disconnect(ctx context.Context, id string) error
	// RetrieveServices discovers the GATT services of a connected peripheral.
	RetrieveServices(ctx context.Context, id string) ([]Service, error)
	// AddListener registers handler for events of the given kind. Handlers
	// may be called from any goroutine.
	AddListener(kind EventKind, handler func(Event)) Subscription
}
