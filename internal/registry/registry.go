// Package registry reconciles BLE peripherals by identity into the ordered
// device list the screen displays.
//
// A Registry is owned by a single event loop and is not safe for concurrent
// use.
package registry

// ConnectionState is the connection lifecycle of a tracked device.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Disconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Device is a tracked, named peripheral.
type Device struct {
	ID    string
	Name  string
	RSSI  int
	State ConnectionState
}

// Registry maps device IDs to devices, preserving first-discovery order.
type Registry struct {
	order     []string
	devices   map[string]*Device
	connected map[string]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		devices:   make(map[string]*Device),
		connected: make(map[string]struct{}),
	}
}

// UpsertDiscovered records a discovery event. Unnamed peripherals are
// ignored. A new ID is appended as Disconnected; a known ID only has its
// RSSI refreshed, since the first-seen name is authoritative. It reports
// whether a new entry was inserted.
func (r *Registry) UpsertDiscovered(id, name string, rssi int) bool {
	if name == "" {
		return false
	}
	if d, ok := r.devices[id]; ok {
		d.RSSI = rssi
		return false
	}
	r.devices[id] = &Device{ID: id, Name: name, RSSI: rssi, State: Disconnected}
	r.order = append(r.order, id)
	return true
}

// MarkConnected sets id to Connected. Unknown IDs (for example a peripheral
// that never advertised a name) are ignored. It reports whether an entry
// was updated.
func (r *Registry) MarkConnected(id string) bool {
	d, ok := r.devices[id]
	if !ok {
		return false
	}
	d.State = Connected
	r.connected[id] = struct{}{}
	return true
}

// MarkDisconnected sets id to Disconnected and drops it from the connected
// set. It reports whether an entry was updated.
func (r *Registry) MarkDisconnected(id string) bool {
	delete(r.connected, id)
	d, ok := r.devices[id]
	if !ok {
		return false
	}
	d.State = Disconnected
	return true
}

// Transition moves id from state from to state to. It does nothing and
// returns false if the entry is gone or is no longer in state from, which
// lets async result handlers re-check state instead of trusting an earlier
// read.
func (r *Registry) Transition(id string, from, to ConnectionState) bool {
	d, ok := r.devices[id]
	if !ok || d.State != from {
		return false
	}
	switch to {
	case Connected:
		r.connected[id] = struct{}{}
	case Disconnected:
		delete(r.connected, id)
	}
	d.State = to
	return true
}

// Get returns a copy of the entry for id.
func (r *Registry) Get(id string) (Device, bool) {
	d, ok := r.devices[id]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Len returns the number of tracked devices.
func (r *Registry) Len() int {
	return len(r.order)
}

// ConnectedIDs returns the connected set in registry order.
func (r *Registry) ConnectedIDs() []string {
	ids := make([]string, 0, len(r.connected))
	for _, id := range r.order {
		if _, ok := r.connected[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// HasActiveConnections reports whether any device is connected or has a
// connect/disconnect in flight.
func (r *Registry) HasActiveConnections() bool {
	for _, d := range r.devices {
		if d.State != Disconnected {
			return true
		}
	}
	return false
}

// Reset forgets every device.
func (r *Registry) Reset() {
	r.order = nil
	r.devices = make(map[string]*Device)
	r.connected = make(map[string]struct{})
}

// List returns a copy of all devices in insertion order.
func (r *Registry) List() []Device {
	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.devices[id])
	}
	return out
}
