package permission

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBusName      = "org.bluez"
	bluezAdapterIface = "org.bluez.Adapter1"
	objectManagerCall = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZProvider answers capability requests on Linux by asking BlueZ over
// the system bus. There is no runtime grant on Linux: scan and connect are
// available when the daemon is running and exposes an adapter, and location
// is always granted.
type BlueZProvider struct {
	// Dial opens the bus connection. Nil uses dbus.ConnectSystemBus.
	Dial func(opts ...dbus.ConnOption) (*dbus.Conn, error)
}

func (p BlueZProvider) RequestCapabilities(ctx context.Context, caps []Capability) (map[Capability]Result, error) {
	dial := p.Dial
	if dial == nil {
		dial = dbus.ConnectSystemBus
	}
	conn, err := dial(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	defer conn.Close()

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !contains(names, bluezBusName) {
		return answer(caps, false), nil
	}

	var objects managedObjects
	obj := conn.Object(bluezBusName, "/")
	if err := obj.CallWithContext(ctx, objectManagerCall, 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", err)
	}
	return answer(caps, hasAdapter(objects)), nil
}

// hasAdapter reports whether any managed object implements Adapter1.
func hasAdapter(objects managedObjects) bool {
	for _, ifaces := range objects {
		if _, ok := ifaces[bluezAdapterIface]; ok {
			return true
		}
	}
	return false
}

func answer(caps []Capability, adapter bool) map[Capability]Result {
	out := make(map[Capability]Result, len(caps))
	for _, c := range caps {
		switch {
		case c == Location:
			out[c] = Granted
		case adapter:
			out[c] = Granted
		default:
			out[c] = Denied
		}
	}
	return out
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}
