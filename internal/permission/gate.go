// Package permission checks that the process may scan for and connect to
// BLE peripherals before the screen starts discovery.
package permission

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chaz8081/blescreen/internal/notify"
)

// Capability is an OS-level grant needed for BLE.
type Capability string

const (
	Location         Capability = "location"
	BluetoothScan    Capability = "bluetooth_scan"
	BluetoothConnect Capability = "bluetooth_connect"
)

// Required lists the capabilities the screen requests.
var Required = []Capability{Location, BluetoothScan, BluetoothConnect}

// ParseCapability maps a config name to a Capability.
func ParseCapability(name string) (Capability, error) {
	for _, c := range Required {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("permission: unknown capability %q", name)
}

// Result is the outcome of a permission request.
type Result int

const (
	Unknown Result = iota // not requested yet
	Granted
	Denied
)

func (r Result) String() string {
	switch r {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Provider asks the platform for capabilities.
type Provider interface {
	RequestCapabilities(ctx context.Context, caps []Capability) (map[Capability]Result, error)
}

// Gate turns per-capability answers into a single Granted/Denied.
type Gate struct {
	provider Provider
	notifier notify.Notifier
	locale   *notify.Localizer
}

// NewGate creates a Gate. A nil locale uses English.
func NewGate(provider Provider, notifier notify.Notifier, locale *notify.Localizer) *Gate {
	if locale == nil {
		locale = notify.English()
	}
	return &Gate{provider: provider, notifier: notifier, locale: locale}
}

// EnsurePermissions requests every Required capability. Any refusal, any
// missing answer or a provider error yields Denied and a non-blocking
// PermissionDenied notice. It never prevents the caller from continuing.
func (g *Gate) EnsurePermissions(ctx context.Context) Result {
	answers, err := g.provider.RequestCapabilities(ctx, Required)
	if err != nil {
		slog.Warn("[PERM] permission request failed", "error", err)
		g.deny(fmt.Errorf("permission: request: %w", err))
		return Denied
	}

	var denied []Capability
	for _, c := range Required {
		if answers[c] != Granted {
			denied = append(denied, c)
		}
	}
	if len(denied) > 0 {
		slog.Warn("[PERM] permissions denied", "capabilities", denied)
		g.deny(fmt.Errorf("permission: denied: %v", denied))
		return Denied
	}

	slog.Info("[PERM] permissions granted")
	return Granted
}

func (g *Gate) deny(err error) {
	if g.notifier != nil {
		g.notifier.Notify(g.locale.PermissionDenied(err))
	}
}

// StaticProvider grants exactly the listed capabilities.
type StaticProvider struct {
	Granted []Capability
}

func (p StaticProvider) RequestCapabilities(_ context.Context, caps []Capability) (map[Capability]Result, error) {
	out := make(map[Capability]Result, len(caps))
	for _, c := range caps {
		out[c] = Denied
		for _, g := range p.Granted {
			if g == c {
				out[c] = Granted
				break
			}
		}
	}
	return out, nil
}
