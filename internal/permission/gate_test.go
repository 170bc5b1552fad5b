package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/chaz8081/blescreen/internal/notify"
)

type mockProvider struct {
	answers map[Capability]Result
	err     error
	asked   []Capability
}

func (m *mockProvider) RequestCapabilities(_ context.Context, caps []Capability) (map[Capability]Result, error) {
	m.asked = caps
	return m.answers, m.err
}

func newTestGate(p Provider) (*Gate, *[]notify.Notice) {
	var notices []notify.Notice
	g := NewGate(p, notify.Func(func(n notify.Notice) { notices = append(notices, n) }), nil)
	return g, &notices
}

func TestEnsurePermissions(t *testing.T) {
	allGranted := map[Capability]Result{
		Location: Granted, BluetoothScan: Granted, BluetoothConnect: Granted,
	}
	tests := []struct {
		name    string
		answers map[Capability]Result
		err     error
		want    Result
	}{
		{"all granted", allGranted, nil, Granted},
		{"partial denial", map[Capability]Result{
			Location: Granted, BluetoothScan: Denied, BluetoothConnect: Granted,
		}, nil, Denied},
		{"missing answer", map[Capability]Result{
			Location: Granted, BluetoothScan: Granted,
		}, nil, Denied},
		{"provider error", nil, errors.New("no bus"), Denied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{answers: tt.answers, err: tt.err}
			g, notices := newTestGate(p)

			if got := g.EnsurePermissions(context.Background()); got != tt.want {
				t.Errorf("EnsurePermissions() = %v, want %v", got, tt.want)
			}
			if len(p.asked) != len(Required) {
				t.Errorf("asked for %v, want %v", p.asked, Required)
			}

			wantNotices := 0
			if tt.want == Denied {
				wantNotices = 1
			}
			if len(*notices) != wantNotices {
				t.Fatalf("notices = %d, want %d", len(*notices), wantNotices)
			}
			if wantNotices == 1 && (*notices)[0].Kind != notify.KindPermissionDenied {
				t.Errorf("notice kind = %v, want PermissionDenied", (*notices)[0].Kind)
			}
		})
	}
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{Granted: []Capability{Location, BluetoothScan}}
	got, err := p.RequestCapabilities(context.Background(), Required)
	if err != nil {
		t.Fatalf("RequestCapabilities() error = %v", err)
	}
	if got[Location] != Granted || got[BluetoothScan] != Granted {
		t.Errorf("granted capabilities = %v", got)
	}
	if got[BluetoothConnect] != Denied {
		t.Errorf("BluetoothConnect = %v, want Denied", got[BluetoothConnect])
	}
}

func TestParseCapability(t *testing.T) {
	for _, c := range Required {
		got, err := ParseCapability(string(c))
		if err != nil || got != c {
			t.Errorf("ParseCapability(%q) = %v, %v", c, got, err)
		}
	}
	if _, err := ParseCapability("camera"); err == nil {
		t.Error("ParseCapability(camera) should fail")
	}
}

func TestBlueZAnswerFromManagedObjects(t *testing.T) {
	withAdapter := managedObjects{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Powered": dbus.MakeVariant(true)},
		},
		"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF": {
			"org.bluez.Device1": {"Name": dbus.MakeVariant("Speaker")},
		},
	}
	noAdapter := managedObjects{
		"/": {"org.freedesktop.DBus.ObjectManager": {}},
	}

	if !hasAdapter(withAdapter) {
		t.Error("hasAdapter() = false with hci0 present")
	}
	if hasAdapter(noAdapter) {
		t.Error("hasAdapter() = true without an adapter")
	}

	got := answer(Required, false)
	if got[Location] != Granted {
		t.Errorf("Location = %v, want Granted", got[Location])
	}
	if got[BluetoothScan] != Denied || got[BluetoothConnect] != Denied {
		t.Errorf("without adapter = %v, want scan/connect Denied", got)
	}

	got = answer(Required, true)
	for _, c := range Required {
		if got[c] != Granted {
			t.Errorf("%s = %v, want Granted", c, got[c])
		}
	}
}

func TestBlueZDialFailure(t *testing.T) {
	p := BlueZProvider{Dial: func(...dbus.ConnOption) (*dbus.Conn, error) {
		return nil, errors.New("no system bus")
	}}
	g, notices := newTestGate(p)

	if got := g.EnsurePermissions(context.Background()); got != Denied {
		t.Errorf("EnsurePermissions() = %v, want Denied", got)
	}
	if len(*notices) != 1 {
		t.Errorf("notices = %d, want 1", len(*notices))
	}
}

func TestResultString(t *testing.T) {
	if Granted.String() != "granted" || Denied.String() != "denied" || Unknown.String() != "unknown" {
		t.Error("unexpected Result strings")
	}
}
