package registry

import (
	"reflect"
	"testing"
)

func TestDiscoverInsertsDisconnected(t *testing.T) {
	r := New()
	if !r.UpsertDiscovered("A", "Speaker", -40) {
		t.Error("UpsertDiscovered() on a new id should report an insert")
	}

	want := []Device{{ID: "A", Name: "Speaker", RSSI: -40, State: Disconnected}}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %+v, want %+v", got, want)
	}
}

func TestRediscoverKeepsNameUpdatesRSSI(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)
	if r.UpsertDiscovered("A", "Speaker2", -55) {
		t.Error("UpsertDiscovered() on a known id should not report an insert")
	}

	want := []Device{{ID: "A", Name: "Speaker", RSSI: -55, State: Disconnected}}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %+v, want %+v", got, want)
	}
}

func TestUnnamedDiscoveryIgnored(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)

	for _, id := range []string{"A", "B", "C"} {
		r.UpsertDiscovered(id, "", -10)
	}

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if d, _ := r.Get("A"); d.RSSI != -40 {
		t.Errorf("unnamed event for a known id changed RSSI to %d", d.RSSI)
	}
}

func TestRSSITracksLatestAcrossSequence(t *testing.T) {
	r := New()
	events := []struct {
		name string
		rssi int
	}{
		{"First", -80}, {"Second", -70}, {"Third", -30}, {"", -20}, {"Fourth", -65},
	}
	for _, ev := range events {
		r.UpsertDiscovered("A", ev.name, ev.rssi)
	}

	d, ok := r.Get("A")
	if !ok {
		t.Fatal("Get(A) not found")
	}
	if d.Name != "First" {
		t.Errorf("Name = %q, want %q", d.Name, "First")
	}
	if d.RSSI != -65 {
		t.Errorf("RSSI = %d, want -65", d.RSSI)
	}
}

func TestInsertionOrderStable(t *testing.T) {
	r := New()
	r.UpsertDiscovered("C", "Cam", -70)
	r.UpsertDiscovered("A", "Audio", -40)
	r.UpsertDiscovered("B", "Band", -50)
	r.UpsertDiscovered("C", "Cam", -10)
	r.MarkConnected("B")

	var ids []string
	for _, d := range r.List() {
		ids = append(ids, d.ID)
	}
	if want := []string{"C", "A", "B"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestRediscoverPreservesConnectionState(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)
	r.MarkConnected("A")
	r.UpsertDiscovered("A", "Speaker", -45)

	if d, _ := r.Get("A"); d.State != Connected {
		t.Errorf("State = %v, want Connected", d.State)
	}
}

func TestMarkConnectedUnknownIsNoop(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)
	before := r.List()

	if r.MarkConnected("ghost") {
		t.Error("MarkConnected(ghost) should report no update")
	}
	if got := r.List(); !reflect.DeepEqual(got, before) {
		t.Errorf("List() = %+v, want unchanged %+v", got, before)
	}
	if len(r.ConnectedIDs()) != 0 {
		t.Errorf("ConnectedIDs() = %v, want empty", r.ConnectedIDs())
	}
}

func TestMarkDisconnectedClearsConnectedSet(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)
	r.UpsertDiscovered("B", "Band", -50)
	r.MarkConnected("A")
	r.MarkConnected("B")

	if got := r.ConnectedIDs(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Fatalf("ConnectedIDs() = %v, want [A B]", got)
	}

	r.MarkDisconnected("A")
	if got := r.ConnectedIDs(); !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("ConnectedIDs() = %v, want [B]", got)
	}
	if d, _ := r.Get("A"); d.State != Disconnected {
		t.Errorf("State = %v, want Disconnected", d.State)
	}
	if r.MarkDisconnected("ghost") {
		t.Error("MarkDisconnected(ghost) should report no update")
	}
}

func TestTransitionGuard(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)

	if !r.Transition("A", Disconnected, Connecting) {
		t.Fatal("Transition(Disconnected->Connecting) should apply")
	}
	if r.Transition("A", Disconnected, Connecting) {
		t.Error("Transition from a stale state should not apply")
	}
	if r.Transition("ghost", Disconnected, Connecting) {
		t.Error("Transition on an unknown id should not apply")
	}
	if !r.Transition("A", Connecting, Connected) {
		t.Fatal("Transition(Connecting->Connected) should apply")
	}
	if got := r.ConnectedIDs(); !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("ConnectedIDs() = %v, want [A]", got)
	}
	if !r.Transition("A", Connected, Disconnected) {
		t.Fatal("Transition(Connected->Disconnected) should apply")
	}
	if len(r.ConnectedIDs()) != 0 {
		t.Errorf("ConnectedIDs() = %v, want empty", r.ConnectedIDs())
	}
}

func TestHasActiveConnections(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)
	if r.HasActiveConnections() {
		t.Error("HasActiveConnections() = true with only disconnected devices")
	}
	r.Transition("A", Disconnected, Connecting)
	if !r.HasActiveConnections() {
		t.Error("HasActiveConnections() = false with a connect in flight")
	}
}

func TestResetEmpties(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)
	r.MarkConnected("A")
	r.Reset()

	if got := r.List(); len(got) != 0 {
		t.Errorf("List() after Reset = %+v, want empty", got)
	}
	if len(r.ConnectedIDs()) != 0 {
		t.Errorf("ConnectedIDs() after Reset = %v, want empty", r.ConnectedIDs())
	}

	// The registry is usable after a reset.
	r.UpsertDiscovered("A", "Speaker", -41)
	if d, _ := r.Get("A"); d.State != Disconnected {
		t.Errorf("State after rediscovery = %v, want Disconnected", d.State)
	}
}

func TestListDoesNotAlias(t *testing.T) {
	r := New()
	r.UpsertDiscovered("A", "Speaker", -40)

	list := r.List()
	list[0].Name = "Mutated"
	list[0].State = Connected

	if d, _ := r.Get("A"); d.Name != "Speaker" || d.State != Disconnected {
		t.Errorf("mutating List() result changed registry: %+v", d)
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		state ConnectionState
		want  string
	}{
		{Disconnected, "Disconnected"},
		{Connecting, "Connecting"},
		{Connected, "Connected"},
		{Disconnecting, "Disconnecting"},
		{ConnectionState(42), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
