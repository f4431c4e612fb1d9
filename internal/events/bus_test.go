package events

import "testing"

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Event{Type: DeviceConnected, Device: "dev-1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Type != DeviceConnected || ev.Device != "dev-1" {
				t.Errorf("subscriber %s got %+v", name, ev)
			}
			if ev.Time.IsZero() {
				t.Errorf("subscriber %s event has zero time", name)
			}
		default:
			t.Errorf("subscriber %s received nothing", name)
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	// Overfill the subscriber buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: PermitRead})
	}

	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered events = %d, want full buffer %d", got, cap(ch))
	}
}

func TestTypeString(t *testing.T) {
	if ServiceRunning.String() != "service_running" || PermitRead.String() != "permit_read" {
		t.Error("Type.String() mismatch")
	}
}
