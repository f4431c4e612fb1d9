// Package events carries service events from the BLE components to
// whoever is watching (the daemon log loop, a UI, tests).
package events

import (
	"sync"
	"time"
)

// Type classifies a service event.
type Type int

const (
	// ServiceRunning fires once when the GATT server is advertising.
	ServiceRunning Type = iota
	// DeviceConnected fires when a display connects to the GATT server.
	DeviceConnected
	// DeviceDisconnected fires when a connected display drops.
	DeviceDisconnected
	// PermitRead fires when a characteristic-read transaction delivered
	// the permit and the transfer was notification-worthy.
	PermitRead
)

func (t Type) String() string {
	switch t {
	case ServiceRunning:
		return "service_running"
	case DeviceConnected:
		return "device_connected"
	case DeviceDisconnected:
		return "device_disconnected"
	case PermitRead:
		return "permit_read"
	default:
		return "unknown"
	}
}

// Event is one service event.
type Event struct {
	Type   Type
	Device string // connection identifier, empty for ServiceRunning
	TxID   string // read-transaction identifier, PermitRead only
	IsNew  bool   // PermitRead only: the permit number changed
	Time   time.Time
}

// Bus is a small fan-out channel. Publish never blocks; a subscriber that
// falls behind loses events rather than stalling the BLE callbacks.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving all future events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers ev to every subscriber, dropping it for any whose
// buffer is full.
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
