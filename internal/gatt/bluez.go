package gatt

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BlueZTransport carries the Server over tinygo-org/bluetooth on a real
// adapter.
//
// The host stack serves characteristic reads from the registered value
// itself and does not surface per-read callbacks, so the transport cannot
// observe read offsets directly. The display protocol always writes the
// sync-type byte before reading the permit characteristic; the transport
// uses that write to drive a full read transaction through the Handler
// and refreshes the served value with the bytes the Handler produced.
// The Handler keeps the exact offset semantics either way.
type BlueZTransport struct {
	adapter *bluetooth.Adapter

	mu         sync.Mutex
	handler    Handler
	adv        *bluetooth.Advertisement
	permitChar bluetooth.Characteristic
	connID     string
	started    bool
}

// NewBlueZTransport creates a transport on the default adapter.
func NewBlueZTransport() *BlueZTransport {
	return &BlueZTransport{adapter: bluetooth.DefaultAdapter}
}

// Compile-time check that BlueZTransport implements Transport.
var _ Transport = (*BlueZTransport)(nil)

// Start enables the adapter, registers the permit service, and begins
// advertising under deviceName.
func (t *BlueZTransport) Start(deviceName string, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return fmt.Errorf("gatt: transport already started")
	}

	if err := t.adapter.Enable(); err != nil {
		return fmt.Errorf("gatt: enable adapter: %w", err)
	}
	t.handler = h

	svcUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return fmt.Errorf("gatt: parse service UUID: %w", err)
	}
	permitUUID, err := bluetooth.ParseUUID(PermitCharUUID)
	if err != nil {
		return fmt.Errorf("gatt: parse permit characteristic UUID: %w", err)
	}
	syncUUID, err := bluetooth.ParseUUID(SyncTypeCharUUID)
	if err != nil {
		return fmt.Errorf("gatt: parse sync-type characteristic UUID: %w", err)
	}

	// The GATT link is exclusive, so tracking the single connected
	// device's address is enough to key every callback path by it.
	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		id := device.Address.String()
		t.mu.Lock()
		if connected {
			t.connID = id
		} else if t.connID == id {
			t.connID = ""
		}
		t.mu.Unlock()
		if connected {
			h.HandleConnect(id)
			return
		}
		h.HandleDisconnect(id)
	})

	err = t.adapter.AddService(&bluetooth.Service{
		UUID: svcUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &t.permitChar,
				UUID:   permitUUID,
				Flags:  bluetooth.CharacteristicReadPermission,
				Value:  []byte("{}"),
			},
			{
				UUID: syncUUID,
				Flags: bluetooth.CharacteristicWritePermission |
					bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					t.onSyncTypeWrite(value)
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("gatt: add service: %w", err)
	}

	adv := t.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    deviceName,
		ServiceUUIDs: []bluetooth.UUID{svcUUID},
	}); err != nil {
		return fmt.Errorf("gatt: configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("gatt: start advertising: %w", err)
	}
	t.adv = adv
	t.started = true
	return nil
}

// onSyncTypeWrite forwards the sync-type write and refreshes the served
// permit value by running the read transaction the display is about to
// perform. The write is attributed to the connected device recorded by
// the connect handler, so its session is the one the disconnect drops.
func (t *BlueZTransport) onSyncTypeWrite(value []byte) {
	t.mu.Lock()
	h := t.handler
	connID := t.connID
	t.mu.Unlock()
	if h == nil {
		return
	}
	if connID == "" {
		// Some stacks deliver the write before the connect callback. The
		// placeholder session is dropped when the server stops.
		connID = "unknown"
	}

	if err := h.HandleWrite(connID, SyncTypeCharUUID, value, false); err != nil {
		slog.Warn("sync-type write rejected", "conn", connID, "error", err)
		return
	}

	var payload []byte
	for offset := 0; ; offset += MaxChunk {
		part, err := h.HandleRead(connID, PermitCharUUID, offset)
		if err != nil {
			slog.Error("permit read transaction failed", "conn", connID, "error", err)
			return
		}
		if len(part) == 0 {
			break
		}
		payload = append(payload, part...)
	}

	if _, err := t.permitChar.Write(payload); err != nil {
		slog.Error("refresh permit characteristic", "conn", connID, "error", err)
	}
}

// Stop halts advertising. The adapter itself stays enabled; BlueZ owns it.
func (t *BlueZTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return nil
	}
	t.started = false
	t.handler = nil
	t.connID = ""
	if t.adv != nil {
		if err := t.adv.Stop(); err != nil {
			return fmt.Errorf("gatt: stop advertising: %w", err)
		}
	}
	return nil
}
