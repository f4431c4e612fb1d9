// Package ble abstracts the central-role Bluetooth adapter used to reach
// the embedded permit display. The interfaces keep the push state machine
// testable without hardware.
package ble

import "context"

// Device is a discovered BLE peripheral.
type Device struct {
	Name string
	Addr string
	RSSI int
}

// Characteristic is a writable GATT characteristic on a connected
// peripheral.
type Characteristic interface {
	// Write sends data and waits for the peripheral's acknowledgment.
	Write(data []byte) error
}

// Connection is an active link to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
}

// Adapter abstracts the BLE hardware adapter.
type Adapter interface {
	// Enable powers on the adapter.
	Enable() error
	// FindDevice scans for the first peripheral advertising serviceUUID.
	// It returns as soon as a match appears, or fails when ctx expires.
	FindDevice(ctx context.Context, serviceUUID string) (Device, error)
	// Connect establishes a connection to the device at addr.
	Connect(ctx context.Context, addr string) (Connection, error)
}
