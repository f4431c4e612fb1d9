package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// BlueZAdapter wraps tinygo-org/bluetooth for the host adapter.
type BlueZAdapter struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error
}

// NewBlueZAdapter creates an adapter over the default Bluetooth device.
func NewBlueZAdapter() *BlueZAdapter {
	return &BlueZAdapter{adapter: bluetooth.DefaultAdapter}
}

// Compile-time check that BlueZAdapter implements Adapter.
var _ Adapter = (*BlueZAdapter)(nil)

func (a *BlueZAdapter) Enable() error {
	a.enableOnce.Do(func() {
		a.enableErr = a.adapter.Enable()
	})
	return a.enableErr
}

// FindDevice scans until a peripheral advertising serviceUUID appears,
// stopping the scan on the first match or on ctx expiry.
func (a *BlueZAdapter) FindDevice(ctx context.Context, serviceUUID string) (Device, error) {
	uuid, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return Device{}, fmt.Errorf("ble: parse service UUID: %w", err)
	}

	var mu sync.Mutex
	var found Device
	var matched bool

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			a.adapter.StopScan()
		case <-done:
		}
	}()

	err = a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(uuid) {
			return
		}
		mu.Lock()
		if !matched {
			matched = true
			found = Device{
				Name: result.LocalName(),
				Addr: result.Address.String(),
				RSSI: int(result.RSSI),
			}
		}
		mu.Unlock()
		adapter.StopScan()
	})
	close(done)

	mu.Lock()
	defer mu.Unlock()
	if matched {
		return found, nil
	}
	if ctx.Err() != nil {
		return Device{}, ctx.Err()
	}
	if err != nil {
		return Device{}, fmt.Errorf("ble: scan: %w", err)
	}
	return Device{}, fmt.Errorf("ble: scan stopped without a match")
}

func (a *BlueZAdapter) Connect(ctx context.Context, addr string) (Connection, error) {
	var address bluetooth.Address
	address.Set(addr)

	// The stack's Connect blocks with its own timeout. Wrap it so ctx
	// cancellation returns promptly even if the stack is still trying.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(address, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("ble: connect to %s: %w", addr, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", addr, result.err)
		}
		return &bluezConnection{device: result.device}, nil
	}
}

type bluezConnection struct {
	device bluetooth.Device
}

func (c *bluezConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	return &bluezCharacteristic{char: chars[0]}, nil
}

func (c *bluezConnection) Disconnect() error {
	return c.device.Disconnect()
}

type bluezCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

// Write sends the command bytes. The stack exposes only
// WriteWithoutResponse here; on BlueZ that is an acknowledged dbus
// WriteValue, so write failures still surface as errors.
func (c *bluezCharacteristic) Write(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}
