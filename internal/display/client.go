// Package display implements the central-role push client that commands
// the embedded permit display to refresh itself over BLE.
package display

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visproj/permitsync/internal/ble"
)

// UUIDs advertised by the display firmware. Stable for compatibility.
const (
	ServiceUUID     = "0000ff10-0000-1000-8000-00805f9b34fb"
	CommandCharUUID = "0000ff11-0000-1000-8000-00805f9b34fb"
)

// Commands accepted by the display's command characteristic.
const (
	cmdSync  = "SYNC"
	cmdForce = "FORCE"
)

// DefaultScanTimeout bounds how long a push waits for the display to
// advertise before giving up.
const DefaultScanTimeout = 10 * time.Second

var (
	// ErrNotFound means no display advertised within the scan window.
	ErrNotFound = errors.New("display: device not found")
	// ErrProtocolMismatch means the connected device lacks the expected
	// service or command characteristic.
	ErrProtocolMismatch = errors.New("display: protocol mismatch")
	// ErrWriteFailed means the command write was not acknowledged.
	ErrWriteFailed = errors.New("display: command write failed")
	// ErrPermissionDenied means the adapter could not be enabled,
	// usually missing Bluetooth permissions or a powered-off radio.
	ErrPermissionDenied = errors.New("display: bluetooth permission denied")
)

// State is the push state machine position, exposed for status reporting.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateDiscovering
	StateWriting
	StateDone
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateDiscovering:
		return "discovering"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Client pushes refresh commands to the display. One push at a time;
// Push blocks until a terminal state and never retries internally.
type Client struct {
	adapter     ble.Adapter
	scanTimeout time.Duration

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	conn     ble.Connection
	released bool
}

// NewClient creates a push client over adapter. A zero scanTimeout
// selects DefaultScanTimeout.
func NewClient(adapter ble.Adapter, scanTimeout time.Duration) *Client {
	if scanTimeout <= 0 {
		scanTimeout = DefaultScanTimeout
	}
	return &Client{
		adapter:     adapter,
		scanTimeout: scanTimeout,
		state:       StateIdle,
	}
}

// State reports the current state machine position.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Push scans for the display, connects, and writes a refresh command.
// force selects the FORCE command, which makes the display treat the
// following read as operator-initiated.
func (c *Client) Push(ctx context.Context, force bool) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancel = cancel
	c.released = false
	c.conn = nil
	c.mu.Unlock()
	defer c.release()

	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	c.setState(StateScanning)
	scanCtx, scanCancel := context.WithTimeout(ctx, c.scanTimeout)
	defer scanCancel()
	dev, err := c.adapter.FindDevice(scanCtx, ServiceUUID)
	if err != nil {
		c.setState(StateTimedOut)
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	slog.Debug("display found", "name", dev.Name, "addr", dev.Addr, "rssi", dev.RSSI)

	c.setState(StateConnecting)
	conn, err := c.adapter.Connect(ctx, dev.Addr)
	if err != nil {
		// The display advertised but the link never came up; it is gone
		// as far as this attempt is concerned.
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	c.mu.Lock()
	if c.released {
		// Cancelled while connecting; the teardown already ran, so this
		// late connection must be closed here.
		c.mu.Unlock()
		conn.Disconnect()
		return ctx.Err()
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateDiscovering)
	char, err := conn.DiscoverCharacteristic(ServiceUUID, CommandCharUUID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}

	c.setState(StateWriting)
	cmd := cmdSync
	if force {
		cmd = cmdForce
	}
	if err := char.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	c.setState(StateDone)
	slog.Info("display push acknowledged", "command", cmd, "addr", dev.Addr)
	return nil
}

// Cancel aborts an in-flight push. Safe to call from any state and
// more than once.
func (c *Client) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.release()
}

// release tears down the connection and cancellation exactly once per push.
func (c *Client) release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			slog.Debug("display disconnect", "error", err)
		}
	}
}
