package gatt

import (
	"errors"
	"sync"
	"testing"
)

// recordingHandler captures the connection IDs callbacks arrive with. Its
// reads fail so onSyncTypeWrite stops before touching the characteristic.
type recordingHandler struct {
	mu       sync.Mutex
	writeIDs []string
	readIDs  []string
}

func (h *recordingHandler) HandleConnect(connID string)    {}
func (h *recordingHandler) HandleDisconnect(connID string) {}

func (h *recordingHandler) HandleWrite(connID, charUUID string, value []byte, withResponse bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeIDs = append(h.writeIDs, connID)
	return nil
}

func (h *recordingHandler) HandleRead(connID, charUUID string, offset int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readIDs = append(h.readIDs, connID)
	return nil, errors.New("read aborted")
}

func TestSyncTypeWriteUsesConnectedDeviceID(t *testing.T) {
	h := &recordingHandler{}
	tr := &BlueZTransport{handler: h, connID: "AA:BB:CC:DD:EE:FF"}

	tr.onSyncTypeWrite([]byte{byte(SyncManual)})

	if len(h.writeIDs) != 1 || h.writeIDs[0] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("write conn IDs = %v, want the connected device address", h.writeIDs)
	}
	if len(h.readIDs) != 1 || h.readIDs[0] != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("read conn IDs = %v, want the connected device address", h.readIDs)
	}
}

func TestSyncTypeWriteBeforeConnectCallback(t *testing.T) {
	h := &recordingHandler{}
	tr := &BlueZTransport{handler: h}

	tr.onSyncTypeWrite([]byte{byte(SyncAuto)})

	if len(h.writeIDs) != 1 || h.writeIDs[0] != "unknown" {
		t.Errorf("write conn IDs = %v, want the placeholder", h.writeIDs)
	}
}

func TestSyncTypeWriteWithoutHandler(t *testing.T) {
	tr := &BlueZTransport{}
	// Must not panic before Start has installed a handler.
	tr.onSyncTypeWrite([]byte{byte(SyncAuto)})
}
