// Package gatt implements the BLE GATT peripheral that serves the current
// permit to the embedded display. The Server holds the protocol state
// machine; a Transport delivers the stack callbacks (connects, reads,
// writes) and is mockable for tests.
package gatt

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/visproj/permitsync/internal/events"
	"github.com/visproj/permitsync/internal/permit"
	"github.com/visproj/permitsync/internal/status"
)

// UUIDs the display firmware scans for. Stable for compatibility.
const (
	ServiceUUID      = "0000ff00-0000-1000-8000-00805f9b34fb"
	PermitCharUUID   = "0000ff01-0000-1000-8000-00805f9b34fb"
	SyncTypeCharUUID = "0000ff02-0000-1000-8000-00805f9b34fb"
)

// MaxChunk is the largest slice of the permit payload returned per read.
const MaxChunk = 512

// SyncType classifies why the display is reading the permit. It controls
// whether the transfer surfaces as a user-visible event.
type SyncType byte

const (
	SyncAuto   SyncType = 1 // routine re-read (reboot, periodic); silent unless the permit changed
	SyncManual SyncType = 2 // operator-triggered; always surfaces
	SyncForce  SyncType = 3 // operator-triggered full refresh; always surfaces
)

// ErrUnknownCharacteristic is returned for reads or writes addressing a
// characteristic this service does not expose. Transports map it to a
// GATT failure status.
var ErrUnknownCharacteristic = errors.New("gatt: unknown characteristic")

// Handler receives stack callbacks from a Transport.
type Handler interface {
	HandleConnect(connID string)
	HandleDisconnect(connID string)
	// HandleRead returns the payload chunk for a characteristic read at
	// the given offset.
	HandleRead(connID, charUUID string, offset int) ([]byte, error)
	// HandleWrite processes a characteristic write. withResponse indicates
	// the client asked for an acknowledgment.
	HandleWrite(connID, charUUID string, value []byte, withResponse bool) error
}

// Transport carries the hardware side: advertising and callback delivery.
type Transport interface {
	Start(deviceName string, h Handler) error
	Stop() error
}

// Repository is the slice of the permit store the server needs.
type Repository interface {
	RemotePermit() (*permit.Permit, error)
	DisplayPermit() (*permit.Permit, error)
	DisplayPermitNumber() (string, error)
	SetDisplayPermit(p *permit.Permit, now time.Time) error
	DisplayFlipped() (bool, error)
}

type sessionState int

const (
	stateConnected sessionState = iota
	stateTransactionPending
)

// session tracks one connected display. The cached payload pins the bytes
// of the in-flight read transaction so later chunks match the first.
type session struct {
	state   sessionState
	payload []byte
	txID    string
}

// Server is the GATT permit peripheral.
type Server struct {
	repo      Repository
	bus       *events.Bus
	transport Transport
	now       func() time.Time

	mu          sync.Mutex
	sessions    map[string]*session
	pendingSync SyncType
	running     bool

	stopOnce sync.Once
}

// NewServer creates a Server over the given repository and transport,
// publishing events to bus.
func NewServer(repo Repository, transport Transport, bus *events.Bus) *Server {
	return &Server{
		repo:        repo,
		bus:         bus,
		transport:   transport,
		now:         time.Now,
		sessions:    make(map[string]*session),
		pendingSync: SyncAuto,
	}
}

// Start brings up advertising and begins accepting connections.
func (s *Server) Start(deviceName string) error {
	if err := s.transport.Start(deviceName, s); err != nil {
		return fmt.Errorf("gatt: start transport: %w", err)
	}
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	s.bus.Publish(events.Event{Type: events.ServiceRunning})
	slog.Info("gatt server advertising", "service", ServiceUUID, "name", deviceName)
	return nil
}

// Stop tears down advertising and the GATT server. Idempotent.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.running = false
		s.sessions = make(map[string]*session)
		s.mu.Unlock()
		err = s.transport.Stop()
	})
	return err
}

// IsRunning reports whether the server is advertising.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// HandleConnect resets the pending sync type; every connection starts as
// a routine auto sync until the display says otherwise.
func (s *Server) HandleConnect(connID string) {
	s.mu.Lock()
	s.sessions[connID] = &session{state: stateConnected}
	s.pendingSync = SyncAuto
	s.mu.Unlock()

	slog.Debug("display connected", "conn", connID)
	s.bus.Publish(events.Event{Type: events.DeviceConnected, Device: connID})
}

// HandleDisconnect drops the session and its cached transaction payload.
func (s *Server) HandleDisconnect(connID string) {
	s.mu.Lock()
	delete(s.sessions, connID)
	s.mu.Unlock()

	slog.Debug("display disconnected", "conn", connID)
	s.bus.Publish(events.Event{Type: events.DeviceDisconnected, Device: connID})
}

// HandleWrite accepts the one-byte sync-type value. Unknown characteristics
// fail; malformed values are ignored so a confused display cannot wedge
// the server.
func (s *Server) HandleWrite(connID, charUUID string, value []byte, withResponse bool) error {
	if charUUID != SyncTypeCharUUID {
		return ErrUnknownCharacteristic
	}
	if len(value) != 1 {
		slog.Warn("sync-type write with bad length", "conn", connID, "len", len(value))
		return nil
	}
	st := SyncType(value[0])
	switch st {
	case SyncAuto, SyncManual, SyncForce:
	default:
		slog.Warn("sync-type write with unknown value", "conn", connID, "value", value[0])
		return nil
	}

	s.mu.Lock()
	s.pendingSync = st
	s.mu.Unlock()

	slog.Debug("sync type set", "conn", connID, "type", st)
	return nil
}

// HandleRead serves one chunk of the permit payload. The decision step —
// commit display state and classify the transfer — runs exactly once per
// transaction, gated on offset 0. Later chunks of the same logical read
// are served from a payload cached on the session.
func (s *Server) HandleRead(connID, charUUID string, offset int) ([]byte, error) {
	if charUUID != PermitCharUUID {
		return nil, ErrUnknownCharacteristic
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[connID]
	if sess == nil {
		// Read from a connection the transport never announced. Accept it;
		// some stacks deliver the first read before the connect callback.
		sess = &session{state: stateConnected}
		s.sessions[connID] = sess
	}

	if offset == 0 {
		if err := s.beginTransaction(connID, sess); err != nil {
			return nil, err
		}
	}

	if sess.state != stateTransactionPending {
		// Chunk read with no transaction in flight; nothing to serve.
		return []byte{}, nil
	}

	part := chunk(sess.payload, offset)
	if offset > 0 && len(part) == 0 {
		// The read ran past the end; this transaction is complete.
		sess.state = stateConnected
	}
	return part, nil
}

// beginTransaction runs the offset-0 decision step. Caller holds s.mu.
func (s *Server) beginTransaction(connID string, sess *session) error {
	syncType := s.pendingSync
	// Consumed by this transaction whatever the outcome.
	s.pendingSync = SyncAuto

	remote, err := s.repo.RemotePermit()
	if err != nil {
		return err
	}
	if !remote.IsValid() {
		// Nothing fetched yet. Serve an empty record and commit nothing.
		sess.payload = []byte("{}")
		sess.state = stateTransactionPending
		slog.Warn("permit read with no remote permit cached", "conn", connID)
		return nil
	}

	flipped, err := s.repo.DisplayFlipped()
	if err != nil {
		return err
	}
	displayNumber, err := s.repo.DisplayPermitNumber()
	if err != nil {
		return err
	}

	// New means the display provably holds a different permit. A first-ever
	// sync has nothing recorded and stays silent unless manually triggered.
	isNewPermit := displayNumber != "" && displayNumber != remote.PermitNumber
	isManualSync := syncType == SyncManual || syncType == SyncForce

	// Captured before the commit overwrites it; only price-change
	// messaging cares.
	previous, err := s.repo.DisplayPermit()
	if err != nil {
		return err
	}

	served := *remote
	served.DisplayFlipped = flipped
	payload, err := served.ToJSON()
	if err != nil {
		return err
	}

	if err := s.repo.SetDisplayPermit(&served, s.now()); err != nil {
		return err
	}

	sess.payload = payload
	sess.state = stateTransactionPending
	sess.txID = uuid.New().String()

	slog.Info("permit read transaction",
		"conn", connID,
		"tx", sess.txID,
		"permit", served.PermitNumber,
		"sync_type", syncType,
		"new", isNewPermit,
		"bytes", len(payload))

	if isNewPermit {
		if delta := status.PriceDelta(previous, &served); delta != "" {
			slog.Info("permit price changed", "tx", sess.txID, "delta", delta)
		}
	}

	if isManualSync || isNewPermit {
		s.bus.Publish(events.Event{
			Type:   events.PermitRead,
			Device: connID,
			TxID:   sess.txID,
			IsNew:  isNewPermit,
		})
	}
	return nil
}

// chunk slices payload for a read at offset: min(remaining, MaxChunk)
// bytes, or an empty success chunk when the offset is at or past the end.
func chunk(payload []byte, offset int) []byte {
	if offset < 0 || offset >= len(payload) {
		return []byte{}
	}
	end := offset + MaxChunk
	if end > len(payload) {
		end = len(payload)
	}
	return payload[offset:end]
}

func (t SyncType) String() string {
	switch t {
	case SyncAuto:
		return "auto"
	case SyncManual:
		return "manual"
	case SyncForce:
		return "force"
	default:
		return fmt.Sprintf("sync_type(%d)", byte(t))
	}
}
