// ABOUTME: Lifecycle state machine for the single external messaging session
// ABOUTME: Serializes all transitions and emits exactly one event per status change

package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/store"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusDisconnected  Status = "disconnected"
	StatusInitializing  Status = "initializing"
	StatusQRCode        Status = "qr_code"
	StatusAuthenticated Status = "authenticated"
	StatusReady         Status = "ready"
	StatusAuthFailure   Status = "auth_failure"
	StatusError         Status = "error"
)

// Snapshot is a consistent view of the session state.
type Snapshot struct {
	Status       Status `json:"status"`
	IsReady      bool   `json:"isReady"`
	IsConnecting bool   `json:"isConnecting"`
	HasChallenge bool   `json:"hasChallenge"`
	LastError    string `json:"lastError,omitempty"`
}

// Event is emitted on every status change. Challenge and Reason carry the
// payload associated with the new status, when there is one.
type Event struct {
	Status    Status
	Challenge string
	Reason    string
}

// Snapshot derives the post-transition session view from the event alone.
// Consumers use this instead of querying the manager, which may still hold
// its state lock while the event is delivered.
func (e Event) Snapshot() Snapshot {
	snap := Snapshot{
		Status:       e.Status,
		IsReady:      e.Status == StatusReady,
		IsConnecting: e.Status == StatusInitializing || e.Status == StatusQRCode || e.Status == StatusAuthenticated,
		HasChallenge: e.Status == StatusQRCode,
	}
	// A disconnect reason ("teardown", "logout") is not an error; only
	// failure statuses surface their reason as one.
	if e.Status == StatusError || e.Status == StatusAuthFailure {
		snap.LastError = e.Reason
	}
	return snap
}

// Sink receives session events and driver traffic. All calls are made from
// the manager's serialized transition paths; implementations must not block.
type Sink interface {
	SessionEvent(Event)
	InboundMessage(*store.Message)
	MessageAck(MessageAck)
}

// Manager owns the lifecycle of the single external session. Transitions
// are serialized: driver events flow through the single-consumer Run loop
// and user-initiated lifecycle calls go through the same mutex-guarded
// transition function, so status read-modify-writes never interleave.
type Manager struct {
	driver Driver
	sink   Sink
	logger *slog.Logger

	// opMu serializes user-initiated lifecycle operations so a restart
	// can never interleave with an in-flight initialize.
	opMu sync.Mutex

	// mu guards the session state below.
	mu        sync.Mutex
	status    Status
	challenge string
	lastError string
}

// NewManager creates a session manager in the disconnected state.
// Pass nil logger for default.
func NewManager(driver Driver, sink Sink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		driver: driver,
		sink:   sink,
		logger: logger.With("component", "session"),
		status: StatusDisconnected,
	}
}

// Run consumes the driver event stream until ctx is cancelled or the
// stream closes. It is the single consumer, so driver-reported transitions
// are processed one at a time in arrival order.
func (m *Manager) Run(ctx context.Context) {
	events := m.driver.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleDriverEvent(ev)
		}
	}
}

// Snapshot returns a consistent view of the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		Status:       m.status,
		IsReady:      m.status == StatusReady,
		IsConnecting: m.status == StatusInitializing || m.status == StatusQRCode || m.status == StatusAuthenticated,
		HasChallenge: m.challenge != "",
		LastError:    m.lastError,
	}
}

// Ready reports whether send/query operations are currently permitted.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusReady
}

// Challenge returns the pending challenge payload, or empty if none.
func (m *Manager) Challenge() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.challenge
}

// Initialize starts the session. Only valid from disconnected (or a
// failure state, to retry); duplicate calls while already initializing or
// ready are no-ops returning the current snapshot.
func (m *Manager) Initialize(ctx context.Context) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	switch m.status {
	case StatusDisconnected, StatusAuthFailure, StatusError:
		// Allowed to (re)start from here.
	default:
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Debug("initialize ignored", "status", snap.Status)
		return snap, nil
	}
	m.transitionLocked(StatusInitializing, Event{Status: StatusInitializing})
	m.mu.Unlock()

	m.logger.Info("initializing session")
	if err := m.driver.Start(ctx); err != nil {
		m.mu.Lock()
		m.lastError = err.Error()
		m.transitionLocked(StatusError, Event{Status: StatusError, Reason: err.Error()})
		snap := m.snapshotLocked()
		m.mu.Unlock()
		m.logger.Error("driver start failed", "error", err)
		return snap, fault.Wrap(fault.DriverFailure, err, "starting session driver")
	}

	return m.Snapshot(), nil
}

// Teardown stops the driver and forces the session to disconnected. A
// driver error during stop is logged, not fatal; the session always ends
// up disconnected.
func (m *Manager) Teardown(ctx context.Context) Snapshot {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.teardownLocked(ctx)
}

func (m *Manager) teardownLocked(ctx context.Context) Snapshot {
	if err := m.driver.Stop(ctx); err != nil {
		m.logger.Warn("driver stop failed during teardown", "error", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusDisconnected {
		m.transitionLocked(StatusDisconnected, Event{Status: StatusDisconnected, Reason: "teardown"})
	}
	m.challenge = ""
	return m.snapshotLocked()
}

// Restart atomically sequences teardown followed by initialize. Holding
// the operation lock for the whole sequence keeps a concurrent initialize
// from interleaving.
func (m *Manager) Restart(ctx context.Context) (Snapshot, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.logger.Info("restarting session")
	m.teardownLocked(ctx)
	return m.initializeLocked(ctx)
}

// handleDriverEvent applies one driver event. Invalid-from-state reports
// are ignored without emitting anything.
func (m *Manager) handleDriverEvent(ev DriverEvent) {
	switch ev.Type {
	case DriverMessage:
		if ev.Message != nil && m.sink != nil {
			m.sink.InboundMessage(ev.Message)
		}
		return
	case DriverMessageAck:
		if ev.Ack != nil && m.sink != nil {
			m.sink.MessageAck(*ev.Ack)
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case DriverChallenge:
		if m.status != StatusInitializing {
			m.logger.Debug("challenge ignored", "status", m.status)
			return
		}
		m.challenge = ev.Challenge
		m.transitionLocked(StatusQRCode, Event{Status: StatusQRCode, Challenge: ev.Challenge})

	case DriverAuthenticated:
		if m.status != StatusQRCode && m.status != StatusInitializing {
			m.logger.Debug("authenticated ignored", "status", m.status)
			return
		}
		m.challenge = ""
		m.transitionLocked(StatusAuthenticated, Event{Status: StatusAuthenticated})

	case DriverReady:
		if m.status != StatusAuthenticated {
			m.logger.Debug("ready ignored", "status", m.status)
			return
		}
		m.transitionLocked(StatusReady, Event{Status: StatusReady})

	case DriverAuthFailure:
		if m.status == StatusReady {
			m.logger.Debug("auth failure ignored in ready state")
			return
		}
		m.challenge = ""
		m.lastError = ev.Reason
		m.transitionLocked(StatusAuthFailure, Event{Status: StatusAuthFailure, Reason: ev.Reason})

	case DriverDisconnected:
		if m.status == StatusDisconnected {
			return
		}
		m.challenge = ""
		m.transitionLocked(StatusDisconnected, Event{Status: StatusDisconnected, Reason: ev.Reason})

	default:
		m.logger.Warn("unknown driver event", "type", ev.Type)
	}
}

// transitionLocked changes status and emits the event. Callers hold m.mu
// and have already validated the edge; every status change goes through
// here so exactly one event is emitted per transition.
func (m *Manager) transitionLocked(next Status, ev Event) {
	prev := m.status
	m.status = next
	m.logger.Info("session transition", "from", prev, "to", next)
	if m.sink != nil {
		m.sink.SessionEvent(ev)
	}
}
