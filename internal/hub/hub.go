// ABOUTME: In-memory fan-out hub routing session and message events to realtime subscribers
// ABOUTME: Tracks authenticated connections and their per-conversation interest groups

package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/warelay/internal/auth"
	"github.com/2389/warelay/internal/session"
	"github.com/2389/warelay/internal/store"
)

// SessionState is what the hub needs from the session state machine to
// answer status pulls and push snapshots to late joiners.
type SessionState interface {
	Snapshot() session.Snapshot
	Challenge() string
}

// Hub authenticates realtime subscribers, organizes them into
// per-conversation groups, and fans session and message events out to
// them. Global events (session status, challenge, acks) reach every
// connection; conversation-scoped events only reach group members.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[string]*Conn // conversationID -> connID -> conn
	joined map[string]map[string]bool  // connID -> conversationID set

	sess   SessionState
	store  *store.MessageStore
	logger *slog.Logger
}

// New creates a hub. Pass nil logger for default.
func New(sess SessionState, messages *store.MessageStore, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		conns:  make(map[string]*Conn),
		groups: make(map[string]map[string]*Conn),
		joined: make(map[string]map[string]bool),
		sess:   sess,
		store:  messages,
		logger: logger.With("component", "hub"),
	}
}

// Register adds an authenticated connection and immediately pushes the
// current session snapshot (and pending challenge, if any) so late
// joiners are never stale.
func (h *Hub) Register(principal auth.Principal) *Conn {
	conn := newConn(uuid.New().String(), principal)

	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.joined[conn.ID] = make(map[string]bool)
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info("client connected",
		"connection_id", conn.ID,
		"user_id", principal.ID,
		"total_connections", total)

	h.pushSnapshot(conn)
	return conn
}

// Unregister removes a connection from the registry and from all of its
// group memberships atomically, then closes its event stream. No event
// is sent to other members.
func (h *Hub) Unregister(conn *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn.ID)
	for convID := range h.joined[conn.ID] {
		h.removeFromGroupLocked(convID, conn.ID)
	}
	delete(h.joined, conn.ID)
	total := len(h.conns)
	h.mu.Unlock()

	conn.close()

	h.logger.Info("client disconnected",
		"connection_id", conn.ID,
		"user_id", conn.Principal.ID,
		"total_connections", total)
}

// Join adds the connection to a conversation group. Idempotent; only
// affects event routing, never message storage.
func (h *Hub) Join(conn *Conn, conversationID string) {
	if conversationID == "" {
		return
	}

	h.mu.Lock()
	if _, ok := h.conns[conn.ID]; !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := h.groups[conversationID]; !ok {
		h.groups[conversationID] = make(map[string]*Conn)
	}
	h.groups[conversationID][conn.ID] = conn
	h.joined[conn.ID][conversationID] = true
	h.mu.Unlock()

	h.logger.Debug("joined conversation",
		"connection_id", conn.ID,
		"conversation_id", conversationID)
}

// Leave removes the connection from a conversation group. Idempotent.
func (h *Hub) Leave(conn *Conn, conversationID string) {
	h.mu.Lock()
	h.removeFromGroupLocked(conversationID, conn.ID)
	if set, ok := h.joined[conn.ID]; ok {
		delete(set, conversationID)
	}
	h.mu.Unlock()

	h.logger.Debug("left conversation",
		"connection_id", conn.ID,
		"conversation_id", conversationID)
}

// removeFromGroupLocked removes one membership and prunes empty groups.
func (h *Hub) removeFromGroupLocked(conversationID, connID string) {
	members, ok := h.groups[conversationID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, conversationID)
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BroadcastAll sends an event to every connection. Fire and forget:
// events are dropped for connections whose buffers are full.
func (h *Hub) BroadcastAll(event string, data any) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	ev := Envelope{Event: event, Data: data}
	for _, c := range targets {
		if !c.send(ev) {
			h.logger.Debug("dropped event for slow subscriber",
				"connection_id", c.ID,
				"event", event)
		}
	}
}

// BroadcastGroup sends an event to the members of a conversation group.
// If excludeConnID is non-empty, that connection is skipped (used to
// avoid echoing a command back to its originator).
func (h *Hub) BroadcastGroup(conversationID, event string, data any, excludeConnID string) {
	h.mu.RLock()
	members, ok := h.groups[conversationID]
	if !ok || len(members) == 0 {
		h.mu.RUnlock()
		return
	}
	// Snapshot the member set under the read lock to avoid racing
	// concurrent joins/leaves during the sends.
	targets := make([]*Conn, 0, len(members))
	for id, c := range members {
		if excludeConnID != "" && id == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	ev := Envelope{Event: event, Data: data}
	for _, c := range targets {
		if !c.send(ev) {
			h.logger.Debug("dropped event for slow subscriber",
				"connection_id", c.ID,
				"conversation_id", conversationID,
				"event", event)
		}
	}
}

// sendTo delivers an event to a single connection.
func (h *Hub) sendTo(conn *Conn, event string, data any) {
	if !conn.send(Envelope{Event: event, Data: data}) {
		h.logger.Debug("dropped event for slow subscriber",
			"connection_id", conn.ID,
			"event", event)
	}
}

// pushSnapshot sends the current session status to a connection, plus the
// challenge payload when one is pending.
func (h *Hub) pushSnapshot(conn *Conn) {
	snap := h.sess.Snapshot()
	h.sendTo(conn, EventStatus, snap)

	if snap.HasChallenge {
		if challenge := h.sess.Challenge(); challenge != "" {
			h.sendTo(conn, EventChallenge, ChallengePayload{Payload: challenge})
		}
	}
}

// PublishSessionEvent fans a session lifecycle event out to every
// connection, mapped to its wire event name.
func (h *Hub) PublishSessionEvent(ev session.Event) {
	switch ev.Status {
	case session.StatusQRCode:
		h.BroadcastAll(EventChallenge, ChallengePayload{Payload: ev.Challenge})
	case session.StatusAuthenticated:
		h.BroadcastAll(EventAuthenticated, struct{}{})
	case session.StatusReady:
		h.BroadcastAll(EventReady, struct{}{})
	case session.StatusAuthFailure:
		h.BroadcastAll(EventAuthFailure, ReasonPayload{Reason: ev.Reason})
	case session.StatusDisconnected:
		h.BroadcastAll(EventDisconnected, ReasonPayload{Reason: ev.Reason})
	default:
		// initializing and error states surface as a plain status update
		h.BroadcastAll(EventStatus, ev.Snapshot())
	}
}

// PublishInboundMessage delivers an inbound message to the members of its
// conversation group.
func (h *Hub) PublishInboundMessage(msg *store.Message) {
	h.BroadcastGroup(msg.ConversationID, EventInboundMessage, msg, "")
}

// PublishMessageAck delivers a delivery-state change to every connection.
// Acks carry no conversation reference, so they are global.
func (h *Hub) PublishMessageAck(ack session.MessageAck) {
	h.BroadcastAll(EventMessageAck, ack)
}

// Close unregisters every connection and closes their event streams.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.groups = make(map[string]map[string]*Conn)
	h.joined = make(map[string]map[string]bool)
	h.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	h.logger.Debug("hub closed")
}
