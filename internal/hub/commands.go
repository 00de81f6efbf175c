// ABOUTME: Dispatches client commands from realtime connections into the store and session
// ABOUTME: Command failures become error envelopes to the originator, never connection crashes

package hub

import (
	"encoding/json"

	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/store"
)

// HandleCommand routes one client command. Errors never propagate to the
// transport: they are converted into an error envelope for the
// originating connection only.
func (h *Hub) HandleCommand(conn *Conn, event string, data json.RawMessage) {
	var err error
	switch event {
	case CommandJoin:
		err = h.handleJoin(conn, data)
	case CommandLeave:
		err = h.handleLeave(conn, data)
	case CommandGetStatus:
		h.pushSnapshot(conn)
	case CommandGetActiveChats:
		err = h.handleGetActiveChats(conn)
	case CommandMarkAsRead:
		err = h.handleMarkAsRead(conn, data)
	case CommandTypingStart:
		err = h.handleTyping(conn, data, true)
	case CommandTypingStop:
		err = h.handleTyping(conn, data, false)
	case CommandGetStats:
		err = h.handleGetStats(conn, data)
	default:
		err = fault.Newf(fault.InvalidArgument, "unknown command %q", event)
	}

	if err != nil {
		h.logger.Debug("command failed",
			"connection_id", conn.ID,
			"event", event,
			"error", err)
		h.sendTo(conn, EventError, ErrorPayload{Event: event, Error: err.Error()})
	}
}

func parseConversationRef(data json.RawMessage) (string, error) {
	var ref conversationRef
	if len(data) > 0 {
		if err := json.Unmarshal(data, &ref); err != nil {
			return "", fault.Wrap(fault.InvalidArgument, err, "malformed payload")
		}
	}
	if ref.ConversationID == "" {
		return "", fault.New(fault.InvalidArgument, "conversationId is required")
	}
	return ref.ConversationID, nil
}

func (h *Hub) handleJoin(conn *Conn, data json.RawMessage) error {
	conversationID, err := parseConversationRef(data)
	if err != nil {
		return err
	}
	h.Join(conn, conversationID)
	return nil
}

func (h *Hub) handleLeave(conn *Conn, data json.RawMessage) error {
	conversationID, err := parseConversationRef(data)
	if err != nil {
		return err
	}
	h.Leave(conn, conversationID)
	return nil
}

func (h *Hub) handleGetActiveChats(conn *Conn) error {
	chats, err := h.store.ActiveConversations(0)
	if err != nil {
		return err
	}
	h.sendTo(conn, EventActiveChats, ActiveChatsPayload{Chats: chats, Total: len(chats)})
	return nil
}

// handleMarkAsRead updates the store and notifies the other members of
// the conversation group; the requester only gets the count ack.
func (h *Hub) handleMarkAsRead(conn *Conn, data json.RawMessage) error {
	conversationID, err := parseConversationRef(data)
	if err != nil {
		return err
	}

	count, err := h.store.MarkRead(conversationID)
	if err != nil {
		return err
	}

	h.sendTo(conn, EventMarkedAsRead, MarkedAsReadPayload{Count: count})
	h.BroadcastGroup(conversationID, EventMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		ReadBy:         conn.Principal.ID,
	}, conn.ID)
	return nil
}

// handleTyping relays an ephemeral typing indicator to the other group
// members. Nothing is persisted and the sender never hears its own echo.
func (h *Hub) handleTyping(conn *Conn, data json.RawMessage, typing bool) error {
	conversationID, err := parseConversationRef(data)
	if err != nil {
		return err
	}

	h.BroadcastGroup(conversationID, EventUserTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         conn.Principal.ID,
		UserName:       conn.Principal.Name,
		Typing:         typing,
	}, conn.ID)
	return nil
}

func (h *Hub) handleGetStats(conn *Conn, data json.RawMessage) error {
	var req statsRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return fault.Wrap(fault.InvalidArgument, err, "malformed payload")
		}
	}

	stats, err := h.store.Stats(req.ConversationID, store.Period(req.Period))
	if err != nil {
		return err
	}
	h.sendTo(conn, EventStatsUpdate, stats)
	return nil
}
