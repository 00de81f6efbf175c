// ABOUTME: Typed event catalog for the realtime distribution hub
// ABOUTME: Enumerates server-to-client events, client commands, and payload shapes

package hub

import "github.com/2389/warelay/internal/store"

// Server-to-client event names.
const (
	EventStatus         = "status"
	EventChallenge      = "challenge"
	EventAuthenticated  = "authenticated"
	EventReady          = "ready"
	EventAuthFailure    = "authFailure"
	EventDisconnected   = "disconnected"
	EventInboundMessage = "inboundMessage"
	EventMessageAck     = "messageAck"
	EventActiveChats    = "activeChats"
	EventMarkedAsRead   = "markedAsRead"
	EventMessagesRead   = "messagesRead"
	EventUserTyping     = "userTyping"
	EventStatsUpdate    = "statsUpdate"
	EventError          = "error"
)

// Client-to-server command names.
const (
	CommandJoin           = "join"
	CommandLeave          = "leave"
	CommandGetStatus      = "getStatus"
	CommandGetActiveChats = "getActiveChats"
	CommandMarkAsRead     = "markAsRead"
	CommandTypingStart    = "typingStart"
	CommandTypingStop     = "typingStop"
	CommandGetStats       = "getStats"
)

// Envelope is the wire frame for both directions: an event name plus its
// payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ChallengePayload carries the session challenge to subscribers.
type ChallengePayload struct {
	Payload string `json:"payload"`
}

// ReasonPayload carries a reason string for authFailure and disconnected.
type ReasonPayload struct {
	Reason string `json:"reason,omitempty"`
}

// MarkedAsReadPayload acknowledges a markAsRead command to its sender.
type MarkedAsReadPayload struct {
	Count int `json:"count"`
}

// MessagesReadPayload notifies group members that another user caught up.
type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

// TypingPayload relays an ephemeral typing indicator to group members.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	UserName       string `json:"userName"`
	Typing         bool   `json:"typing"`
}

// ActiveChatsPayload answers a getActiveChats pull.
type ActiveChatsPayload struct {
	Chats []store.ConversationSummary `json:"chats"`
	Total int                         `json:"total"`
}

// ErrorPayload reports a failed command to its originating connection.
type ErrorPayload struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

// Command payload shapes parsed from client envelopes.

type conversationRef struct {
	ConversationID string `json:"conversationId"`
}

type statsRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Period         string `json:"period,omitempty"`
}
