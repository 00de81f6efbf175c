// ABOUTME: Driver capability boundary for the external messaging network
// ABOUTME: Defines the driver interface, its event stream, and remote-side data shapes

package session

import (
	"context"

	"github.com/2389/warelay/internal/store"
)

// Driver is the opaque capability that talks to the remote messaging
// network. Start and Stop kick off asynchronous work; lifecycle progress
// arrives on the Events channel, never as a blocking return.
type Driver interface {
	// Start begins establishing the remote session. Progress (challenge,
	// authenticated, ready, failures) is reported through Events.
	Start(ctx context.Context) error

	// Stop tears the remote session down. Best effort; the state machine
	// treats a failed stop as non-fatal.
	Stop(ctx context.Context) error

	// SendText delivers a text message to the target and returns the sent
	// message as recorded by the remote network.
	SendText(ctx context.Context, target, body string) (*store.Message, error)

	// SendAttachment delivers a file with an optional caption.
	SendAttachment(ctx context.Context, target, filePath, caption string) (*store.Message, error)

	// Chats lists conversation summaries known to the remote session.
	Chats(ctx context.Context) ([]RemoteChat, error)

	// Contacts lists the remote session's contacts.
	Contacts(ctx context.Context) ([]Contact, error)

	// Info returns the identity of the connected account.
	Info(ctx context.Context) (*ClientInfo, error)

	// Events is the driver's tagged event stream. The channel is closed
	// when the driver shuts down for good.
	Events() <-chan DriverEvent
}

// DriverEventType tags events on the driver stream.
type DriverEventType string

const (
	DriverChallenge     DriverEventType = "challenge"
	DriverAuthenticated DriverEventType = "authenticated"
	DriverReady         DriverEventType = "ready"
	DriverAuthFailure   DriverEventType = "auth_failure"
	DriverDisconnected  DriverEventType = "disconnected"
	DriverMessage       DriverEventType = "message"
	DriverMessageAck    DriverEventType = "message_ack"
)

// DriverEvent is one tagged event from the driver stream. Only the fields
// relevant to the event type are populated.
type DriverEvent struct {
	Type      DriverEventType
	Challenge string         // DriverChallenge: opaque scannable payload
	Reason    string         // DriverAuthFailure, DriverDisconnected
	Message   *store.Message // DriverMessage
	Ack       *MessageAck    // DriverMessageAck
}

// MessageAck reports a delivery-state change for a sent message.
type MessageAck struct {
	MessageID string `json:"messageId"`
	AckLevel  int    `json:"ackLevel"`
}

// RemoteChat is a conversation summary as reported by the remote network.
type RemoteChat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsGroup     bool   `json:"isGroup"`
	UnreadCount int    `json:"unreadCount"`
	Timestamp   int64  `json:"timestamp"`
	LastMessage string `json:"lastMessage,omitempty"`
}

// Contact is a contact record from the remote network.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Number      string `json:"number"`
	IsMyContact bool   `json:"isMyContact"`
}

// ClientInfo identifies the account behind the connected session.
type ClientInfo struct {
	WID      string `json:"wid"`
	PushName string `json:"pushname"`
	Platform string `json:"platform"`
}
