// ABOUTME: Shared data types for warelay message and account storage
// ABOUTME: Defines Message, ConversationSummary, Stats and the storage error sentinels

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccount is returned when registering a username that already exists
var ErrDuplicateAccount = errors.New("account already exists")

// Direction indicates whether a message was sent or received on the session.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is a single message on a conversation. Once appended it is
// immutable except for the Read/ReadAt fields, which MarkRead mutates.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	Direction      Direction  `json:"direction"`
	Body           string     `json:"body,omitempty"`
	HasAttachment  bool       `json:"hasAttachment"`
	SenderName     string     `json:"senderName,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// Inbound reports whether the message was received from the remote network.
func (m *Message) Inbound() bool {
	return m.Direction == DirectionInbound
}

// ConversationSummary describes one conversation for active-chat listings.
type ConversationSummary struct {
	ConversationID string    `json:"conversationId"`
	LastMessage    Message   `json:"lastMessage"`
	MessageCount   int       `json:"messageCount"`
	UnreadCount    int       `json:"unreadCount"`
	LastActivity   time.Time `json:"lastActivity"`
}

// Period is a statistics window identifier.
type Period string

const (
	PeriodHour  Period = "1h"
	PeriodDay   Period = "24h"
	PeriodWeek  Period = "7d"
	PeriodMonth Period = "30d"
)

// Duration maps a period to its window length. Unrecognized values fall
// back to 24h, matching the query contract.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	case PeriodMonth:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Normalize returns the period itself if recognized, otherwise PeriodDay.
func (p Period) Normalize() Period {
	switch p {
	case PeriodHour, PeriodDay, PeriodWeek, PeriodMonth:
		return p
	default:
		return PeriodDay
	}
}

// Stats summarizes message traffic within a period.
type Stats struct {
	Period   Period `json:"period"`
	Total    int    `json:"total"`
	Sent     int    `json:"sent"`
	Received int    `json:"received"`
	Media    int    `json:"mediaMessages"`
	Text     int    `json:"textMessages"`
}

// Account is a registered gateway user.
type Account struct {
	Username     string     `json:"username"`
	DisplayName  string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
}
