// Package hub distributes realtime events to authenticated subscribers.
//
// # Overview
//
// The Hub tracks connected websocket clients and fans events out to them.
// Session lifecycle events (status changes, auth challenges, disconnects) go
// to every subscriber; conversation events (inbound messages, read receipts,
// typing indicators) go only to subscribers who have joined that
// conversation's group.
//
// # Connections
//
// Each subscriber gets a buffered outbound queue. Delivery is best-effort: a
// subscriber that cannot drain its queue has events dropped rather than
// stalling the rest of the fan-out.
//
// # Commands
//
// Subscribers send commands over the same websocket:
//
//   - join / leave: Enter or exit a conversation group
//   - getStatus: Request the current session snapshot
//   - getActiveChats: List conversations by recent activity
//   - markAsRead: Mark a conversation read; other group members are notified
//   - typingStart / typingStop: Relay typing state to other group members
//   - getStats: Request aggregate message statistics
//
// Command failures are reported only to the sender as an "error" event naming
// the command that failed.
//
// # Authentication
//
// The websocket handler verifies a JWT before upgrading the connection.
// Unauthenticated clients are rejected with 401 and never receive any event.
package hub
