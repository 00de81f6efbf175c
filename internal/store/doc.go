// Package store provides message history and account persistence for warelay.
//
// # Message Store
//
// MessageStore keeps a bounded, in-memory record of messages per conversation.
// Each conversation holds at most the configured capacity; when a new message
// arrives at a full conversation, the oldest message is evicted. Eviction is
// per-conversation, so a busy chat never crowds out a quiet one.
//
//	messages := store.NewMessageStore(1000, logger)
//	messages.Append(msg)
//
// Key operations:
//
//   - Append(msg): Record a message, evicting the oldest at capacity
//   - History(conv, limit, offset): Page through a conversation, newest first
//   - Search(query, limit): Case-insensitive substring search across all conversations
//   - MarkRead(conv): Mark inbound messages read, returns the count mutated
//   - Stats(period): Aggregate counts over a trailing window (1h/24h/7d/30d)
//   - ActiveConversations(limit): Conversations ordered by most recent activity
//
// All operations are safe for concurrent use. Reads take a snapshot under a
// per-conversation lock, so iteration never observes a partially appended
// message.
//
// # Account Store
//
// AccountStore persists user accounts to SQLite (modernc.org/sqlite, WAL mode).
// Account passwords are stored as bcrypt hashes; the store itself never sees
// plaintext credentials. A fresh database is seeded with a default admin
// account so first login works before any provisioning.
package store
