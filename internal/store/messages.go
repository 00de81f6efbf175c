// ABOUTME: Bounded in-memory message history keyed by conversation
// ABOUTME: Backs history, search, stats and active-chat queries for the gateway

package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389/warelay/internal/fault"
)

// Default query limits, matching the HTTP query facade defaults.
const (
	DefaultHistoryLimit = 50
	DefaultSearchLimit  = 20
	DefaultChatsLimit   = 20
)

// conversationLog is the append log for a single conversation. Arrival
// order is authoritative for eviction and iteration; timestamps only
// decide query ordering.
type conversationLog struct {
	mu           sync.Mutex
	messages     []Message
	lastActivity time.Time
}

// MessageStore keeps a bounded per-conversation message log for the
// lifetime of the process. Independent conversations never block each
// other: the store-level lock only guards the conversation map, each
// log carries its own mutex.
type MessageStore struct {
	mu       sync.RWMutex
	logs     map[string]*conversationLog
	capacity int
	logger   *slog.Logger
}

// NewMessageStore creates a store whose per-conversation logs hold at most
// capacity messages. Pass nil logger for default.
func NewMessageStore(capacity int, logger *slog.Logger) *MessageStore {
	if capacity <= 0 {
		capacity = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageStore{
		logs:     make(map[string]*conversationLog),
		capacity: capacity,
		logger:   logger.With("component", "store"),
	}
}

// Capacity returns the per-conversation log bound.
func (s *MessageStore) Capacity() int {
	return s.capacity
}

// log returns the conversation log, creating it lazily.
func (s *MessageStore) log(conversationID string) *conversationLog {
	s.mu.RLock()
	l, ok := s.logs[conversationID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[conversationID]; ok {
		return l
	}
	l = &conversationLog{}
	s.logs[conversationID] = l
	return l
}

// peek returns the conversation log without creating it.
func (s *MessageStore) peek(conversationID string) (*conversationLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.logs[conversationID]
	return l, ok
}

// snapshot returns a copy of every conversation log.
func (s *MessageStore) snapshot() map[string][]Message {
	s.mu.RLock()
	logs := make(map[string]*conversationLog, len(s.logs))
	for id, l := range s.logs {
		logs[id] = l
	}
	s.mu.RUnlock()

	out := make(map[string][]Message, len(logs))
	for id, l := range logs {
		l.mu.Lock()
		msgs := make([]Message, len(l.messages))
		copy(msgs, l.messages)
		l.mu.Unlock()
		out[id] = msgs
	}
	return out
}

// Append inserts a message into its conversation's log in arrival order,
// evicting the oldest entries once the capacity bound is exceeded.
func (s *MessageStore) Append(msg Message) error {
	if msg.ConversationID == "" {
		return fault.New(fault.InvalidArgument, "message conversation id is required")
	}
	if msg.ID == "" {
		return fault.New(fault.InvalidArgument, "message id is required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	l := s.log(msg.ConversationID)
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	if len(l.messages) > s.capacity {
		// Reslice instead of copying; append reclaims the backing
		// array on its next growth, keeping eviction O(1) amortized.
		l.messages = l.messages[len(l.messages)-s.capacity:]
	}
	l.lastActivity = msg.Timestamp
	l.mu.Unlock()

	s.logger.Debug("message appended",
		"conversation_id", msg.ConversationID,
		"message_id", msg.ID,
		"direction", msg.Direction)
	return nil
}

// History returns up to limit messages starting at offset, newest first by
// timestamp. Unknown conversations yield an empty slice, not an error.
func (s *MessageStore) History(conversationID string, limit, offset int) ([]Message, error) {
	if conversationID == "" {
		return nil, fault.New(fault.InvalidArgument, "conversation id is required")
	}
	if limit < 0 || offset < 0 {
		return nil, fault.New(fault.InvalidArgument, "limit and offset must not be negative")
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	l, ok := s.peek(conversationID)
	if !ok {
		return []Message{}, nil
	}

	l.mu.Lock()
	msgs := make([]Message, len(l.messages))
	copy(msgs, l.messages)
	l.mu.Unlock()

	sortNewestFirst(msgs)

	if offset >= len(msgs) {
		return []Message{}, nil
	}
	msgs = msgs[offset:]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// Search returns messages whose body contains query case-insensitively,
// newest first, truncated to limit. An empty conversationID scans all
// conversations.
func (s *MessageStore) Search(query, conversationID string, limit int) ([]Message, error) {
	if query == "" {
		return nil, fault.New(fault.InvalidArgument, "search query is required")
	}
	if limit < 0 {
		return nil, fault.New(fault.InvalidArgument, "limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}

	needle := strings.ToLower(query)

	var candidates []Message
	if conversationID != "" {
		l, ok := s.peek(conversationID)
		if !ok {
			return []Message{}, nil
		}
		l.mu.Lock()
		candidates = make([]Message, len(l.messages))
		copy(candidates, l.messages)
		l.mu.Unlock()
	} else {
		for _, msgs := range s.snapshot() {
			candidates = append(candidates, msgs...)
		}
	}

	matched := candidates[:0]
	for _, m := range candidates {
		if m.Body != "" && strings.Contains(strings.ToLower(m.Body), needle) {
			matched = append(matched, m)
		}
	}

	sortNewestFirst(matched)
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// MarkRead marks every unread inbound message in the conversation as read,
// stamping the read timestamp. Returns the number of messages mutated;
// calling again once everything is read returns 0.
func (s *MessageStore) MarkRead(conversationID string) (int, error) {
	if conversationID == "" {
		return 0, fault.New(fault.InvalidArgument, "conversation id is required")
	}

	l, ok := s.peek(conversationID)
	if !ok {
		return 0, nil
	}

	now := time.Now()
	count := 0

	l.mu.Lock()
	for i := range l.messages {
		m := &l.messages[i]
		if m.Inbound() && !m.Read {
			m.Read = true
			readAt := now
			m.ReadAt = &readAt
			count++
		}
	}
	l.mu.Unlock()

	if count > 0 {
		s.logger.Debug("messages marked read",
			"conversation_id", conversationID,
			"count", count)
	}
	return count, nil
}

// UnreadCount recomputes the count of unread inbound messages currently in
// the conversation's log.
func (s *MessageStore) UnreadCount(conversationID string) int {
	l, ok := s.peek(conversationID)
	if !ok {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for i := range l.messages {
		if l.messages[i].Inbound() && !l.messages[i].Read {
			count++
		}
	}
	return count
}

// Stats computes traffic counts for messages with timestamps inside the
// period window. An empty conversationID aggregates all conversations.
func (s *MessageStore) Stats(conversationID string, period Period) (Stats, error) {
	period = period.Normalize()
	cutoff := time.Now().Add(-period.Duration())

	var candidates []Message
	if conversationID != "" {
		l, ok := s.peek(conversationID)
		if ok {
			l.mu.Lock()
			candidates = make([]Message, len(l.messages))
			copy(candidates, l.messages)
			l.mu.Unlock()
		}
	} else {
		for _, msgs := range s.snapshot() {
			candidates = append(candidates, msgs...)
		}
	}

	stats := Stats{Period: period}
	for _, m := range candidates {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		stats.Total++
		if m.Inbound() {
			stats.Received++
		} else {
			stats.Sent++
		}
		if m.HasAttachment {
			stats.Media++
		} else {
			stats.Text++
		}
	}
	return stats, nil
}

// ActiveConversations summarizes every conversation holding at least one
// message, sorted by last activity descending, truncated to limit.
func (s *MessageStore) ActiveConversations(limit int) ([]ConversationSummary, error) {
	if limit < 0 {
		return nil, fault.New(fault.InvalidArgument, "limit must not be negative")
	}
	if limit == 0 {
		limit = DefaultChatsLimit
	}

	s.mu.RLock()
	logs := make(map[string]*conversationLog, len(s.logs))
	for id, l := range s.logs {
		logs[id] = l
	}
	s.mu.RUnlock()

	summaries := make([]ConversationSummary, 0, len(logs))
	for id, l := range logs {
		l.mu.Lock()
		if len(l.messages) == 0 {
			l.mu.Unlock()
			continue
		}
		unread := 0
		for i := range l.messages {
			if l.messages[i].Inbound() && !l.messages[i].Read {
				unread++
			}
		}
		summaries = append(summaries, ConversationSummary{
			ConversationID: id,
			LastMessage:    l.messages[len(l.messages)-1],
			MessageCount:   len(l.messages),
			UnreadCount:    unread,
			LastActivity:   l.lastActivity,
		})
		l.mu.Unlock()
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// sortNewestFirst orders messages by timestamp descending. The sort is
// stable so messages sharing a timestamp keep arrival order.
func sortNewestFirst(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.After(msgs[j].Timestamp)
	})
}
