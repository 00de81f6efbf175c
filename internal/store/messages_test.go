// ABOUTME: Tests for the bounded in-memory message store.
// ABOUTME: Covers eviction, history paging, search, read marking, stats and active chats.

package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(conv, id, body string, dir Direction, ts time.Time) Message {
	return Message{
		ID:             id,
		ConversationID: conv,
		Direction:      dir,
		Body:           body,
		Timestamp:      ts,
	}
}

func TestMessageStore_Append_Validation(t *testing.T) {
	s := NewMessageStore(10, nil)

	err := s.Append(Message{ID: "m1"})
	assert.Error(t, err, "missing conversation id should be rejected")

	err = s.Append(Message{ConversationID: "c1"})
	assert.Error(t, err, "missing message id should be rejected")
}

func TestMessageStore_Append_StampsTimestamp(t *testing.T) {
	s := NewMessageStore(10, nil)

	require.NoError(t, s.Append(Message{ID: "m1", ConversationID: "c1", Direction: DirectionInbound}))

	msgs, err := s.History("c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestMessageStore_Append_EvictsOldestAtCapacity(t *testing.T) {
	const capacity = 5
	s := NewMessageStore(capacity, nil)

	base := time.Now()
	for i := 0; i < capacity+3; i++ {
		m := msg("c1", fmt.Sprintf("m%d", i), fmt.Sprintf("body %d", i), DirectionInbound, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.Append(m))
	}

	msgs, err := s.History("c1", capacity+3, 0)
	require.NoError(t, err)
	require.Len(t, msgs, capacity, "log must never exceed capacity")

	// The three oldest messages were evicted; the newest survive.
	assert.Equal(t, "m7", msgs[0].ID)
	assert.Equal(t, "m3", msgs[capacity-1].ID)
}

func TestMessageStore_Append_EvictionIsPerConversation(t *testing.T) {
	const capacity = 3
	s := NewMessageStore(capacity, nil)

	base := time.Now()
	for i := 0; i < capacity*2; i++ {
		require.NoError(t, s.Append(msg("busy", fmt.Sprintf("b%d", i), "x", DirectionInbound, base.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, s.Append(msg("quiet", "q0", "hello", DirectionInbound, base)))

	busy, err := s.History("busy", 100, 0)
	require.NoError(t, err)
	assert.Len(t, busy, capacity)

	quiet, err := s.History("quiet", 100, 0)
	require.NoError(t, err)
	assert.Len(t, quiet, 1, "a busy conversation must not evict messages from a quiet one")
}

func TestMessageStore_History_NewestFirstWithPaging(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(msg("c1", fmt.Sprintf("m%d", i), "x", DirectionInbound, base.Add(time.Duration(i)*time.Second))))
	}

	// limit 2, offset 0: the two newest messages.
	page, err := s.History("c1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m4", page[0].ID)
	assert.Equal(t, "m3", page[1].ID)

	// Next page picks up where the first left off.
	page, err = s.History("c1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "m2", page[0].ID)
	assert.Equal(t, "m1", page[1].ID)

	// Offset past the end yields an empty slice, not an error.
	page, err = s.History("c1", 2, 99)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMessageStore_History_UnknownConversation(t *testing.T) {
	s := NewMessageStore(10, nil)

	msgs, err := s.History("never-seen", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMessageStore_History_DefaultLimit(t *testing.T) {
	s := NewMessageStore(200, nil)

	base := time.Now()
	for i := 0; i < DefaultHistoryLimit+10; i++ {
		require.NoError(t, s.Append(msg("c1", fmt.Sprintf("m%d", i), "x", DirectionInbound, base.Add(time.Duration(i)*time.Second))))
	}

	msgs, err := s.History("c1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, DefaultHistoryLimit)
}

func TestMessageStore_History_NegativeArgs(t *testing.T) {
	s := NewMessageStore(10, nil)

	_, err := s.History("c1", -1, 0)
	assert.Error(t, err)

	_, err = s.History("c1", 0, -1)
	assert.Error(t, err)
}

func TestMessageStore_Search_CaseInsensitive(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	require.NoError(t, s.Append(msg("c1", "m1", "Deploy finished OK", DirectionInbound, base)))
	require.NoError(t, s.Append(msg("c2", "m2", "deploy started", DirectionOutbound, base.Add(time.Second))))
	require.NoError(t, s.Append(msg("c2", "m3", "lunch?", DirectionInbound, base.Add(2*time.Second))))

	matches, err := s.Search("DEPLOY", "", 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Newest first across conversations.
	assert.Equal(t, "m2", matches[0].ID)
	assert.Equal(t, "m1", matches[1].ID)
}

func TestMessageStore_Search_ScopedToConversation(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	require.NoError(t, s.Append(msg("c1", "m1", "hello there", DirectionInbound, base)))
	require.NoError(t, s.Append(msg("c2", "m2", "hello again", DirectionInbound, base.Add(time.Second))))

	matches, err := s.Search("hello", "c1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "m1", matches[0].ID)
}

func TestMessageStore_Search_EmptyQuery(t *testing.T) {
	s := NewMessageStore(10, nil)

	_, err := s.Search("", "", 10)
	assert.Error(t, err)
}

func TestMessageStore_Search_SkipsEmptyBodies(t *testing.T) {
	s := NewMessageStore(10, nil)

	m := msg("c1", "m1", "", DirectionInbound, time.Now())
	m.HasAttachment = true
	require.NoError(t, s.Append(m))

	matches, err := s.Search("anything", "", 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMessageStore_MarkRead_CountsThenIdempotent(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	require.NoError(t, s.Append(msg("c1", "in1", "a", DirectionInbound, base)))
	require.NoError(t, s.Append(msg("c1", "in2", "b", DirectionInbound, base.Add(time.Second))))
	require.NoError(t, s.Append(msg("c1", "out1", "c", DirectionOutbound, base.Add(2*time.Second))))

	count, err := s.MarkRead("c1")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only inbound messages are marked")
	assert.Equal(t, 0, s.UnreadCount("c1"))

	// Second call mutates nothing.
	count, err = s.MarkRead("c1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMessageStore_MarkRead_StampsReadAt(t *testing.T) {
	s := NewMessageStore(10, nil)

	require.NoError(t, s.Append(msg("c1", "m1", "a", DirectionInbound, time.Now())))

	_, err := s.MarkRead("c1")
	require.NoError(t, err)

	msgs, err := s.History("c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Read)
	require.NotNil(t, msgs[0].ReadAt)
}

func TestMessageStore_MarkRead_UnknownConversation(t *testing.T) {
	s := NewMessageStore(10, nil)

	count, err := s.MarkRead("never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMessageStore_Stats_WindowFiltering(t *testing.T) {
	s := NewMessageStore(100, nil)

	now := time.Now()
	require.NoError(t, s.Append(msg("c1", "old", "x", DirectionInbound, now.Add(-48*time.Hour))))
	require.NoError(t, s.Append(msg("c1", "recent-in", "x", DirectionInbound, now.Add(-time.Minute))))
	require.NoError(t, s.Append(msg("c1", "recent-out", "x", DirectionOutbound, now.Add(-time.Minute))))
	withMedia := msg("c1", "recent-media", "", DirectionInbound, now.Add(-time.Minute))
	withMedia.HasAttachment = true
	require.NoError(t, s.Append(withMedia))

	stats, err := s.Stats("", PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, PeriodDay, stats.Period)
	assert.Equal(t, 3, stats.Total, "messages older than the window are excluded")
	assert.Equal(t, 2, stats.Received)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Media)
	assert.Equal(t, 2, stats.Text)
}

func TestMessageStore_Stats_UnknownPeriodDefaultsToDay(t *testing.T) {
	s := NewMessageStore(10, nil)

	stats, err := s.Stats("", Period("fortnight"))
	require.NoError(t, err)
	assert.Equal(t, PeriodDay, stats.Period)
}

func TestPeriod_Duration(t *testing.T) {
	assert.Equal(t, time.Hour, PeriodHour.Duration())
	assert.Equal(t, 24*time.Hour, PeriodDay.Duration())
	assert.Equal(t, 7*24*time.Hour, PeriodWeek.Duration())
	assert.Equal(t, 30*24*time.Hour, PeriodMonth.Duration())
	assert.Equal(t, 24*time.Hour, Period("bogus").Duration())
}

func TestMessageStore_ActiveConversations_OrderedByActivity(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	require.NoError(t, s.Append(msg("stale", "m1", "old news", DirectionInbound, base.Add(-time.Hour))))
	require.NoError(t, s.Append(msg("fresh", "m2", "just now", DirectionInbound, base)))
	require.NoError(t, s.Append(msg("middle", "m3", "earlier", DirectionOutbound, base.Add(-time.Minute))))

	chats, err := s.ActiveConversations(10)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "fresh", chats[0].ConversationID)
	assert.Equal(t, "middle", chats[1].ConversationID)
	assert.Equal(t, "stale", chats[2].ConversationID)

	// Summary fields reflect the log.
	assert.Equal(t, "m2", chats[0].LastMessage.ID)
	assert.Equal(t, 1, chats[0].MessageCount)
	assert.Equal(t, 1, chats[0].UnreadCount)
}

func TestMessageStore_ActiveConversations_Limit(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(msg(fmt.Sprintf("c%d", i), fmt.Sprintf("m%d", i), "x", DirectionInbound, base.Add(time.Duration(i)*time.Second))))
	}

	chats, err := s.ActiveConversations(2)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "c4", chats[0].ConversationID)
}

func TestMessageStore_ActiveConversations_UnreadTracking(t *testing.T) {
	s := NewMessageStore(100, nil)

	base := time.Now()
	require.NoError(t, s.Append(msg("c1", "m1", "a", DirectionInbound, base)))
	require.NoError(t, s.Append(msg("c1", "m2", "b", DirectionInbound, base.Add(time.Second))))

	_, err := s.MarkRead("c1")
	require.NoError(t, err)

	chats, err := s.ActiveConversations(10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, 0, chats[0].UnreadCount)
}

func TestMessageStore_ConcurrentAppendAndQuery(t *testing.T) {
	s := NewMessageStore(50, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.Append(msg("c1", fmt.Sprintf("m%d", i), "concurrent", DirectionInbound, time.Now()))
		}
	}()

	for i := 0; i < 200; i++ {
		_, err := s.History("c1", 10, 0)
		require.NoError(t, err)
		_, err = s.Search("concurrent", "", 5)
		require.NoError(t, err)
	}
	<-done

	msgs, err := s.History("c1", 100, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(msgs), 50)
}
