// ABOUTME: Query facade composing the message store, session state machine, and driver
// ABOUTME: All synchronous send/history/search/stats operations flow through here

package gateway

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/2389/warelay/internal/config"
	"github.com/2389/warelay/internal/dedupe"
	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/hub"
	"github.com/2389/warelay/internal/session"
	"github.com/2389/warelay/internal/store"
)

// chatSuffix is the remote network's address suffix for direct chats.
const chatSuffix = "@c.us"

// Inbound messages occasionally get redelivered after driver reconnects;
// IDs seen within this window are dropped.
const (
	dedupeTTL     = 5 * time.Minute
	dedupeMaxSize = 4096
)

// Gateway composes the message store, the session state machine, and the
// driver into the synchronous query surface consumed by the HTTP layer.
// It is also the session's event sink: lifecycle events and inbound
// traffic are relayed to the hub and recorded in the store.
type Gateway struct {
	cfg      *config.Config
	messages *store.MessageStore
	session  *session.Manager
	driver   session.Driver
	hub      *hub.Hub
	dedupe   *dedupe.Cache
	logger   *slog.Logger
}

// New creates a gateway around the given driver. The session manager is
// created here with the gateway as its event sink.
func New(cfg *config.Config, messages *store.MessageStore, driver session.Driver, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		cfg:      cfg,
		messages: messages,
		driver:   driver,
		dedupe:   dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:   logger.With("component", "gateway"),
	}
	g.session = session.NewManager(driver, g, logger)
	return g
}

// AttachHub wires the realtime hub. Must be called before Run.
func (g *Gateway) AttachHub(h *hub.Hub) {
	g.hub = h
}

// Session exposes the session state machine for transports that need
// status snapshots.
func (g *Gateway) Session() *session.Manager {
	return g.session
}

// Run consumes driver events until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	g.session.Run(ctx)
}

// Close releases gateway-held resources.
func (g *Gateway) Close() {
	g.dedupe.Close()
}

// SessionEvent implements session.Sink.
func (g *Gateway) SessionEvent(ev session.Event) {
	if g.hub != nil {
		g.hub.PublishSessionEvent(ev)
	}
}

// InboundMessage implements session.Sink: deduplicate, record, fan out.
func (g *Gateway) InboundMessage(msg *store.Message) {
	if g.dedupe.CheckAndMark(msg.ID) {
		g.logger.Debug("duplicate inbound message dropped", "message_id", msg.ID)
		return
	}
	if err := g.messages.Append(*msg); err != nil {
		g.logger.Error("failed to record inbound message",
			"message_id", msg.ID,
			"error", err)
		return
	}
	if g.hub != nil {
		g.hub.PublishInboundMessage(msg)
	}
}

// MessageAck implements session.Sink.
func (g *Gateway) MessageAck(ack session.MessageAck) {
	if g.hub != nil {
		g.hub.PublishMessageAck(ack)
	}
}

// Initialize starts the underlying session.
func (g *Gateway) Initialize(ctx context.Context) (session.Snapshot, error) {
	return g.session.Initialize(ctx)
}

// Restart tears the session down and initializes it again.
func (g *Gateway) Restart(ctx context.Context) (session.Snapshot, error) {
	return g.session.Restart(ctx)
}

// Teardown stops the session; it always ends up disconnected.
func (g *Gateway) Teardown(ctx context.Context) session.Snapshot {
	return g.session.Teardown(ctx)
}

// Status returns the current session snapshot.
func (g *Gateway) Status() session.Snapshot {
	return g.session.Snapshot()
}

// Challenge returns the pending challenge payload, or NotFound when none
// is pending.
func (g *Gateway) Challenge() (string, error) {
	challenge := g.session.Challenge()
	if challenge == "" {
		return "", fault.New(fault.NotFound, "no challenge pending")
	}
	return challenge, nil
}

// requireReady gates driver-backed operations on the ready state. It
// never blocks waiting for readiness.
func (g *Gateway) requireReady() error {
	if !g.session.Ready() {
		return fault.New(fault.NotReady, "session is not connected")
	}
	return nil
}

// SendText sends a text message and records it in the history.
func (g *Gateway) SendText(ctx context.Context, to, body string) (*store.Message, error) {
	if to == "" || body == "" {
		return nil, fault.New(fault.InvalidArgument, "recipient and message body are required")
	}
	if err := g.requireReady(); err != nil {
		return nil, err
	}

	target := g.NormalizeTarget(to)
	msg, err := g.driver.SendText(ctx, target, body)
	if err != nil {
		return nil, fault.Wrap(fault.DriverFailure, err, "sending message")
	}

	g.recordOutbound(msg, target)
	return msg, nil
}

// SendAttachment sends a file with an optional caption and records it in
// the history.
func (g *Gateway) SendAttachment(ctx context.Context, to, filePath, caption string) (*store.Message, error) {
	if to == "" || filePath == "" {
		return nil, fault.New(fault.InvalidArgument, "recipient and file path are required")
	}
	if _, err := os.Stat(filePath); err != nil {
		return nil, fault.Wrap(fault.InvalidArgument, err, "attachment file not accessible")
	}
	if err := g.requireReady(); err != nil {
		return nil, err
	}

	target := g.NormalizeTarget(to)
	msg, err := g.driver.SendAttachment(ctx, target, filePath, caption)
	if err != nil {
		return nil, fault.Wrap(fault.DriverFailure, err, "sending attachment")
	}

	g.recordOutbound(msg, target)
	return msg, nil
}

// recordOutbound fills in missing fields on a driver-returned message and
// appends it to the history.
func (g *Gateway) recordOutbound(msg *store.Message, target string) {
	if msg.ConversationID == "" {
		msg.ConversationID = target
	}
	if msg.Direction == "" {
		msg.Direction = store.DirectionOutbound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if err := g.messages.Append(*msg); err != nil {
		g.logger.Error("failed to record sent message",
			"message_id", msg.ID,
			"error", err)
	}
}

// History returns stored messages for a conversation, newest first.
func (g *Gateway) History(conversationID string, limit, offset int) ([]store.Message, error) {
	return g.messages.History(conversationID, limit, offset)
}

// Search finds stored messages by case-insensitive substring match.
func (g *Gateway) Search(query, conversationID string, limit int) ([]store.Message, error) {
	return g.messages.Search(query, conversationID, limit)
}

// MarkRead marks a conversation's unread inbound messages as read and
// returns how many were mutated. Local-only: the remote network's read
// state is untouched.
func (g *Gateway) MarkRead(conversationID string) (int, error) {
	return g.messages.MarkRead(conversationID)
}

// Stats computes traffic statistics for the period.
func (g *Gateway) Stats(conversationID string, period store.Period) (store.Stats, error) {
	return g.messages.Stats(conversationID, period)
}

// ActiveChats summarizes conversations with recorded traffic.
func (g *Gateway) ActiveChats(limit int) ([]store.ConversationSummary, error) {
	return g.messages.ActiveConversations(limit)
}

// Chats lists conversations known to the remote session.
func (g *Gateway) Chats(ctx context.Context) ([]session.RemoteChat, error) {
	if err := g.requireReady(); err != nil {
		return nil, err
	}
	chats, err := g.driver.Chats(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.DriverFailure, err, "listing chats")
	}
	return chats, nil
}

// Contacts lists the remote session's contacts.
func (g *Gateway) Contacts(ctx context.Context) ([]session.Contact, error) {
	if err := g.requireReady(); err != nil {
		return nil, err
	}
	contacts, err := g.driver.Contacts(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.DriverFailure, err, "listing contacts")
	}
	return contacts, nil
}

// Info returns the identity of the connected account.
func (g *Gateway) Info(ctx context.Context) (*session.ClientInfo, error) {
	if err := g.requireReady(); err != nil {
		return nil, err
	}
	info, err := g.driver.Info(ctx)
	if err != nil {
		return nil, fault.Wrap(fault.DriverFailure, err, "fetching client info")
	}
	return info, nil
}

// NormalizeTarget converts a raw recipient into a remote network address.
// Addresses already carrying a suffix pass through unchanged. Bare
// 10-digit numbers get the configured default country code prepended;
// when no code is configured, the number is used as-is.
func (g *Gateway) NormalizeTarget(raw string) string {
	if strings.Contains(raw, "@") {
		return raw
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	number := digits.String()

	if len(number) == 10 && g.cfg.WhatsApp.DefaultCountryCode != "" {
		number = g.cfg.WhatsApp.DefaultCountryCode + number
	}
	return number + chatSuffix
}
