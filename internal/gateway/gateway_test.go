// ABOUTME: Tests for the gateway facade tying session, store and hub together.
// ABOUTME: Covers readiness gating, target normalization, inbound dedupe and send recording.

package gateway

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/warelay/internal/config"
	"github.com/2389/warelay/internal/fault"
	"github.com/2389/warelay/internal/session"
	"github.com/2389/warelay/internal/store"
)

// scriptDriver lets tests feed lifecycle events and inspect sends.
type scriptDriver struct {
	mu     sync.Mutex
	events chan session.DriverEvent
	sends  []string
}

func newScriptDriver() *scriptDriver {
	return &scriptDriver{events: make(chan session.DriverEvent, 16)}
}

func (d *scriptDriver) Start(ctx context.Context) error { return nil }
func (d *scriptDriver) Stop(ctx context.Context) error  { return nil }

func (d *scriptDriver) SendText(ctx context.Context, target, body string) (*store.Message, error) {
	d.mu.Lock()
	d.sends = append(d.sends, target)
	d.mu.Unlock()
	return &store.Message{ID: "sent-" + target, ConversationID: target, Body: body}, nil
}

func (d *scriptDriver) SendAttachment(ctx context.Context, target, filePath, caption string) (*store.Message, error) {
	d.mu.Lock()
	d.sends = append(d.sends, target)
	d.mu.Unlock()
	return &store.Message{ID: "sent-media-" + target, ConversationID: target, Body: caption, HasAttachment: true}, nil
}

func (d *scriptDriver) Chats(ctx context.Context) ([]session.RemoteChat, error) {
	return []session.RemoteChat{{ID: "chat-1", Name: "Chat One"}}, nil
}

func (d *scriptDriver) Contacts(ctx context.Context) ([]session.Contact, error) { return nil, nil }

func (d *scriptDriver) Info(ctx context.Context) (*session.ClientInfo, error) {
	return &session.ClientInfo{WID: "me@c.us", PushName: "Test", Platform: "test"}, nil
}

func (d *scriptDriver) Events() <-chan session.DriverEvent { return d.events }

func (d *scriptDriver) sentTargets() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.sends))
	copy(out, d.sends)
	return out
}

func testConfig(countryCode string) *config.Config {
	cfg := &config.Config{}
	cfg.WhatsApp.DefaultCountryCode = countryCode
	cfg.WhatsApp.HistoryCapacity = 100
	return cfg
}

func newTestGateway(t *testing.T, countryCode string) (*Gateway, *scriptDriver, *store.MessageStore) {
	t.Helper()
	drv := newScriptDriver()
	messages := store.NewMessageStore(100, nil)
	gw := New(testConfig(countryCode), messages, drv, nil)
	t.Cleanup(gw.Close)
	return gw, drv, messages
}

// connect walks the gateway's session to ready using the script driver.
func connect(t *testing.T, gw *Gateway, drv *scriptDriver) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go gw.Run(ctx)

	_, err := gw.Initialize(ctx)
	require.NoError(t, err)

	drv.events <- session.DriverEvent{Type: session.DriverAuthenticated}
	drv.events <- session.DriverEvent{Type: session.DriverReady}

	require.Eventually(t, func() bool {
		return gw.Status().IsReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_SendText_NotReady(t *testing.T) {
	gw, _, messages := newTestGateway(t, "")

	_, err := gw.SendText(context.Background(), "5551234567", "hello")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.NotReady))

	// A refused send never touches the history.
	chats, err := messages.ActiveConversations(10)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestGateway_SendText_Validation(t *testing.T) {
	gw, _, _ := newTestGateway(t, "")

	_, err := gw.SendText(context.Background(), "", "hello")
	assert.True(t, fault.IsKind(err, fault.InvalidArgument))

	_, err = gw.SendText(context.Background(), "5551234567", "")
	assert.True(t, fault.IsKind(err, fault.InvalidArgument))
}

func TestGateway_SendText_RecordsOutbound(t *testing.T) {
	gw, drv, messages := newTestGateway(t, "")
	connect(t, gw, drv)

	msg, err := gw.SendText(context.Background(), "5551234567", "hello")
	require.NoError(t, err)
	assert.Equal(t, "5551234567@c.us", msg.ConversationID)
	assert.Equal(t, store.DirectionOutbound, msg.Direction)
	assert.False(t, msg.Timestamp.IsZero())

	history, err := messages.History("5551234567@c.us", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Body)
}

func TestGateway_SendAttachment(t *testing.T) {
	gw, _, _ := newTestGateway(t, "")

	// Missing file is rejected before readiness is even checked.
	_, err := gw.SendAttachment(context.Background(), "5551234567", "/no/such/file.png", "")
	assert.True(t, fault.IsKind(err, fault.InvalidArgument))

	file := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(file, []byte("fake image"), 0644))

	gw2, drv, _ := newTestGateway(t, "")
	connect(t, gw2, drv)

	msg, err := gw2.SendAttachment(context.Background(), "5551234567", file, "caption")
	require.NoError(t, err)
	assert.True(t, msg.HasAttachment)
}

func TestGateway_NormalizeTarget(t *testing.T) {
	gw, _, _ := newTestGateway(t, "52")

	// Already-addressed targets pass through untouched.
	assert.Equal(t, "123@g.us", gw.NormalizeTarget("123@g.us"))

	// Bare 10-digit numbers get the configured country code.
	assert.Equal(t, "525551234567@c.us", gw.NormalizeTarget("5551234567"))
	assert.Equal(t, "525551234567@c.us", gw.NormalizeTarget("(555) 123-4567"))

	// Numbers already carrying a code are left alone.
	assert.Equal(t, "525551234567@c.us", gw.NormalizeTarget("525551234567"))
}

func TestGateway_NormalizeTarget_NoCountryCode(t *testing.T) {
	gw, _, _ := newTestGateway(t, "")

	assert.Equal(t, "5551234567@c.us", gw.NormalizeTarget("5551234567"))
}

func TestGateway_InboundMessage_Dedupe(t *testing.T) {
	gw, _, messages := newTestGateway(t, "")

	msg := &store.Message{ID: "m1", ConversationID: "chat-1", Direction: store.DirectionInbound, Body: "hi"}
	gw.InboundMessage(msg)
	gw.InboundMessage(msg) // redelivery

	history, err := messages.History("chat-1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "redelivered messages are stored once")
}

func TestGateway_Challenge_NotFoundWhenAbsent(t *testing.T) {
	gw, _, _ := newTestGateway(t, "")

	_, err := gw.Challenge()
	assert.True(t, fault.IsKind(err, fault.NotFound))
}

func TestGateway_Challenge_ReturnsPending(t *testing.T) {
	gw, drv, _ := newTestGateway(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gw.Run(ctx)

	_, err := gw.Initialize(ctx)
	require.NoError(t, err)
	drv.events <- session.DriverEvent{Type: session.DriverChallenge, Challenge: "qr-data"}

	require.Eventually(t, func() bool {
		return gw.Status().HasChallenge
	}, 2*time.Second, 10*time.Millisecond)

	challenge, err := gw.Challenge()
	require.NoError(t, err)
	assert.Equal(t, "qr-data", challenge)
}

func TestGateway_RemoteQueries_RequireReady(t *testing.T) {
	gw, _, _ := newTestGateway(t, "")
	ctx := context.Background()

	_, err := gw.Chats(ctx)
	assert.True(t, fault.IsKind(err, fault.NotReady))

	_, err = gw.Contacts(ctx)
	assert.True(t, fault.IsKind(err, fault.NotReady))

	_, err = gw.Info(ctx)
	assert.True(t, fault.IsKind(err, fault.NotReady))
}

func TestGateway_RemoteQueries_WhenReady(t *testing.T) {
	gw, drv, _ := newTestGateway(t, "")
	connect(t, gw, drv)

	chats, err := gw.Chats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "chat-1", chats[0].ID)

	info, err := gw.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@c.us", info.WID)
}
