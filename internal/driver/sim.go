// ABOUTME: Simulated session driver for local development and demos
// ABOUTME: Walks the connect lifecycle on timers and echoes an inbound reply for every send

package driver

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/warelay/internal/session"
	"github.com/2389/warelay/internal/store"
)

const eventBufferSize = 16

// Sim is a stand-in for the real network driver. After Start it emits a
// challenge, then authenticates and becomes ready on a timer, as if the
// challenge had been scanned. Every sent message is acked and echoed
// back as an inbound reply so the full pipeline can be exercised without
// a remote account.
type Sim struct {
	sessionName string
	advance     time.Duration
	logger      *slog.Logger
	events      chan session.DriverEvent

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewSim creates a simulated driver. advance is the delay between
// lifecycle steps; pass 0 for a fast default.
func NewSim(sessionName string, advance time.Duration, logger *slog.Logger) *Sim {
	if advance <= 0 {
		advance = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sim{
		sessionName: sessionName,
		advance:     advance,
		logger:      logger.With("component", "sim-driver"),
		events:      make(chan session.DriverEvent, eventBufferSize),
	}
}

// Events returns the driver event stream.
func (s *Sim) Events() <-chan session.DriverEvent {
	return s.events
}

// Start kicks off the simulated connect sequence. Returns immediately;
// progress arrives on the event stream.
func (s *Sim) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stop = make(chan struct{})

	go s.connectSequence(s.stop)
	s.logger.Info("simulated session starting", "session", s.sessionName)
	return nil
}

// Stop halts the simulation and reports a disconnect.
func (s *Sim) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stop)
	// No disconnected event here: the state machine already forces
	// disconnected on teardown, and a stale event would race a restart.
	return nil
}

// emit queues an event without blocking; with no consumer attached the
// event is dropped rather than wedging a timer goroutine.
func (s *Sim) emit(ev session.DriverEvent) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("driver event dropped", "type", ev.Type)
	}
}

// connectSequence emits challenge, authenticated, ready in order with
// the configured delay between steps.
func (s *Sim) connectSequence(stop <-chan struct{}) {
	challenge := base64.StdEncoding.EncodeToString([]byte("sim-challenge:" + uuid.New().String()))
	s.emit(session.DriverEvent{Type: session.DriverChallenge, Challenge: challenge})

	steps := []session.DriverEvent{
		{Type: session.DriverAuthenticated},
		{Type: session.DriverReady},
	}
	for _, ev := range steps {
		select {
		case <-stop:
			return
		case <-time.After(s.advance):
		}
		s.emit(ev)
	}
}

// SendText returns the sent message and schedules an ack plus an echoed
// inbound reply.
func (s *Sim) SendText(ctx context.Context, target, body string) (*store.Message, error) {
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: target,
		Direction:      store.DirectionOutbound,
		Body:           body,
		SenderName:     "me",
		Timestamp:      time.Now(),
	}
	s.scheduleReply(msg.ID, target, "echo: "+body)
	return msg, nil
}

// SendAttachment behaves like SendText with the attachment flag set.
func (s *Sim) SendAttachment(ctx context.Context, target, filePath, caption string) (*store.Message, error) {
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: target,
		Direction:      store.DirectionOutbound,
		Body:           caption,
		HasAttachment:  true,
		SenderName:     "me",
		Timestamp:      time.Now(),
	}
	s.scheduleReply(msg.ID, target, fmt.Sprintf("received file %s", filepath.Base(filePath)))
	return msg, nil
}

// scheduleReply emits a delivery ack for the sent message followed by a
// simulated inbound reply.
func (s *Sim) scheduleReply(sentID, target, body string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop := s.stop
	s.mu.Unlock()

	go func() {
		select {
		case <-stop:
			return
		case <-time.After(s.advance / 4):
		}
		s.emit(session.DriverEvent{
			Type: session.DriverMessageAck,
			Ack:  &session.MessageAck{MessageID: sentID, AckLevel: 2},
		})
		s.emit(session.DriverEvent{
			Type: session.DriverMessage,
			Message: &store.Message{
				ID:             uuid.New().String(),
				ConversationID: target,
				Direction:      store.DirectionInbound,
				Body:           body,
				SenderName:     "Sim Contact",
				Timestamp:      time.Now(),
			},
		})
	}()
}

// Chats returns a canned conversation listing.
func (s *Sim) Chats(ctx context.Context) ([]session.RemoteChat, error) {
	return []session.RemoteChat{
		{
			ID:          "5215550000001@c.us",
			Name:        "Sim Contact",
			Timestamp:   time.Now().Unix(),
			LastMessage: "hello from the simulator",
		},
	}, nil
}

// Contacts returns a canned contact listing.
func (s *Sim) Contacts(ctx context.Context) ([]session.Contact, error) {
	return []session.Contact{
		{
			ID:          "5215550000001",
			Name:        "Sim Contact",
			Number:      "5215550000001",
			IsMyContact: true,
		},
	}, nil
}

// Info identifies the simulated account.
func (s *Sim) Info(ctx context.Context) (*session.ClientInfo, error) {
	return &session.ClientInfo{
		WID:      "sim@c.us",
		PushName: s.sessionName,
		Platform: "sim",
	}, nil
}
