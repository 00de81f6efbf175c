// ABOUTME: Represents one authenticated realtime connection and its outbound queue
// ABOUTME: Sends are non-blocking; events are dropped when a subscriber falls behind

package hub

import (
	"sync"
	"time"

	"github.com/2389/warelay/internal/auth"
)

// sendBufferSize is the outbound channel buffer for each connection.
const sendBufferSize = 64

// Conn is a live, authenticated realtime connection. It exists from the
// moment the handshake credential verifies until the transport closes.
type Conn struct {
	ID          string
	Principal   auth.Principal
	ConnectedAt time.Time

	mu     sync.RWMutex
	out    chan Envelope
	closed bool
}

func newConn(id string, principal auth.Principal) *Conn {
	return &Conn{
		ID:          id,
		Principal:   principal,
		ConnectedAt: time.Now(),
		out:         make(chan Envelope, sendBufferSize),
	}
}

// Events returns the connection's outbound event stream. The channel is
// closed when the connection is unregistered.
func (c *Conn) Events() <-chan Envelope {
	return c.out
}

// send enqueues an envelope without blocking. Returns false if the
// connection is closed or its buffer is full and the event was dropped.
// The read lock is held while sending to prevent a concurrent close.
func (c *Conn) send(ev Envelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- ev:
		return true
	default:
		return false
	}
}

// close closes the outbound channel exactly once.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}
