// ABOUTME: WebSocket transport for the realtime hub using coder/websocket
// ABOUTME: Authenticates the handshake before upgrade; invalid credentials never see an event

package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/2389/warelay/internal/auth"
)

// clientEnvelope is the inbound wire frame. Data stays raw until the
// command handler knows its shape.
type clientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// WebsocketHandler upgrades authenticated requests to hub connections.
// The bearer credential comes from the Authorization header or, for
// browser clients that cannot set headers on websocket dials, the token
// query parameter.
type WebsocketHandler struct {
	hub      *Hub
	verifier auth.Verifier
}

// NewWebsocketHandler creates the /ws endpoint handler.
func NewWebsocketHandler(h *Hub, verifier auth.Verifier) *WebsocketHandler {
	return &WebsocketHandler{hub: h, verifier: verifier}
}

func (wh *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Reject bad credentials before the upgrade so an unauthenticated
	// client never receives a single event.
	token := handshakeToken(r)
	if token == "" {
		http.Error(w, "authentication token required", http.StatusUnauthorized)
		return
	}
	principal, err := wh.verifier.Verify(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		wh.hub.logger.Debug("websocket accept failed", "error", err)
		return
	}

	conn := wh.hub.Register(*principal)
	defer wh.hub.Unregister(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer: drain the connection's event stream onto the socket.
	go func() {
		defer cancel()
		for ev := range conn.Events() {
			if err := wsjson.Write(ctx, ws, ev); err != nil {
				return
			}
		}
		ws.Close(websocket.StatusNormalClosure, "")
	}()

	// Reader: dispatch client commands until the peer goes away.
	for {
		var env clientEnvelope
		if err := wsjson.Read(ctx, ws, &env); err != nil {
			var closeErr websocket.CloseError
			if !errors.As(err, &closeErr) && ctx.Err() == nil {
				wh.hub.logger.Debug("websocket read failed",
					"connection_id", conn.ID,
					"error", err)
			}
			ws.Close(websocket.StatusNormalClosure, "")
			return
		}
		wh.hub.HandleCommand(conn, env.Event, env.Data)
	}
}

// handshakeToken extracts the credential from the request.
func handshakeToken(r *http.Request) string {
	if token, errMsg := auth.ExtractBearerToken(r.Header.Get("Authorization")); errMsg == "" {
		return token
	}
	return r.URL.Query().Get("token")
}
