// Package gateway wires the session, message store, and event hub together.
//
// The Gateway is the single entry point the HTTP API talks to. It receives
// driver events from the session manager, records inbound messages (after
// deduplication), and republishes everything to the hub for realtime
// subscribers. Outbound sends are validated, gated on session readiness, and
// recorded in history on success.
//
// Phone-number targets without a server suffix are normalized: non-digits are
// stripped, a default country code is prefixed for bare 10-digit numbers when
// configured, and the chat suffix is appended.
package gateway
