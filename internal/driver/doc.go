// Package driver contains session driver implementations.
//
// Sim is an in-process driver that walks the full connection sequence
// (challenge, authenticated, ready) on a timer and echoes sends back as
// inbound replies. It exists for local development and tests; real transports
// implement session.Driver the same way.
package driver
