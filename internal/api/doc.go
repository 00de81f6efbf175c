// Package api exposes the gateway over HTTP.
//
// All responses share a JSON envelope with success, data, and error fields.
// Routes under /api/ (except auth) require a bearer token; /ws authenticates
// itself during the websocket handshake.
package api
