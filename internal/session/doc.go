// Package session manages the lifecycle of the single messaging session.
//
// # State Machine
//
// The session moves through a fixed set of states:
//
//	disconnected → initializing → qr_code → authenticated → ready
//
// plus two failure states, auth_failure and error. Transitions are driven by
// events from the Driver; the Manager validates each edge and silently ignores
// driver reports that do not match the current state (a stale "ready" after a
// teardown, for example).
//
// # Manager
//
// The Manager serializes lifecycle operations and consumes driver events from
// a single goroutine:
//
//	mgr := session.NewManager(drv, sink, logger)
//	go mgr.Run(ctx)
//	mgr.Initialize(ctx)
//
// Key operations:
//
//   - Initialize(ctx): Start the driver; no-op unless disconnected or failed
//   - Teardown(ctx): Stop the driver and force the disconnected state
//   - Restart(ctx): Teardown followed by Initialize as one atomic operation
//   - Snapshot(): Current state, derived flags, and any pending challenge
//
// Every observable state change is delivered to the Sink exactly once, in
// order. Sink implementations must not block and must not call back into the
// Manager's lifecycle operations.
//
// # Driver
//
// Driver abstracts the underlying messaging transport. It reports lifecycle
// events, inbound messages, and delivery acks on its Events channel, and
// accepts outbound sends once the session is ready.
package session
