// Package natsclient manages the NATS connection shared by objectstream
// components.
//
// The Client wraps a single nats.Conn plus its JetStream context, adding:
//
//   - Circuit breaker: repeated connection failures open the circuit and
//     back off exponentially, so callers fail fast instead of piling up
//     connection attempts.
//   - Health monitoring: a background goroutine verifies liveness via RTT
//     and reports health transitions through an optional callback.
//   - Stream provisioning: EnsureStream creates-or-gets a JetStream stream,
//     resolving provisioning races between concurrent processes.
//   - Metrics: optional Prometheus gauges for connection state and tracked
//     stream statistics, polled in the background.
//
// All objectstore buckets in a process share one Client, and therefore one
// connection: an operation that stops reading its consumer backlog can
// stall control traffic for every other operation, which is why the
// objectstore read path drains its consumers to completion.
package natsclient
