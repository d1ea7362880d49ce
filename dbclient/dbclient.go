// Package dbclient defines the opaque database-worker capability the
// planner threads through to the inference engine. The core never speaks
// to a database itself — it only holds and forwards this handle.
package dbclient

// Client is an opaque handle to the (out-of-scope) database worker
// subprocess. The planner never calls its methods; it exists purely so the
// planner's API can accept and forward a caller-supplied handle without
// depending on the worker's NDJSON-over-stdio protocol.
type Client interface {
	// Ping reports whether the underlying worker connection is healthy.
	// The planner itself never calls Ping; it is here for the inference
	// engine's convenience when it receives the forwarded Client.
	Ping() error
}
