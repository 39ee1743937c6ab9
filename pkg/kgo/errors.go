package kgo

import "errors"

// Connection- and pool-level sentinel errors. Broker protocol error codes,
// the retryable *kerr.TransportError / *kerr.TimeoutError wrapper types and
// the non-retryable *kerr.ProtocolError live in pkg/kerr; these are local,
// non-retryable bookkeeping errors specific to this client.
var (
	// ErrBrokerDead is returned to any request enqueued on a broker after
	// it has been permanently stopped.
	ErrBrokerDead = errors.New("kgo: broker is permanently stopped")

	// ErrUnknownRequestKey means the configured api key has no encoder in
	// this client build.
	ErrUnknownRequestKey = errors.New("kgo: unknown request key")

	// ErrNoBootstrapHosts means no bootstrap hosts were configured. The
	// sender also fails a batch with it when no metadata snapshot has
	// loaded yet to route the batch by.
	ErrNoBootstrapHosts = errors.New("kgo: at least one bootstrap host is required")

	// ErrClientClosed means Close was called on the client.
	ErrClientClosed = errors.New("kgo: client is closed")
)
