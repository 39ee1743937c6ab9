// Package kerr catalogs the Kafka broker error codes this client
// understands and classifies each as retryable or not, per the taxonomy in
// the core spec's error handling design.
package kerr

import "fmt"

// Code is a Kafka broker error code as carried in response bodies.
type Code int16

// Broker error codes relevant to Produce, Metadata, ApiVersions, and
// ListOffsets responses. Numbering follows the published Kafka protocol
// error code table.
const (
	None                       Code = 0
	Unknown                    Code = -1
	OffsetOutOfRange           Code = 1
	CorruptMessage             Code = 2
	UnknownTopicOrPartition    Code = 3
	InvalidMessageSize         Code = 4
	LeaderNotAvailable         Code = 5
	NotLeaderForPartition      Code = 6
	RequestTimedOut            Code = 7
	BrokerNotAvailable         Code = 8
	ReplicaNotAvailable        Code = 9
	MessageTooLarge            Code = 10
	NetworkException           Code = 13
	InvalidTopicException      Code = 17
	RecordListTooLarge         Code = 18
	NotEnoughReplicas          Code = 19
	NotEnoughReplicasAfterAppend Code = 20
	InvalidRequiredAcks        Code = 21
	UnsupportedVersion         Code = 35
)

var names = map[Code]string{
	None:                         "no error",
	Unknown:                      "unexpected server error",
	OffsetOutOfRange:             "requested offset is outside the retained range",
	CorruptMessage:               "message contents did not match its CRC",
	UnknownTopicOrPartition:      "topic or partition does not exist on this broker",
	InvalidMessageSize:           "message has a negative or oversized length",
	LeaderNotAvailable:           "no leader for this partition, election in progress",
	NotLeaderForPartition:        "broker is not the leader for this partition",
	RequestTimedOut:              "request exceeded the configured time limit",
	BrokerNotAvailable:           "broker not available",
	ReplicaNotAvailable:          "one or more replicas are down",
	MessageTooLarge:              "message was too large for the broker to accept",
	NetworkException:             "server disconnected before a response was received",
	InvalidTopicException:        "operation attempted on an invalid topic",
	RecordListTooLarge:           "message batch exceeded the configured segment size",
	NotEnoughReplicas:            "fewer in-sync replicas than required",
	NotEnoughReplicasAfterAppend: "written, but to fewer in-sync replicas than required",
	InvalidRequiredAcks:          "required acks must be -1, 0, or 1",
	UnsupportedVersion:           "broker does not support this request version",
}

// Error implements error for Code. A Code of None satisfies error == nil via
// ErrorForCode below; Code(0).Error() is only reachable if misused directly.
func (c Code) Error() string {
	if name, ok := names[c]; ok {
		return fmt.Sprintf("kafka: %s (code %d)", name, int16(c))
	}
	return fmt.Sprintf("kafka: unrecognized error code %d", int16(c))
}

// ErrorForCode maps a broker error code to an error, returning nil for None.
func ErrorForCode(c int16) error {
	if Code(c) == None {
		return nil
	}
	return Code(c)
}

// retryable is the set of broker error codes the sender and metadata
// manager retry rather than surface immediately, per the core spec's
// retry classification.
var retryable = map[Code]bool{
	LeaderNotAvailable:    true,
	NotLeaderForPartition: true,
	NetworkException:      true,
	RequestTimedOut:       true,
	BrokerNotAvailable:    true,
	ReplicaNotAvailable:   true,
	Unknown:               false,
}

// IsRetriable reports whether err should be retried. Non-Code errors
// (transport/timeout/cancellation) are retried by the caller's own
// classification; this only judges kerr.Code values and a handful of
// sentinel transport errors this package also owns.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case Code:
		return retryable[e]
	case *TransportError:
		return true
	case *TimeoutError:
		return true
	}
	return false
}

// TransportError wraps an I/O failure, a closed connection, or a codec
// decode failure — always retryable per the core spec's error taxonomy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("kafka: transport error during %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError marks a request deadline elapsing — always retryable.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("kafka: %s timed out", e.Op) }

// ProtocolError marks a decode-time contract violation (wrong api_key in a
// response, CRC mismatch, truncated frame the parser rejects) — fatal for
// that request, never retried.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("kafka: protocol error: %s", e.Reason) }

// CancellationError marks a local future/promise drop, kept distinct from
// broker and transport errors so a waiter can tell the difference.
type CancellationError struct{}

func (e *CancellationError) Error() string { return "kafka: request canceled locally" }

// ConfigError marks an invalid option discovered synchronously at
// construction time.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("kafka: invalid config option %q: %s", e.Option, e.Reason)
}
