// Package kmsg implements the wire codec for the subset of the Kafka
// protocol this client speaks: Produce, Metadata, ApiVersions, and
// ListOffsets. Encoding and decoding are both version-aware; the caller
// picks the api_version and kmsg encodes/decodes only the fields that
// version defines.
package kmsg

import "github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"

// Api keys this client can speak, matching the Kafka protocol's numbering.
const (
	KeyProduce     int16 = 0
	KeyListOffsets int16 = 2
	KeyMetadata    int16 = 3
	KeyApiVersions int16 = 18
)

// MaxKey is the highest api key this package has any notion of.
const MaxKey = KeyApiVersions

// Highest version of each request this library implements, independent of
// what any given broker advertises — the "library_supported.max" side of
// the core spec's effective-version calculation
// (min(window.max, library_supported.max)).
const (
	ProduceMaxVersion     int16 = 2
	MetadataMaxVersion    int16 = 0
	ApiVersionsMaxVersion int16 = 0
	ListOffsetsMaxVersion int16 = 1
)

// Request is anything this client can send. AppendTo encodes only the
// request body (the frame and header are written by the connection).
type Request interface {
	Key() int16
	Version() int16
	SetVersion(v int16)
	AppendTo(w *kbin.Writer)
	ResponseKind() Response
}

// Response is anything this client can receive. ReadFrom takes the raw
// response body (post-header) rather than a *kbin.Reader directly, so the
// connection can hand over exactly the bytes left after the correlation id
// without wrapping them first.
type Response interface {
	Key() int16
	Version() int16
	ReadFrom(raw []byte) error
}

// DecodeStatus reports whether a DecodeFrame call produced a frame, needs more
// bytes, or hit a malformed frame.
type DecodeStatus int8

const (
	Done DecodeStatus = iota
	Incomplete
	Error
)
