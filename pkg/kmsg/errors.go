package kmsg

import "errors"

// ErrCRCMismatch means a decoded message's CRC did not match its recorded
// value — a protocol error per the core spec's decode contract.
var ErrCRCMismatch = errors.New("kmsg: message CRC mismatch")

// ErrTruncatedMessage means a message's declared size ran past the end of
// the available bytes.
var ErrTruncatedMessage = errors.New("kmsg: truncated message")

// ErrWrongResponseType means a decoded response's api_key did not match
// the request that was sent — a hard protocol bug, never retried.
var ErrWrongResponseType = errors.New("kmsg: response api_key does not match request")
