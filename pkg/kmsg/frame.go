package kmsg

import (
	"encoding/binary"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"
)

// RequestHeader is the fixed preamble written ahead of every request body.
type RequestHeader struct {
	ApiKey        int16
	ApiVersion    int16
	CorrelationID int32
	ClientID      *string
}

func (h RequestHeader) AppendTo(w *kbin.Writer) {
	w.Int16(h.ApiKey)
	w.Int16(h.ApiVersion)
	w.Int32(h.CorrelationID)
	w.NullableString(h.ClientID)
}

// AppendRequest frames req as length:i32 || header || body and appends the
// result to buf, returning the grown slice. correlationID is assigned by
// the caller (one per in-flight request on the connection).
func AppendRequest(buf []byte, req Request, correlationID int32, clientID *string) []byte {
	var w kbin.Writer
	w.AppendTo(buf)

	// Reserve the length prefix; it is backfilled once the body is known.
	lenAt := len(w.Bytes())
	w.Int32(0)

	bodyAt := len(w.Bytes())
	header := RequestHeader{
		ApiKey:        req.Key(),
		ApiVersion:    req.Version(),
		CorrelationID: correlationID,
		ClientID:      clientID,
	}
	header.AppendTo(&w)
	req.AppendTo(&w)

	out := w.Bytes()
	binary.BigEndian.PutUint32(out[lenAt:], uint32(len(out)-bodyAt))
	return out
}

// DecodeFrame looks for one complete length-prefixed frame at the start of
// buf. It never consumes buf; on Done it returns the frame's body (the
// bytes after the length prefix, spanning exactly the declared length) and
// the number of bytes of buf the frame occupied including its length
// prefix. On Incomplete, consumed and frame are both zero/nil and the
// caller should buffer more bytes before calling again.
func DecodeFrame(buf []byte) (frame []byte, consumed int, status DecodeStatus) {
	if len(buf) < 4 {
		return nil, 0, Incomplete
	}
	length := int32(binary.BigEndian.Uint32(buf))
	if length < 0 {
		return nil, 0, Error
	}
	total := int(length) + 4
	if len(buf) < total {
		return nil, 0, Incomplete
	}
	return buf[4:total], total, Done
}

// ReadResponseHeader reads the correlation id prefixing every response body
// and returns the remaining bytes (the response's own fields).
func ReadResponseHeader(body []byte) (correlationID int32, rest []byte, err error) {
	r := kbin.NewReader(body)
	correlationID = r.Int32()
	if r.Err() != nil {
		return 0, nil, r.Err()
	}
	return correlationID, r.Src, nil
}
