package kmsg

import "github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"

// ApiVersionsRequest is v0: an empty body asking the broker to enumerate
// the api key/version windows it supports.
type ApiVersionsRequest struct {
	version int16
}

func (r *ApiVersionsRequest) Key() int16         { return KeyApiVersions }
func (r *ApiVersionsRequest) Version() int16     { return r.version }
func (r *ApiVersionsRequest) SetVersion(v int16) { r.version = v }
func (r *ApiVersionsRequest) ResponseKind() Response {
	return &ApiVersionsResponse{version: r.version}
}
func (r *ApiVersionsRequest) AppendTo(w *kbin.Writer) {}

// ApiVersionWindow is the (min,max) version range a broker advertises for
// one api key.
type ApiVersionWindow struct {
	ApiKey     int16
	MinVersion int16
	MaxVersion int16
}

type ApiVersionsResponse struct {
	version   int16
	ErrorCode int16
	ApiKeys   []ApiVersionWindow
}

func (r *ApiVersionsResponse) Key() int16     { return KeyApiVersions }
func (r *ApiVersionsResponse) Version() int16 { return r.version }

// AppendTo re-encodes a decoded ApiVersionsResponse, used by the wire
// codec's round-trip property test.
func (r *ApiVersionsResponse) AppendTo(w *kbin.Writer) {
	w.Int16(r.ErrorCode)
	w.ArrayLen(len(r.ApiKeys))
	for _, k := range r.ApiKeys {
		w.Int16(k.ApiKey)
		w.Int16(k.MinVersion)
		w.Int16(k.MaxVersion)
	}
}

func (r *ApiVersionsResponse) ReadFrom(raw []byte) error {
	br := kbin.NewReader(raw)
	r.ErrorCode = br.Int16()
	n := br.ArrayLen()
	r.ApiKeys = make([]ApiVersionWindow, 0, max0(n))
	for i := int32(0); i < n; i++ {
		r.ApiKeys = append(r.ApiKeys, ApiVersionWindow{
			ApiKey:     br.Int16(),
			MinVersion: br.Int16(),
			MaxVersion: br.Int16(),
		})
	}
	return br.Complete()
}
