package kmsg

import "github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"

// ProduceRequestPartition is one partition's pre-built MessageSet within a
// ProduceRequest.
type ProduceRequestPartition struct {
	Partition int32
	RecordSet []byte // an encoded MessageSet, e.g. from MessageSetBuilder.Finish
}

// ProduceRequestTopic groups partitions under one topic.
type ProduceRequestTopic struct {
	Topic      string
	Partitions []ProduceRequestPartition
}

// ProduceRequest is v0-v2 per the core spec: v1 introduces per-message
// timestamps (carried in the MessageSet itself, not this struct), v2
// introduces throttle_time_ms in the response.
type ProduceRequest struct {
	version      int16
	Acks         int16 // 0 = none, 1 = leader, -1 = all in-sync replicas
	TimeoutMillis int32
	Topics       []ProduceRequestTopic
}

func (r *ProduceRequest) Key() int16          { return KeyProduce }
func (r *ProduceRequest) Version() int16      { return r.version }
func (r *ProduceRequest) SetVersion(v int16)  { r.version = v }
func (r *ProduceRequest) ResponseKind() Response {
	return &ProduceResponse{version: r.version}
}

func (r *ProduceRequest) AppendTo(w *kbin.Writer) {
	w.Int16(r.Acks)
	w.Int32(r.TimeoutMillis)
	w.ArrayLen(len(r.Topics))
	for _, t := range r.Topics {
		w.String(t.Topic)
		w.ArrayLen(len(t.Partitions))
		for _, p := range t.Partitions {
			w.Int32(p.Partition)
			w.Bytes(p.RecordSet)
		}
	}
}

// ProduceResponsePartition is one partition's result within a
// ProduceResponse.
type ProduceResponsePartition struct {
	Partition  int32
	ErrorCode  int16
	BaseOffset int64
}

// ProduceResponseTopic groups partition results under one topic.
type ProduceResponseTopic struct {
	Topic      string
	Partitions []ProduceResponsePartition
}

type ProduceResponse struct {
	version         int16
	Topics          []ProduceResponseTopic
	ThrottleTimeMs  int32 // v2+
}

func (r *ProduceResponse) Key() int16     { return KeyProduce }
func (r *ProduceResponse) Version() int16 { return r.version }

// Throttle returns the throttle time the broker reported (v2+; zero for
// earlier versions) and true. The connection layer does not call it.
func (r *ProduceResponse) Throttle() (millis int32, throttlesAfterResp bool) {
	return r.ThrottleTimeMs, true
}

// AppendTo re-encodes a decoded ProduceResponse, used by the wire codec's
// round-trip property test.
func (r *ProduceResponse) AppendTo(w *kbin.Writer) {
	w.ArrayLen(len(r.Topics))
	for _, t := range r.Topics {
		w.String(t.Topic)
		w.ArrayLen(len(t.Partitions))
		for _, p := range t.Partitions {
			w.Int32(p.Partition)
			w.Int16(p.ErrorCode)
			w.Int64(p.BaseOffset)
		}
	}
	if r.version >= 2 {
		w.Int32(r.ThrottleTimeMs)
	}
}

func (r *ProduceResponse) ReadFrom(raw []byte) error {
	r2 := kbin.NewReader(raw)
	n := r2.ArrayLen()
	r.Topics = make([]ProduceResponseTopic, 0, max0(n))
	for i := int32(0); i < n; i++ {
		t := ProduceResponseTopic{Topic: r2.String()}
		pn := r2.ArrayLen()
		t.Partitions = make([]ProduceResponsePartition, 0, max0(pn))
		for j := int32(0); j < pn; j++ {
			p := ProduceResponsePartition{
				Partition:  r2.Int32(),
				ErrorCode:  r2.Int16(),
				BaseOffset: r2.Int64(),
			}
			t.Partitions = append(t.Partitions, p)
		}
		r.Topics = append(r.Topics, t)
	}
	if r.version >= 2 {
		r.ThrottleTimeMs = r2.Int32()
	}
	return r2.Complete()
}

func max0(n int32) int32 {
	if n < 0 {
		return 0
	}
	return n
}

// ReadFrom decodes a ProduceRequest body, the mirror of AppendTo. Production
// code never needs to decode its own outgoing requests; this exists so the
// wire codec's round-trip property (decode(encode(x)) == x) can be tested
// against requests as well as responses.
func (r *ProduceRequest) ReadFrom(raw []byte) error {
	br := kbin.NewReader(raw)
	r.Acks = br.Int16()
	r.TimeoutMillis = br.Int32()
	tn := br.ArrayLen()
	r.Topics = make([]ProduceRequestTopic, 0, max0(tn))
	for i := int32(0); i < tn; i++ {
		t := ProduceRequestTopic{Topic: br.String()}
		pn := br.ArrayLen()
		t.Partitions = make([]ProduceRequestPartition, 0, max0(pn))
		for j := int32(0); j < pn; j++ {
			t.Partitions = append(t.Partitions, ProduceRequestPartition{
				Partition: br.Int32(),
				RecordSet: br.NullableBytes(),
			})
		}
		r.Topics = append(r.Topics, t)
	}
	return br.Complete()
}
