package kmsg

import "github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"

// MetadataRequest is v0: an empty Topics slice asks for every topic the
// broker knows about, per the core spec's initial-load sequence.
type MetadataRequest struct {
	version int16
	Topics  []string
}

func (r *MetadataRequest) Key() int16         { return KeyMetadata }
func (r *MetadataRequest) Version() int16     { return r.version }
func (r *MetadataRequest) SetVersion(v int16) { r.version = v }
func (r *MetadataRequest) ResponseKind() Response {
	return &MetadataResponse{version: r.version}
}

func (r *MetadataRequest) AppendTo(w *kbin.Writer) {
	w.ArrayLen(len(r.Topics))
	for _, t := range r.Topics {
		w.String(t)
	}
}

// ReadFrom decodes a MetadataRequest body, the mirror of AppendTo; see the
// note on ProduceRequest.ReadFrom for why requests support decoding too.
func (r *MetadataRequest) ReadFrom(raw []byte) error {
	br := kbin.NewReader(raw)
	n := br.ArrayLen()
	r.Topics = make([]string, 0, max0(n))
	for i := int32(0); i < n; i++ {
		r.Topics = append(r.Topics, br.String())
	}
	return br.Complete()
}

type MetadataResponseBroker struct {
	NodeID int32
	Host   string
	Port   int32
}

type MetadataResponsePartition struct {
	ErrorCode      int16
	PartitionID    int32
	Leader         int32
	Replicas       []int32
	ISR            []int32
}

type MetadataResponseTopic struct {
	ErrorCode  int16
	Topic      string
	Partitions []MetadataResponsePartition
}

type MetadataResponse struct {
	version int16
	Brokers []MetadataResponseBroker
	Topics  []MetadataResponseTopic
}

func (r *MetadataResponse) Key() int16     { return KeyMetadata }
func (r *MetadataResponse) Version() int16 { return r.version }

func (r *MetadataResponse) ReadFrom(raw []byte) error {
	br := kbin.NewReader(raw)

	bn := br.ArrayLen()
	r.Brokers = make([]MetadataResponseBroker, 0, max0(bn))
	for i := int32(0); i < bn; i++ {
		r.Brokers = append(r.Brokers, MetadataResponseBroker{
			NodeID: br.Int32(),
			Host:   br.String(),
			Port:   br.Int32(),
		})
	}

	tn := br.ArrayLen()
	r.Topics = make([]MetadataResponseTopic, 0, max0(tn))
	for i := int32(0); i < tn; i++ {
		t := MetadataResponseTopic{
			ErrorCode: br.Int16(),
			Topic:     br.String(),
		}
		pn := br.ArrayLen()
		t.Partitions = make([]MetadataResponsePartition, 0, max0(pn))
		for j := int32(0); j < pn; j++ {
			p := MetadataResponsePartition{
				ErrorCode:   br.Int16(),
				PartitionID: br.Int32(),
				Leader:      br.Int32(),
			}
			rn := br.ArrayLen()
			p.Replicas = make([]int32, rn)
			for k := range p.Replicas {
				p.Replicas[k] = br.Int32()
			}
			isrn := br.ArrayLen()
			p.ISR = make([]int32, isrn)
			for k := range p.ISR {
				p.ISR[k] = br.Int32()
			}
			t.Partitions = append(t.Partitions, p)
		}
		r.Topics = append(r.Topics, t)
	}
	return br.Complete()
}

// AppendTo re-encodes a decoded MetadataResponse back to wire bytes, used
// by the round-trip property test (decode(encode(x)) == x).
func (r *MetadataResponse) AppendTo(w *kbin.Writer) {
	w.ArrayLen(len(r.Brokers))
	for _, b := range r.Brokers {
		w.Int32(b.NodeID)
		w.String(b.Host)
		w.Int32(b.Port)
	}
	w.ArrayLen(len(r.Topics))
	for _, t := range r.Topics {
		w.Int16(t.ErrorCode)
		w.String(t.Topic)
		w.ArrayLen(len(t.Partitions))
		for _, p := range t.Partitions {
			w.Int16(p.ErrorCode)
			w.Int32(p.PartitionID)
			w.Int32(p.Leader)
			w.ArrayLen(len(p.Replicas))
			for _, r := range p.Replicas {
				w.Int32(r)
			}
			w.ArrayLen(len(p.ISR))
			for _, r := range p.ISR {
				w.Int32(r)
			}
		}
	}
}
