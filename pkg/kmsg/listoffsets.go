package kmsg

import "github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"

// ListOffsetsRequestPartition asks for the offset nearest Timestamp (or the
// special -1/-2 sentinels for "latest"/"earliest"). MaxNumOffsets is only
// meaningful at v0.
type ListOffsetsRequestPartition struct {
	Partition     int32
	Timestamp     int64
	MaxNumOffsets int32
}

type ListOffsetsRequestTopic struct {
	Topic      string
	Partitions []ListOffsetsRequestPartition
}

// ListOffsetsRequest is v0-v1 per the core spec.
type ListOffsetsRequest struct {
	version   int16
	ReplicaID int32
	Topics    []ListOffsetsRequestTopic
}

func (r *ListOffsetsRequest) Key() int16         { return KeyListOffsets }
func (r *ListOffsetsRequest) Version() int16     { return r.version }
func (r *ListOffsetsRequest) SetVersion(v int16) { r.version = v }
func (r *ListOffsetsRequest) ResponseKind() Response {
	return &ListOffsetsResponse{version: r.version}
}

func (r *ListOffsetsRequest) AppendTo(w *kbin.Writer) {
	w.Int32(r.ReplicaID)
	w.ArrayLen(len(r.Topics))
	for _, t := range r.Topics {
		w.String(t.Topic)
		w.ArrayLen(len(t.Partitions))
		for _, p := range t.Partitions {
			w.Int32(p.Partition)
			w.Int64(p.Timestamp)
			if r.version == 0 {
				w.Int32(p.MaxNumOffsets)
			}
		}
	}
}

// ListOffsetsResponsePartition carries either a list of offsets (v0) or a
// single timestamp/offset pair (v1+); only the fields for the decoded
// version are populated.
type ListOffsetsResponsePartition struct {
	Partition int32
	ErrorCode int16
	Offsets   []int64 // v0
	Timestamp int64   // v1+
	Offset    int64   // v1+
}

type ListOffsetsResponseTopic struct {
	Topic      string
	Partitions []ListOffsetsResponsePartition
}

type ListOffsetsResponse struct {
	version int16
	Topics  []ListOffsetsResponseTopic
}

func (r *ListOffsetsResponse) Key() int16     { return KeyListOffsets }
func (r *ListOffsetsResponse) Version() int16 { return r.version }

func (r *ListOffsetsResponse) ReadFrom(raw []byte) error {
	br := kbin.NewReader(raw)
	tn := br.ArrayLen()
	r.Topics = make([]ListOffsetsResponseTopic, 0, max0(tn))
	for i := int32(0); i < tn; i++ {
		t := ListOffsetsResponseTopic{Topic: br.String()}
		pn := br.ArrayLen()
		t.Partitions = make([]ListOffsetsResponsePartition, 0, max0(pn))
		for j := int32(0); j < pn; j++ {
			p := ListOffsetsResponsePartition{
				Partition: br.Int32(),
				ErrorCode: br.Int16(),
			}
			if r.version == 0 {
				on := br.ArrayLen()
				p.Offsets = make([]int64, on)
				for k := range p.Offsets {
					p.Offsets[k] = br.Int64()
				}
			} else {
				p.Timestamp = br.Int64()
				p.Offset = br.Int64()
			}
			t.Partitions = append(t.Partitions, p)
		}
		r.Topics = append(r.Topics, t)
	}
	return br.Complete()
}
