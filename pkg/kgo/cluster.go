package kgo

import (
	"strconv"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
)

// Broker is one member of a cluster snapshot.
type Broker struct {
	NodeID int32
	Host   string
	Port   int32

	// Versions is this broker's advertised (or fallback) per-api-key
	// capability window, installed by WithAPIVersions/WithFallbackAPIVersions.
	// Nil until one of those has run.
	Versions map[int16]kmsg.ApiVersionWindow
}

func (b Broker) Addr() string {
	return b.Host + ":" + strconv.Itoa(int(b.Port))
}

// PartitionInfo describes one partition's leadership and replica set, as
// reported in the last Metadata response.
type PartitionInfo struct {
	Topic     string
	Partition int32
	Leader    int32 // node id; -1 if no leader is currently known
	Replicas  []int32
	ISR       []int32
	ErrorCode int16
}

// TopicPartition identifies a partition independent of its current leader.
type TopicPartition struct {
	Topic     string
	Partition int32
}

// Metadata is an immutable cluster snapshot (C4). A new Metadata is built
// whole from a MetadataResponse and swapped in atomically by the metadata
// manager; nothing ever mutates a Metadata in place, so readers holding a
// *Metadata never observe a partial update.
type Metadata struct {
	brokers    map[int32]Broker
	partitions map[TopicPartition]PartitionInfo
	topics     map[string][]int32 // topic -> partition ids, in response order
}

// NewMetadataFromResponse builds a Metadata snapshot from a decoded
// MetadataResponse.
func NewMetadataFromResponse(resp *kmsg.MetadataResponse) *Metadata {
	m := &Metadata{
		brokers:    make(map[int32]Broker, len(resp.Brokers)),
		partitions: make(map[TopicPartition]PartitionInfo),
		topics:     make(map[string][]int32),
	}
	for _, b := range resp.Brokers {
		m.brokers[b.NodeID] = Broker{NodeID: b.NodeID, Host: b.Host, Port: b.Port}
	}
	for _, t := range resp.Topics {
		ids := make([]int32, 0, len(t.Partitions))
		for _, p := range t.Partitions {
			tp := TopicPartition{Topic: t.Topic, Partition: p.PartitionID}
			m.partitions[tp] = PartitionInfo{
				Topic:     t.Topic,
				Partition: p.PartitionID,
				Leader:    p.Leader,
				Replicas:  p.Replicas,
				ISR:       p.ISR,
				ErrorCode: p.ErrorCode,
			}
			ids = append(ids, p.PartitionID)
		}
		m.topics[t.Topic] = ids
	}
	return m
}

// Broker looks up a broker by node id.
func (m *Metadata) Broker(nodeID int32) (Broker, bool) {
	b, ok := m.brokers[nodeID]
	return b, ok
}

// Leader returns the broker currently leading a partition.
func (m *Metadata) Leader(tp TopicPartition) (Broker, bool) {
	pi, ok := m.partitions[tp]
	if !ok || pi.Leader < 0 {
		return Broker{}, false
	}
	return m.Broker(pi.Leader)
}

// Partitions lists the known partition ids for a topic, in the order the
// broker reported them. The second return is false if the topic is
// entirely unknown to this snapshot.
func (m *Metadata) Partitions(topic string) ([]int32, bool) {
	ids, ok := m.topics[topic]
	return ids, ok
}

// PartitionInfo returns the last-known state of one partition.
func (m *Metadata) PartitionInfo(tp TopicPartition) (PartitionInfo, bool) {
	pi, ok := m.partitions[tp]
	return pi, ok
}

// WithAPIVersions returns a new snapshot with each named broker's capability
// window installed. Brokers not present in versions, and every partition and
// topic mapping, are shared unchanged with the receiver — this is the
// post-metadata-fetch ApiVersions probe step of the metadata manager.
func (m *Metadata) WithAPIVersions(versions map[int32]map[int16]kmsg.ApiVersionWindow) *Metadata {
	brokers := make(map[int32]Broker, len(m.brokers))
	for id, b := range m.brokers {
		if w, ok := versions[id]; ok {
			b.Versions = w
		}
		brokers[id] = b
	}
	return &Metadata{brokers: brokers, partitions: m.partitions, topics: m.topics}
}

// WithFallbackAPIVersions returns a new snapshot with every broker that has
// no capability window yet assigned the same fixed window. The metadata
// manager applies it on every fetch before any probe results, so it stays
// in force for every broker when api_version_request is disabled and for
// each broker whose probe failed.
func (m *Metadata) WithFallbackAPIVersions(window map[int16]kmsg.ApiVersionWindow) *Metadata {
	brokers := make(map[int32]Broker, len(m.brokers))
	for id, b := range m.brokers {
		if b.Versions == nil {
			b.Versions = window
		}
		brokers[id] = b
	}
	return &Metadata{brokers: brokers, partitions: m.partitions, topics: m.topics}
}

// EffectiveVersion resolves the version a request for apiKey should be sent
// at against nodeID's advertised window: min(window.max, librarySupportedMax).
// An unknown broker, or one with no capability window at all, yields 0.
func (m *Metadata) EffectiveVersion(nodeID int32, apiKey int16, librarySupportedMax int16) int16 {
	b, ok := m.brokers[nodeID]
	if !ok || b.Versions == nil {
		return 0
	}
	w, ok := b.Versions[apiKey]
	if !ok {
		return 0
	}
	if w.MaxVersion < librarySupportedMax {
		return w.MaxVersion
	}
	return librarySupportedMax
}
