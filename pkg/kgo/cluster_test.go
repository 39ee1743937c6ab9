package kgo

import (
	"testing"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
	"github.com/stretchr/testify/require"
)

func TestMetadataSnapshotLeaderLookup(t *testing.T) {
	resp := &kmsg.MetadataResponse{}
	resp.Brokers = []kmsg.MetadataResponseBroker{
		{NodeID: 0, Host: "b0", Port: 9092},
		{NodeID: 1, Host: "b1", Port: 9093},
	}
	resp.Topics = []kmsg.MetadataResponseTopic{{
		Topic: "orders",
		Partitions: []kmsg.MetadataResponsePartition{
			{PartitionID: 0, Leader: 1, Replicas: []int32{0, 1}, ISR: []int32{0, 1}},
			{PartitionID: 1, Leader: 0, Replicas: []int32{0, 1}, ISR: []int32{0, 1}},
		},
	}}

	m := NewMetadataFromResponse(resp)

	leader, ok := m.Leader(TopicPartition{Topic: "orders", Partition: 0})
	require.True(t, ok)
	require.Equal(t, "b1:9093", leader.Addr())

	leader, ok = m.Leader(TopicPartition{Topic: "orders", Partition: 1})
	require.True(t, ok)
	require.Equal(t, "b0:9092", leader.Addr())

	_, ok = m.Leader(TopicPartition{Topic: "missing", Partition: 0})
	require.False(t, ok)

	parts, ok := m.Partitions("orders")
	require.True(t, ok)
	require.Equal(t, []int32{0, 1}, parts)
}

func TestMetadataEffectiveVersionResolvesAgainstBrokerWindow(t *testing.T) {
	resp := &kmsg.MetadataResponse{
		Brokers: []kmsg.MetadataResponseBroker{{NodeID: 0, Host: "b0", Port: 9092}},
	}
	base := NewMetadataFromResponse(resp)

	withVersions := base.WithAPIVersions(map[int32]map[int16]kmsg.ApiVersionWindow{
		0: {kmsg.KeyProduce: {ApiKey: kmsg.KeyProduce, MinVersion: 0, MaxVersion: 1}},
	})

	require.EqualValues(t, 1, withVersions.EffectiveVersion(0, kmsg.KeyProduce, kmsg.ProduceMaxVersion),
		"effective version is capped by the broker's advertised window even though the library supports a higher max")
	require.EqualValues(t, 0, withVersions.EffectiveVersion(0, kmsg.KeyMetadata, kmsg.MetadataMaxVersion),
		"an api key missing from the broker's window must resolve to 0")
	require.EqualValues(t, 0, base.EffectiveVersion(0, kmsg.KeyProduce, kmsg.ProduceMaxVersion),
		"a snapshot with no capability info installed yet must resolve every version to 0")

	b, ok := withVersions.Broker(0)
	require.True(t, ok)
	require.NotNil(t, b.Versions)

	baseBroker, ok := base.Broker(0)
	require.True(t, ok)
	require.Nil(t, baseBroker.Versions, "the original snapshot must be unaffected by a later WithAPIVersions call")
}

func TestMetadataWithFallbackAPIVersionsOnlyFillsGaps(t *testing.T) {
	resp := &kmsg.MetadataResponse{
		Brokers: []kmsg.MetadataResponseBroker{
			{NodeID: 0, Host: "b0", Port: 9092},
			{NodeID: 1, Host: "b1", Port: 9093},
		},
	}
	base := NewMetadataFromResponse(resp)
	probed := base.WithAPIVersions(map[int32]map[int16]kmsg.ApiVersionWindow{
		0: {kmsg.KeyProduce: {ApiKey: kmsg.KeyProduce, MinVersion: 0, MaxVersion: 2}},
	})

	withFallback := probed.WithFallbackAPIVersions(fallbackWindow(FallbackOldest))

	require.EqualValues(t, 2, withFallback.EffectiveVersion(0, kmsg.KeyProduce, kmsg.ProduceMaxVersion),
		"a broker that already has a probed window must keep it, not the fallback")
	require.EqualValues(t, 0, withFallback.EffectiveVersion(1, kmsg.KeyProduce, kmsg.ProduceMaxVersion),
		"a broker with no probed window must fall back, here to version 0")
}

func TestMetadataSnapshotIsImmutable(t *testing.T) {
	resp := &kmsg.MetadataResponse{
		Topics: []kmsg.MetadataResponseTopic{{Topic: "t", Partitions: []kmsg.MetadataResponsePartition{{PartitionID: 0, Leader: 0}}}},
	}
	m1 := NewMetadataFromResponse(resp)

	resp.Topics[0].Partitions[0].Leader = 7
	m2 := NewMetadataFromResponse(resp)

	pi1, _ := m1.PartitionInfo(TopicPartition{Topic: "t", Partition: 0})
	pi2, _ := m2.PartitionInfo(TopicPartition{Topic: "t", Partition: 0})
	require.Equal(t, int32(0), pi1.Leader, "a previously published snapshot must not change when a later response is parsed")
	require.Equal(t, int32(7), pi2.Leader)
}
