package kgo

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"
	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
	"github.com/stretchr/testify/require"
)

func TestMetadataManagerCoalescesConcurrentFetches(t *testing.T) {
	// S6: 100 concurrent GetMetadata calls issued while the manager is
	// Loading must produce exactly one wire request and resolve every
	// caller to the same snapshot.
	var metadataRequests atomic.Int32

	dial := pipeDialer(t, func(addr string, req fakeRequest) []byte {
		if req.apiKey != kmsg.KeyMetadata {
			return nil
		}
		metadataRequests.Add(1)
		time.Sleep(30 * time.Millisecond) // widen the window for concurrent callers to coalesce

		resp := &kmsg.MetadataResponse{
			Brokers: []kmsg.MetadataResponseBroker{{NodeID: 0, Host: "broker", Port: 9092}},
			Topics: []kmsg.MetadataResponseTopic{{
				Topic:      "orders",
				Partitions: []kmsg.MetadataResponsePartition{{PartitionID: 0, Leader: 0}},
			}},
		}
		var w kbin.Writer
		resp.AppendTo(&w)
		return w.Bytes()
	})

	client, err := NewClient(WithHosts("broker:9092"), WithDialFunc(dial))
	require.NoError(t, err)
	defer client.Close()

	mgr := NewMetadataManager(client, ClientConfig{})
	defer mgr.Close()

	var wg sync.WaitGroup
	snaps := make([]*Metadata, 100)
	errs := make([]error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = mgr.GetMetadata(context.Background(), nil)
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, metadataRequests.Load(), "concurrent GetMetadata calls while Loading must coalesce into one wire request")
	for i := range snaps {
		require.NoError(t, errs[i])
		require.Same(t, snaps[0], snaps[i], "every coalesced caller must resolve to the same snapshot value")
	}
}
