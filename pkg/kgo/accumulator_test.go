package kgo

import (
	"testing"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
	"github.com/stretchr/testify/require"
)

func TestAccumulatorBatchFullFlushesImmediately(t *testing.T) {
	// S4: with a small batch size, pushing records until the builder
	// refuses the next one must make Drain(false) return that partition
	// without waiting for linger.
	cfg := defaultProducerConfig()
	cfg.BatchSize = 64
	cfg.Linger = time.Hour // long enough that only batch-full could explain a drain
	acc := NewRecordAccumulator(cfg)

	tp := TopicPartition{Topic: "t", Partition: 0}
	var thunks []*thunk
	for i := 0; i < 20; i++ {
		thunks = append(thunks, acc.Append(tp, 1, []byte("key"), []byte("value-bytes-here"), 0))
	}

	drained := acc.Drain(false)
	require.Contains(t, drained, tp, "a full first batch must be drainable without forcing or waiting for linger")
}

func TestAccumulatorLingerFlush(t *testing.T) {
	// S3: before the linger deadline, a single, not-yet-full batch must
	// not be drainable; after it elapses, it must be.
	cfg := defaultProducerConfig()
	cfg.BatchSize = 1 << 20
	cfg.Linger = 50 * time.Millisecond
	acc := NewRecordAccumulator(cfg)

	tp := TopicPartition{Topic: "t", Partition: 0}
	acc.Append(tp, 1, []byte("k"), []byte("v"), 0)

	require.Empty(t, acc.Drain(false), "a lone unfilled batch must not drain before its linger deadline")

	time.Sleep(75 * time.Millisecond)
	require.Contains(t, acc.Drain(false), tp, "a lone unfilled batch must drain once its linger deadline has passed")
}

func TestAccumulatorAppendCreatesNewBatchWhenTailFull(t *testing.T) {
	cfg := defaultProducerConfig()
	cfg.BatchSize = 40
	acc := NewRecordAccumulator(cfg)

	tp := TopicPartition{Topic: "t", Partition: 0}
	acc.Append(tp, 1, []byte("k"), []byte("v"), 0)
	acc.Append(tp, 1, []byte("k"), []byte("value-too-long-to-share-a-batch"), 0)

	pq := acc.queueFor(tp)
	pq.mu.Lock()
	n := len(pq.batches)
	pq.mu.Unlock()
	require.Equal(t, 2, n, "a record that doesn't fit the tail batch must start a new one")
}

func TestAccumulatorForceDrainOfEmptyAccumulatorReturnsNothing(t *testing.T) {
	cfg := defaultProducerConfig()
	acc := NewRecordAccumulator(cfg)
	require.Empty(t, acc.Drain(true))
}

func TestAccumulatorDifferentPartitionsDoNotBlockEachOther(t *testing.T) {
	cfg := defaultProducerConfig()
	cfg.Compression = kmsg.CompressionNone
	acc := NewRecordAccumulator(cfg)

	tpA := TopicPartition{Topic: "t", Partition: 0}
	tpB := TopicPartition{Topic: "t", Partition: 1}

	pqA := acc.queueFor(tpA)
	pqA.mu.Lock()
	defer pqA.mu.Unlock()

	done := make(chan struct{})
	go func() {
		acc.Append(tpB, 1, []byte("k"), []byte("v"), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("append to a different partition must not block while another partition's lock is held")
	}
}
