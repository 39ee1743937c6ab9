package kgo

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Partitioner chooses which partition a record lands on.
type Partitioner interface {
	// Partition returns the partition id to use. available is the list
	// of known partition ids for the topic, in metadata order.
	Partition(topic string, key, value []byte, available []int32) int32
}

// DefaultPartitioner mirrors the original client's partitioning rule:
// hash the key with xxhash when one is present, otherwise round-robin.
// Record.Partition, when set, bypasses the Partitioner entirely and is
// handled by the caller before Partition is ever invoked.
type DefaultPartitioner struct {
	counter atomic.Uint64
}

func (p *DefaultPartitioner) Partition(topic string, key, value []byte, available []int32) int32 {
	if len(available) == 0 {
		return 0
	}
	var idx uint64
	if key != nil {
		idx = xxhash.Sum64(key)
	} else {
		idx = p.counter.Add(1)
	}
	return available[idx%uint64(len(available))]
}
