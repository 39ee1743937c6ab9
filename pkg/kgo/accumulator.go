package kgo

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
)

// recordHandle pairs one record's thunk with the per-record bookkeeping
// needed to populate its eventual RecordMetadata — the wire encoder only
// keeps bytes, not a decomposable key/value size or timestamp, so this is
// carried alongside it.
type recordHandle struct {
	thunk     *thunk
	timestamp int64 // ms since epoch, as written to the wire
	keySize   int
	valueSize int
}

// batch pairs a MessageSetBuilder with the handles of the records it
// currently holds, so completing the batch can resolve every caller that
// contributed a record to it. apiVersion is fixed at batch creation time —
// every record in a batch is written with the same MessageSet encoding and
// the same request-level api_version.
type batch struct {
	builder    *kmsg.MessageSetBuilder
	thunks     []recordHandle
	created    time.Time
	apiVersion int16
}

func newBatch(apiVersion int16, compression kmsg.Compression, writeLimit int) *batch {
	return &batch{
		builder:    kmsg.NewMessageSetBuilder(apiVersion, compression, writeLimit),
		created:    time.Now(),
		apiVersion: apiVersion,
	}
}

func (b *batch) deadline(linger time.Duration) time.Time {
	return b.created.Add(linger)
}

// partitionQueue is one partition's pending batches: a deque (oldest first,
// newest at the back) guarded by its own mutex. An append takes the
// accumulator-wide lock only briefly, to look up this queue and to record
// a new batch's deadline; the record itself is added under this
// partition's mutex, so holding one partition's mutex never blocks appends
// to another partition.
type partitionQueue struct {
	mu      sync.Mutex
	batches []*batch
}

// RecordAccumulator buffers records per partition until a batch fills or
// its linger deadline passes (C7). twmb/go-rbtree's public surface (a
// single-file generic tree with no usage anywhere in the retrieved
// examples) couldn't be grounded confidently enough to guarantee it
// compiles sight-unseen, so partitions are ordered by earliest-expiring
// batch with container/heap instead — still an O(log n) priority queue,
// just built on the standard library's heap interface rather than a
// hand-rolled or mis-guessed external tree API.
type RecordAccumulator struct {
	cfg ProducerConfig

	mu         sync.Mutex
	partitions map[TopicPartition]*partitionQueue
	deadlines  deadlineHeap

	readyCh chan struct{}
}

func NewRecordAccumulator(cfg ProducerConfig) *RecordAccumulator {
	return &RecordAccumulator{
		cfg:        cfg,
		partitions: make(map[TopicPartition]*partitionQueue),
		readyCh:    make(chan struct{}, 1),
	}
}

func (a *RecordAccumulator) queueFor(tp TopicPartition) *partitionQueue {
	a.mu.Lock()
	defer a.mu.Unlock()
	pq, ok := a.partitions[tp]
	if !ok {
		pq = &partitionQueue{}
		a.partitions[tp] = pq
	}
	return pq
}

// Append adds one record to tp's pending batches, creating a new batch if
// the tail batch is full or absent. It returns the thunk the caller
// should wait on for the eventual RecordMetadata.
func (a *RecordAccumulator) Append(tp TopicPartition, apiVersion int16, key, value []byte, timestamp int64) *thunk {
	pq := a.queueFor(tp)
	t := newThunk(nil)

	rh := recordHandle{thunk: t, timestamp: timestamp, keySize: len(key), valueSize: len(value)}

	pq.mu.Lock()
	if n := len(pq.batches); n > 0 {
		tail := pq.batches[n-1]
		if tail.builder.TryAppend(key, value, timestamp) {
			tail.thunks = append(tail.thunks, rh)
			pq.mu.Unlock()
			a.signalReady()
			return t
		}
	}
	b := newBatch(apiVersion, a.cfg.Compression, a.cfg.BatchSize)
	b.builder.TryAppend(key, value, timestamp) // first append always fits
	b.thunks = append(b.thunks, rh)
	pq.batches = append(pq.batches, b)
	pq.mu.Unlock()

	a.trackDeadline(tp, b.deadline(a.cfg.Linger))
	a.signalReady()
	return t
}

func (a *RecordAccumulator) signalReady() {
	select {
	case a.readyCh <- struct{}{}:
	default:
	}
}

// Ready is closed-over by the sender to wake up and re-scan for drainable
// batches.
func (a *RecordAccumulator) Ready() <-chan struct{} { return a.readyCh }

// Drain removes and returns, for every partition, the head batch if it is
// ready to send: more than one batch is queued (a new batch is only
// started once a record did not fit the one before it), the head batch's
// linger has elapsed, or force is true (used by Producer.Flush). A lone
// batch is not drained early just because it is close to its write limit.
func (a *RecordAccumulator) Drain(force bool) map[TopicPartition]*batch {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[TopicPartition]*batch)
	for tp, pq := range a.partitions {
		pq.mu.Lock()
		if len(pq.batches) == 0 {
			pq.mu.Unlock()
			continue
		}
		drainable := len(pq.batches) > 1 || a.tailIsDrainable(pq, force)
		if drainable {
			b := pq.batches[0]
			pq.batches = pq.batches[1:]
			out[tp] = b
		}
		pq.mu.Unlock()
	}
	return out
}

func (a *RecordAccumulator) tailIsDrainable(pq *partitionQueue, force bool) bool {
	if force {
		return true
	}
	return pq.batches[0].builder.Empty() == false && time.Since(pq.batches[0].created) >= a.cfg.Linger
}

// NextDeadline returns the earliest tracked linger deadline among
// partitions that still hold a batch, used by the sender to size its wait
// when nothing is immediately drainable. The entry may belong to a batch
// of that partition that has already drained (see trackDeadline).
func (a *RecordAccumulator) NextDeadline() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pruneDeadlines()
	if len(a.deadlines) == 0 {
		return time.Time{}, false
	}
	return a.deadlines[0].at, true
}

// trackDeadline records a new batch's linger deadline. Stale entries for
// batches that have since drained are left in the heap and skipped
// lazily by NextDeadline/pruneDeadlines once their partition is empty.
// Such an entry only makes the sender wake up early and re-scan with a
// non-forced Drain, never late.
func (a *RecordAccumulator) trackDeadline(tp TopicPartition, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	heap.Push(&a.deadlines, &deadlineItem{tp: tp, at: at})
}

func (a *RecordAccumulator) pruneDeadlines() {
	for len(a.deadlines) > 0 {
		top := a.deadlines[0].tp
		pq, ok := a.partitions[top]
		if !ok {
			heap.Pop(&a.deadlines)
			continue
		}
		pq.mu.Lock()
		stale := len(pq.batches) == 0
		pq.mu.Unlock()
		if stale {
			heap.Pop(&a.deadlines)
			continue
		}
		break
	}
}

type deadlineItem struct {
	tp    TopicPartition
	at    time.Time
	index int
}

type deadlineHeap []*deadlineItem

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h deadlineHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *deadlineHeap) Push(x interface{}) {
	item := x.(*deadlineItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *deadlineHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
