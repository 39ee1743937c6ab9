package kgo

import (
	"context"
	"sync"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kerr"
	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
	"github.com/hashicorp/go-multierror"
)

// Sender drains the accumulator and ships batches to their partition
// leaders (C8). It runs one goroutine per leader broker address so a
// slow or down broker never blocks production to the others. A batch
// that fails with a leader error (NotLeaderForPartition,
// LeaderNotAvailable) forces a metadata refresh and is redispatched to
// whatever broker the refreshed snapshot now names as leader, which may
// land it on a different leader goroutine than the one that first tried
// it — the explicit failover handling the original single-reactor
// design didn't need to spell out.
type Sender struct {
	client   *Client
	metadata *MetadataManager
	acc      *RecordAccumulator
	cfg      ProducerConfig
	logger   Logger

	mu        sync.Mutex
	perLeader map[string]chan sendJob

	stop chan struct{}
	wg   sync.WaitGroup
}

type sendJob struct {
	tp      TopicPartition
	b       *batch
	attempt int
	errs    *multierror.Error
}

func NewSender(client *Client, metadata *MetadataManager, acc *RecordAccumulator, cfg ProducerConfig, logger Logger) *Sender {
	return &Sender{
		client:    client,
		metadata:  metadata,
		acc:       acc,
		cfg:       cfg,
		logger:    logger,
		perLeader: make(map[string]chan sendJob),
		stop:      make(chan struct{}),
	}
}

// Run scans the accumulator for drainable batches until ctx is done or
// Close is called, dispatching each to its leader's sender goroutine.
func (s *Sender) Run(ctx context.Context) {
	linger := s.cfg.Linger
	for {
		drained := s.acc.Drain(false)
		for tp, b := range drained {
			s.dispatch(ctx, sendJob{tp: tp, b: b})
		}

		wait := linger
		if d, ok := s.acc.NextDeadline(); ok {
			if remaining := time.Until(d); remaining < wait || wait == 0 {
				wait = remaining
			}
		}
		if wait <= 0 {
			wait = time.Millisecond
		}

		select {
		case <-s.acc.Ready():
		case <-time.After(wait):
			for tp, b := range s.acc.Drain(false) {
				s.dispatch(ctx, sendJob{tp: tp, b: b})
			}
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

func (s *Sender) dispatch(ctx context.Context, job sendJob) {
	snap := s.metadata.Snapshot()
	if snap == nil {
		s.failBatch(job.b, ErrNoBootstrapHosts)
		return
	}
	leader, ok := snap.Leader(job.tp)
	if !ok {
		s.failBatch(job.b, &kerr.ProtocolError{Reason: "no leader known for " + job.tp.Topic})
		return
	}

	ch := s.leaderChan(leader.Addr())
	select {
	case ch <- job:
	case <-ctx.Done():
		s.failBatch(job.b, &kerr.CancellationError{})
	}
}

func (s *Sender) leaderChan(addr string) chan sendJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.perLeader[addr]
	if ok {
		return ch
	}
	ch = make(chan sendJob, 64)
	s.perLeader[addr] = ch
	s.wg.Add(1)
	go s.runLeader(addr, ch)
	return ch
}

func (s *Sender) runLeader(addr string, jobs chan sendJob) {
	defer s.wg.Done()
	for {
		select {
		case job := <-jobs:
			s.sendOnce(addr, job)
		case <-s.stop:
			return
		}
	}
}

// sendOnce makes a single Produce attempt against addr. On success it
// resolves the batch's thunks. On a retryable failure it waits out the
// backoff and redispatches the job, which routes it by the current
// snapshot's leader; for a leader error it first forces a metadata
// refresh, so the next attempt targets whatever broker now leads the
// partition.
func (s *Sender) sendOnce(addr string, job sendJob) {
	raw, err := job.b.builder.Finish(compress)
	if err != nil {
		s.failBatch(job.b, err)
		return
	}
	req := &kmsg.ProduceRequest{
		Acks:          s.cfg.Acks,
		TimeoutMillis: int32(s.cfg.AckTimeout / time.Millisecond),
		Topics: []kmsg.ProduceRequestTopic{{
			Topic: job.tp.Topic,
			Partitions: []kmsg.ProduceRequestPartition{{
				Partition: job.tp.Partition,
				RecordSet: raw,
			}},
		}},
	}
	req.SetVersion(job.b.apiVersion)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.AckTimeout)
	resp, err := s.client.Request(ctx, addr, req)
	cancel()

	if err == nil {
		if perr := produceError(resp.(*kmsg.ProduceResponse), job.tp); perr != nil {
			err = perr
		}
	}
	if err == nil {
		baseOffset := produceBaseOffset(resp.(*kmsg.ProduceResponse), job.tp)
		s.completeBatch(job.b, job.tp, baseOffset)
		return
	}

	job.errs = multierror.Append(job.errs, err)
	if job.attempt >= s.cfg.Retries || !effectiveProduceRetryable(err) {
		s.failBatch(job.b, job.errs.ErrorOrNil())
		return
	}

	s.logger.Log(LogLevelWarn, "retrying produce batch", "addr", addr, "topic", job.tp.Topic, "partition", job.tp.Partition, "attempt", job.attempt, "err", err)

	if isLeaderError(err) {
		refreshCtx, refreshCancel := context.WithTimeout(context.Background(), s.cfg.AckTimeout)
		s.metadata.Refresh(refreshCtx, []string{job.tp.Topic})
		refreshCancel()
	}

	time.Sleep(s.cfg.RetryBackoff(job.attempt))
	job.attempt++
	s.dispatch(context.Background(), job)
}

func isLeaderError(err error) bool {
	code, ok := err.(kerr.Code)
	return ok && (code == kerr.LeaderNotAvailable || code == kerr.NotLeaderForPartition)
}

func produceError(resp *kmsg.ProduceResponse, tp TopicPartition) error {
	for _, t := range resp.Topics {
		if t.Topic != tp.Topic {
			continue
		}
		for _, p := range t.Partitions {
			if p.Partition == tp.Partition && p.ErrorCode != 0 {
				return kerr.ErrorForCode(p.ErrorCode)
			}
		}
	}
	return nil
}

func produceBaseOffset(resp *kmsg.ProduceResponse, tp TopicPartition) int64 {
	for _, t := range resp.Topics {
		if t.Topic != tp.Topic {
			continue
		}
		for _, p := range t.Partitions {
			if p.Partition == tp.Partition {
				return p.BaseOffset
			}
		}
	}
	return -1
}

func (s *Sender) completeBatch(b *batch, tp TopicPartition, baseOffset int64) {
	for i, rh := range b.thunks {
		rh.thunk.resolve(RecordMetadata{
			Topic:     tp.Topic,
			Partition: tp.Partition,
			Offset:    baseOffset + int64(i),
			Timestamp: time.UnixMilli(rh.timestamp),
			KeySize:   rh.keySize,
			ValueSize: rh.valueSize,
		})
	}
}

func (s *Sender) failBatch(b *batch, err error) {
	for _, rh := range b.thunks {
		rh.thunk.fail(err)
	}
}

// Close stops every leader goroutine and the scan loop.
func (s *Sender) Close() {
	close(s.stop)
	s.wg.Wait()
}
