package kgo

import (
	"context"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
)

// Producer is the public producer-side API: it serializes and partitions
// each record, hands it to the accumulator, and runs a Sender in the
// background to ship completed batches.
type Producer struct {
	client   *Client
	metadata *MetadataManager
	acc      *RecordAccumulator
	sender   *Sender
	cfg      ProducerConfig
	logger   Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProducer builds a Producer on top of an already-constructed Client.
func NewProducer(client *Client, clientCfg ClientConfig, opts ...ProducerOpt) *Producer {
	cfg := newProducerConfig(opts...)
	metadata := NewMetadataManager(client, clientCfg)
	acc := NewRecordAccumulator(cfg)
	sender := NewSender(client, metadata, acc, cfg, clientCfg.logger)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Producer{
		client:   client,
		metadata: metadata,
		acc:      acc,
		sender:   sender,
		cfg:      cfg,
		logger:   clientCfg.logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		sender.Run(ctx)
		close(p.done)
	}()
	return p
}

// Send partitions and enqueues r, returning a function that blocks for
// the broker's acknowledgment. The record's key/value are serialized
// with the configured Serializer before partitioning, matching the
// original client's "serialize, then partition" ordering.
func (p *Producer) Send(ctx context.Context, r *ProducerRecord) (func() (RecordMetadata, error), error) {
	key, err := p.cfg.Serializer.Serialize(r.Topic, r.Key)
	if err != nil {
		p.logger.Log(LogLevelWarn, "dropping record: key serialization failed", "topic", r.Topic, "err", err)
		return nil, err
	}
	value, err := p.cfg.Serializer.Serialize(r.Topic, r.Value)
	if err != nil {
		p.logger.Log(LogLevelWarn, "dropping record: value serialization failed", "topic", r.Topic, "err", err)
		return nil, err
	}

	snap, err := p.metadata.GetMetadata(ctx, []string{r.Topic})
	if err != nil {
		return nil, err
	}

	partition := int32(0)
	if r.Partition != nil {
		partition = *r.Partition
	} else {
		available, _ := snap.Partitions(r.Topic)
		partition = p.cfg.Partitioner.Partition(r.Topic, key, value, available)
	}
	tp := TopicPartition{Topic: r.Topic, Partition: partition}

	// The Produce api_version is resolved from the leader's advertised
	// capability window (fallback 0 if no leader is known yet), matching
	// the version the sender will set on the wire request itself so the
	// MessageSet encoding and the ProduceRequest version never disagree.
	apiVersion := int16(0)
	if leader, ok := snap.Leader(tp); ok {
		apiVersion = snap.EffectiveVersion(leader.NodeID, kmsg.KeyProduce, kmsg.ProduceMaxVersion)
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	t := p.acc.Append(tp, apiVersion, key, value, ts.UnixNano()/int64(time.Millisecond))
	return t.Wait, nil
}

// Flush forces every pending batch to drain regardless of linger, handing
// each to its leader's send goroutine, and returns once the accumulator
// holds no batches. It does not wait for those batches to be acknowledged.
func (p *Producer) Flush(ctx context.Context) {
	for {
		drained := p.acc.Drain(true)
		if len(drained) == 0 {
			return
		}
		for tp, b := range drained {
			p.sender.dispatch(ctx, sendJob{tp: tp, b: b})
		}
	}
}

// Close flushes pending batches and stops the background sender.
func (p *Producer) Close(ctx context.Context) error {
	p.Flush(ctx)
	p.cancel()
	<-p.done
	p.sender.Close()
	p.metadata.Close()
	return nil
}
