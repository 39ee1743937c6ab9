package kgo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kerr"
	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
)

type metadataState int8

const (
	stateUnloaded metadataState = iota
	stateLoading
	stateLoaded
)

// MetadataManager owns the cluster snapshot and coalesces concurrent
// GetMetadata calls into a single in-flight fetch (C6). The published
// snapshot is swapped in with atomic.Pointer *before* the waiters blocked
// on the in-flight fetch are released, so no waiter can ever observe a
// wakeup that races ahead of the snapshot it's waking up for.
type MetadataManager struct {
	client *Client
	cfg    ClientConfig

	snapshot atomic.Pointer[Metadata]

	mu      sync.Mutex
	state   metadataState
	waiters []chan fetchResult

	refreshInterval time.Duration
	stopRefresh     chan struct{}
	refreshOnce     sync.Once
}

type fetchResult struct {
	snap *Metadata
	err  error
}

// NewMetadataManager constructs a manager bound to client and starts its
// background refresh loop if cfg.metadataMaxAge > 0.
func NewMetadataManager(client *Client, cfg ClientConfig) *MetadataManager {
	m := &MetadataManager{
		client:          client,
		cfg:             cfg,
		refreshInterval: cfg.metadataMaxAge,
		stopRefresh:     make(chan struct{}),
	}
	if m.refreshInterval > 0 {
		go m.refreshLoop()
	}
	return m
}

// Snapshot returns the last published Metadata, or nil if none has loaded
// yet.
func (m *MetadataManager) Snapshot() *Metadata {
	return m.snapshot.Load()
}

// GetMetadata returns the current snapshot if one is loaded, otherwise
// blocks until a fetch (its own or one already in flight) completes.
// Concurrent callers that arrive while a fetch is in flight share its
// result instead of each issuing their own Metadata request.
func (m *MetadataManager) GetMetadata(ctx context.Context, topics []string) (*Metadata, error) {
	if snap := m.snapshot.Load(); snap != nil {
		return snap, nil
	}
	return m.load(ctx, topics)
}

// load joins the fetch already in flight, if any, or else runs one itself
// and hands its result to every caller that joined it.
func (m *MetadataManager) load(ctx context.Context, topics []string) (*Metadata, error) {
	m.mu.Lock()
	if m.state == stateLoading {
		ch := make(chan fetchResult, 1)
		m.waiters = append(m.waiters, ch)
		m.mu.Unlock()
		select {
		case res := <-ch:
			return res.snap, res.err
		case <-ctx.Done():
			return nil, &kerr.CancellationError{}
		}
	}
	m.state = stateLoading
	m.mu.Unlock()

	snap, err := m.fetch(ctx, topics)

	m.mu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.state = stateUnloaded
	if err == nil {
		m.state = stateLoaded
	}
	m.mu.Unlock()

	if err == nil {
		// Publish before waking waiters: any goroutine unblocked by the
		// sends below must see the new snapshot if it calls Snapshot/
		// GetMetadata immediately after.
		m.snapshot.Store(snap)
	}
	for _, w := range waiters {
		w <- fetchResult{snap: snap, err: err}
	}
	return snap, err
}

func (m *MetadataManager) fetch(ctx context.Context, topics []string) (*Metadata, error) {
	req := &kmsg.MetadataRequest{Topics: topics}
	resp, _, err := m.client.RequestAny(ctx, req)
	if err != nil {
		return nil, err
	}
	mr := resp.(*kmsg.MetadataResponse)
	snap := NewMetadataFromResponse(mr)

	if !m.cfg.apiVersionReq {
		return snap.WithFallbackAPIVersions(fallbackWindow(m.cfg.versionFallback)), nil
	}
	return snap.WithFallbackAPIVersions(fallbackWindow(m.cfg.versionFallback)).WithAPIVersions(m.probeAPIVersions(ctx, snap)), nil
}

// probeAPIVersions issues an ApiVersions request to every broker in snap
// concurrently and collects the windows that answered. A broker that fails
// to answer is simply absent from the result, leaving its fallback window
// (applied by the caller before this runs) in place.
func (m *MetadataManager) probeAPIVersions(ctx context.Context, snap *Metadata) map[int32]map[int16]kmsg.ApiVersionWindow {
	type probeResult struct {
		nodeID  int32
		windows map[int16]kmsg.ApiVersionWindow
	}
	resCh := make(chan probeResult, len(snap.brokers))
	var wg sync.WaitGroup
	for _, b := range snap.brokers {
		b := b
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := m.client.Request(ctx, b.Addr(), &kmsg.ApiVersionsRequest{})
			if err != nil {
				resCh <- probeResult{nodeID: b.NodeID}
				return
			}
			av := resp.(*kmsg.ApiVersionsResponse)
			if av.ErrorCode != 0 {
				resCh <- probeResult{nodeID: b.NodeID}
				return
			}
			windows := make(map[int16]kmsg.ApiVersionWindow, len(av.ApiKeys))
			for _, w := range av.ApiKeys {
				windows[w.ApiKey] = w
			}
			resCh <- probeResult{nodeID: b.NodeID, windows: windows}
		}()
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	out := make(map[int32]map[int16]kmsg.ApiVersionWindow, len(snap.brokers))
	for r := range resCh {
		if r.windows != nil {
			out[r.nodeID] = r.windows
		}
	}
	return out
}

// Refresh forces a fetch regardless of whether a snapshot already exists,
// used by the background refresh loop and by the sender reacting to a
// LeaderNotAvailable/NotLeaderForPartition error. The previous snapshot
// stays published until the fetch replaces it.
func (m *MetadataManager) Refresh(ctx context.Context, topics []string) (*Metadata, error) {
	return m.load(ctx, topics)
}

func (m *MetadataManager) refreshLoop() {
	t := time.NewTicker(m.refreshInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.refreshInterval)
			m.Refresh(ctx, nil)
			cancel()
		case <-m.stopRefresh:
			return
		}
	}
}

// Close stops the background refresh loop.
func (m *MetadataManager) Close() {
	m.refreshOnce.Do(func() { close(m.stopRefresh) })
}
