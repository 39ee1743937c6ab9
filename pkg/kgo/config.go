package kgo

import (
	"context"
	"net"
	"time"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kerr"
	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
)

// VersionFallback names a fixed ApiVersionWindow profile used when
// api_version_request is disabled, per the core spec's broker_version_fallback
// option.
type VersionFallback string

const (
	// FallbackOldest assumes the broker speaks only the oldest version of
	// every request this client knows (version 0 everywhere).
	FallbackOldest VersionFallback = "oldest"
	// FallbackLatest assumes the broker speaks the newest version this
	// client knows for each request (Produce v2, Metadata v0, ApiVersions
	// v0, ListOffsets v1).
	FallbackLatest VersionFallback = "latest"
)

func fallbackWindow(profile VersionFallback) map[int16]kmsg.ApiVersionWindow {
	switch profile {
	case FallbackLatest:
		return map[int16]kmsg.ApiVersionWindow{
			kmsg.KeyProduce:     {ApiKey: kmsg.KeyProduce, MinVersion: 0, MaxVersion: 2},
			kmsg.KeyMetadata:    {ApiKey: kmsg.KeyMetadata, MinVersion: 0, MaxVersion: 0},
			kmsg.KeyApiVersions: {ApiKey: kmsg.KeyApiVersions, MinVersion: 0, MaxVersion: 0},
			kmsg.KeyListOffsets: {ApiKey: kmsg.KeyListOffsets, MinVersion: 0, MaxVersion: 1},
		}
	default: // FallbackOldest and anything unrecognized
		return map[int16]kmsg.ApiVersionWindow{
			kmsg.KeyProduce:     {ApiKey: kmsg.KeyProduce, MinVersion: 0, MaxVersion: 0},
			kmsg.KeyMetadata:    {ApiKey: kmsg.KeyMetadata, MinVersion: 0, MaxVersion: 0},
			kmsg.KeyApiVersions: {ApiKey: kmsg.KeyApiVersions, MinVersion: 0, MaxVersion: 0},
			kmsg.KeyListOffsets: {ApiKey: kmsg.KeyListOffsets, MinVersion: 0, MaxVersion: 0},
		}
	}
}

// DialFunc dials one broker address. The default is net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ClientConfig holds everything the cluster-facing layer (C2-C6) needs.
// It is built via functional options, matching the option-struct idiom the
// teacher client uses throughout.
type ClientConfig struct {
	hosts    []string
	clientID *string

	requestTimeout   time.Duration
	maxConnIdle      time.Duration
	metadataMaxAge   time.Duration
	apiVersionReq    bool
	versionFallback  VersionFallback
	metricsEnabled   bool
	maxBrokerReadBytes int32

	dialFn DialFunc
	logger Logger
}

// Opt configures a ClientConfig.
type Opt interface{ apply(*ClientConfig) }

type clientOptFunc func(*ClientConfig)

func (f clientOptFunc) apply(c *ClientConfig) { f(c) }

// WithHosts sets the bootstrap broker addresses (host:port).
func WithHosts(hosts ...string) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.hosts = hosts })
}

// WithClientID sets the client_id sent in every request header.
func WithClientID(id string) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.clientID = &id })
}

// WithRequestTimeout sets the per-request deadline used by the client
// service (C5).
func WithRequestTimeout(d time.Duration) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.requestTimeout = d })
}

// WithMaxConnectionIdle sets the pool's idle-eviction threshold (C3).
func WithMaxConnectionIdle(d time.Duration) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.maxConnIdle = d })
}

// WithMetadataMaxAge sets the background refresh period (C6). 0 disables
// background refresh entirely.
func WithMetadataMaxAge(d time.Duration) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.metadataMaxAge = d })
}

// WithAPIVersionRequest toggles issuing ApiVersions probes during the
// initial load and after every reconnect. If false, WithVersionFallback's
// profile is used for every broker instead.
func WithAPIVersionRequest(enabled bool) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.apiVersionReq = enabled })
}

// WithVersionFallback sets the fixed version profile used when
// WithAPIVersionRequest(false).
func WithVersionFallback(profile VersionFallback) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.versionFallback = profile })
}

// WithMetrics records whether metrics are enabled. The flag is stored in
// the config only; this package registers no counters.
func WithMetrics(enabled bool) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.metricsEnabled = enabled })
}

// WithDialFunc overrides how broker TCP connections are dialed.
func WithDialFunc(fn DialFunc) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.dialFn = fn })
}

// WithLogger installs a Logger; the client is silent without one.
func WithLogger(l Logger) Opt {
	return clientOptFunc(func(c *ClientConfig) { c.logger = l })
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		requestTimeout:     10 * time.Second,
		maxConnIdle:        9 * time.Minute,
		metadataMaxAge:     5 * time.Minute,
		apiVersionReq:      true,
		versionFallback:    FallbackOldest,
		maxBrokerReadBytes: 100 << 20,
		dialFn: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
		logger: nopLogger{},
	}
}

func newClientConfig(opts ...Opt) (ClientConfig, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if len(cfg.hosts) == 0 {
		return cfg, ErrNoBootstrapHosts
	}
	return cfg, nil
}

// ProducerConfig holds the producer-only options layered on top of
// ClientConfig, per the core spec's §6.
type ProducerConfig struct {
	Acks          int16 // 0 | 1 | -1
	AckTimeout    time.Duration
	BatchSize     int
	MaxRequestSize int
	Linger        time.Duration
	Compression   kmsg.Compression
	Retries       int
	RetryBackoff  func(attempt int) time.Duration
	Partitioner   Partitioner
	Serializer    Serializer
}

// ProducerOpt configures a ProducerConfig.
type ProducerOpt interface{ apply(*ProducerConfig) }

type producerOptFunc func(*ProducerConfig)

func (f producerOptFunc) apply(c *ProducerConfig) { f(c) }

func WithAcks(acks int16) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.Acks = acks })
}

func WithAckTimeout(d time.Duration) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.AckTimeout = d })
}

func WithBatchSize(n int) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.BatchSize = n })
}

func WithMaxRequestSize(n int) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.MaxRequestSize = n })
}

func WithLinger(d time.Duration) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.Linger = d })
}

func WithCompression(codec kmsg.Compression) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.Compression = codec })
}

func WithRetries(n int, backoff func(attempt int) time.Duration) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.Retries = n; c.RetryBackoff = backoff })
}

func WithPartitioner(p Partitioner) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.Partitioner = p })
}

func WithSerializer(s Serializer) ProducerOpt {
	return producerOptFunc(func(c *ProducerConfig) { c.Serializer = s })
}

func defaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Acks:           -1,
		AckTimeout:     10 * time.Second,
		BatchSize:      16 << 10,
		MaxRequestSize: 1 << 20,
		Linger:         0,
		Compression:    kmsg.CompressionNone,
		Retries:        3,
		RetryBackoff:   defaultBackoff,
		Partitioner:    &DefaultPartitioner{},
		Serializer:     ByteSerializer{},
	}
}

func newProducerConfig(opts ...ProducerOpt) ProducerConfig {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return cfg
}

// effectiveProduceRetryable reports whether err should cause the sender to
// retry the whole batch, per the core spec's §4.8 classification.
func effectiveProduceRetryable(err error) bool {
	return kerr.IsRetriable(err)
}
