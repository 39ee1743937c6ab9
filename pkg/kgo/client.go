package kgo

import (
	"context"
	"sync"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
	"github.com/hashicorp/go-multierror"
)

// Client is the connection-and-metadata-facing service (C5): it owns the
// pool, applies the request timeout, and knows how to reach any bootstrap
// host when no metadata has loaded yet.
type Client struct {
	cfg  ClientConfig
	pool *Pool

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient builds a Client from options. At least one bootstrap host is
// required.
func NewClient(opts ...Opt) (*Client, error) {
	cfg, err := newClientConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:    cfg,
		pool:   NewPool(cfg),
		closed: make(chan struct{}),
	}, nil
}

// Request sends req to addr and returns its response, applying the
// client's configured request timeout if ctx carries no earlier deadline.
func (c *Client) Request(ctx context.Context, addr string, req kmsg.Request) (kmsg.Response, error) {
	select {
	case <-c.closed:
		return nil, ErrClientClosed
	default:
	}

	if c.cfg.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.requestTimeout)
		defer cancel()
	}

	conn, err := c.pool.Checkout(ctx, addr)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Do(ctx, req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.pool.Return(addr, conn)
	return resp, nil
}

// anyBootstrapConn races a checkout against every configured bootstrap
// host and returns the first to succeed, closing the rest. Correlation
// ids are per-connection in this port (assigned by each Conn's writer
// goroutine independently), so there is no cross-host id collision to
// guard against the way the original single-reactor design had to —
// the only thing this needs to do is return one live connection and
// discard the others.
func (c *Client) anyBootstrapConn(ctx context.Context) (*Conn, string, error) {
	if len(c.cfg.hosts) == 0 {
		return nil, "", ErrNoBootstrapHosts
	}

	type result struct {
		conn *Conn
		addr string
		err  error
	}
	resCh := make(chan result, len(c.cfg.hosts))
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, addr := range c.cfg.hosts {
		addr := addr
		go func() {
			conn, err := c.pool.Checkout(dialCtx, addr)
			resCh <- result{conn: conn, addr: addr, err: err}
		}()
	}

	var errs *multierror.Error
	var winner *result
	for range c.cfg.hosts {
		r := <-resCh
		if r.err != nil {
			errs = multierror.Append(errs, r.err)
			continue
		}
		if winner == nil {
			winner = &r
			cancel()
		} else {
			r.conn.Close()
		}
	}
	if winner == nil {
		return nil, "", errs.ErrorOrNil()
	}
	return winner.conn, winner.addr, nil
}

// RequestAny sends req to any reachable bootstrap host, used for the
// initial Metadata load before any partition leader is known.
func (c *Client) RequestAny(ctx context.Context, req kmsg.Request) (kmsg.Response, string, error) {
	conn, addr, err := c.anyBootstrapConn(ctx)
	if err != nil {
		return nil, "", err
	}
	resp, err := conn.Do(ctx, req)
	if err != nil {
		conn.Close()
		return nil, addr, err
	}
	c.pool.Return(addr, conn)
	return resp, addr, nil
}

// Close stops the pool and fails any subsequent Request with
// ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.pool.Close()
}
