package kgo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolReusesIdleConnection(t *testing.T) {
	dial := pipeDialer(t, func(addr string, req fakeRequest) []byte { return nil })
	cfg, err := newClientConfig(WithHosts("broker:9092"), WithDialFunc(dial), WithAPIVersionRequest(true))
	require.NoError(t, err)
	pool := NewPool(cfg)
	defer pool.Close()

	c1, err := pool.Checkout(context.Background(), "broker:9092")
	require.NoError(t, err)
	pool.Return("broker:9092", c1)

	c2, err := pool.Checkout(context.Background(), "broker:9092")
	require.NoError(t, err)
	require.Same(t, c1, c2, "a returned idle connection must be reused instead of dialing a new one")
}

func TestPoolEvictsIdleConnectionsPastMaxIdle(t *testing.T) {
	dial := pipeDialer(t, func(addr string, req fakeRequest) []byte { return nil })
	cfg, err := newClientConfig(WithHosts("broker:9092"), WithDialFunc(dial), WithMaxConnectionIdle(40*time.Millisecond))
	require.NoError(t, err)
	pool := NewPool(cfg)
	defer pool.Close()

	c1, err := pool.Checkout(context.Background(), "broker:9092")
	require.NoError(t, err)
	pool.Return("broker:9092", c1)

	require.Eventually(t, func() bool {
		return c1.Dead()
	}, time.Second, 5*time.Millisecond, "a connection idle past max_connection_idle must eventually be evicted and closed")
}

func TestPoolCheckoutSkipsConnectionPastMaxIdle(t *testing.T) {
	// Property 6: checkout must itself enforce max_connection_idle rather
	// than rely solely on the background sweep, which only runs every
	// maxConnIdle/4 and could otherwise hand out a connection that expired
	// moments ago but hasn't been swept yet.
	dial := pipeDialer(t, func(addr string, req fakeRequest) []byte { return nil })
	cfg, err := newClientConfig(WithHosts("broker:9092"), WithDialFunc(dial), WithMaxConnectionIdle(20*time.Millisecond))
	require.NoError(t, err)
	pool := NewPool(cfg)
	defer pool.Close()

	c1, err := pool.Checkout(context.Background(), "broker:9092")
	require.NoError(t, err)
	pool.Return("broker:9092", c1)

	time.Sleep(40 * time.Millisecond)

	c2, err := pool.Checkout(context.Background(), "broker:9092")
	require.NoError(t, err)
	require.NotSame(t, c1, c2, "checkout must not hand out a connection idle past max_connection_idle")
	require.True(t, c1.Dead(), "the stale connection must be closed when checkout skips it")
}

func TestPoolHasNoHardSizeCap(t *testing.T) {
	dial := pipeDialer(t, func(addr string, req fakeRequest) []byte { return nil })
	cfg, err := newClientConfig(WithHosts("broker:9092"), WithDialFunc(dial))
	require.NoError(t, err)
	pool := NewPool(cfg)
	defer pool.Close()

	var conns []*Conn
	for i := 0; i < 50; i++ {
		c, err := pool.Checkout(context.Background(), "broker:9092")
		require.NoError(t, err)
		conns = append(conns, c)
	}
	for _, c := range conns {
		pool.Return("broker:9092", c)
	}
	require.Len(t, conns, 50, "the pool must not refuse checkouts below any fixed cap")
}
