package kmsg

import (
	"testing"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"
	"github.com/stretchr/testify/require"
)

func testMessageRoundTrip(t *testing.T, m Message) {
	t.Helper()
	var w kbin.Writer
	m.AppendTo(&w)

	r := kbin.NewReader(w.Bytes())
	got, err := ReadMessage(r)
	require.NoError(t, err)
	require.NoError(t, r.Complete())
	require.Equal(t, m.Version, got.Version)
	require.Equal(t, m.Compression, got.Compression)
	require.Equal(t, m.Key, got.Key)
	require.Equal(t, m.Value, got.Value)
	if m.Version >= 1 {
		require.Equal(t, m.Timestamp, got.Timestamp)
	}
}

func TestMessageEncodingV0(t *testing.T) {
	testMessageRoundTrip(t, Message{Version: 0})
}

func TestMessageEncodingV1WithTimestamp(t *testing.T) {
	testMessageRoundTrip(t, Message{
		Version:   1,
		Timestamp: 1479847795000,
		Key:       []byte("k"),
		Value:     []byte("v"),
	})
}

func TestMessageCRCMismatchIsRejected(t *testing.T) {
	var w kbin.Writer
	Message{Version: 0, Value: []byte("hello")}.AppendTo(&w)
	buf := w.Bytes()

	// Corrupt a byte inside the message body (after offset+size+crc prefix)
	// so the recomputed CRC no longer matches the recorded one.
	buf[len(buf)-1] ^= 0xFF

	_, err := ReadMessage(kbin.NewReader(buf))
	require.ErrorIs(t, err, ErrCRCMismatch)
}

func TestMessageSetBuilderFullSignalsBatchFull(t *testing.T) {
	// Small enough that a second record cannot fit; TryAppend must report
	// false without mutating the builder, the "batch_full" signal the
	// accumulator relies on.
	b := NewMessageSetBuilder(0, CompressionNone, 40)
	require.True(t, b.TryAppend([]byte("k"), []byte("v"), 0))
	require.False(t, b.TryAppend([]byte("k"), []byte("v-too-big-to-fit-here"), 0))
	require.Equal(t, 1, b.Len())
}

func TestMessageSetBuilderFirstRecordAlwaysFits(t *testing.T) {
	// The write limit must never reject the first record in an empty batch
	// (the core spec requires write_limit >= the largest permitted record).
	b := NewMessageSetBuilder(0, CompressionNone, 1)
	require.True(t, b.TryAppend(nil, []byte("anything, since this is the first append"), 0))
}

func TestMessageSetBuilderFinishUncompressed(t *testing.T) {
	b := NewMessageSetBuilder(1, CompressionNone, 1<<20)
	require.True(t, b.TryAppend([]byte("k1"), []byte("v1"), 100))
	require.True(t, b.TryAppend([]byte("k2"), []byte("v2"), 200))

	out, err := b.Finish(nil)
	require.NoError(t, err)

	r := kbin.NewReader(out)
	first, err := ReadMessage(r)
	require.NoError(t, err)
	require.Equal(t, int64(0), first.Offset)
	second, err := ReadMessage(r)
	require.NoError(t, err)
	require.Equal(t, int64(1), second.Offset)
	require.NoError(t, r.Complete())
}
