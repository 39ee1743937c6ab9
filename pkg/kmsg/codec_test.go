package kmsg

import (
	"testing"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// TestProduceRequestRoundTrip covers testable property 1: decode(encode(x)) == x.
func TestProduceRequestRoundTrip(t *testing.T) {
	for _, version := range []int16{0, 1, 2} {
		req := &ProduceRequest{
			version:       version,
			Acks:          -1,
			TimeoutMillis: 5000,
			Topics: []ProduceRequestTopic{{
				Topic: "orders",
				Partitions: []ProduceRequestPartition{{
					Partition: 0,
					RecordSet: []byte{1, 2, 3, 4},
				}},
			}},
		}

		var w kbin.Writer
		req.AppendTo(&w)

		var got ProduceRequest
		got.version = version
		require.NoError(t, got.ReadFrom(w.Bytes()))
		if diff := cmp.Diff(*req, got, cmp.AllowUnexported(ProduceRequest{})); diff != "" {
			t.Fatalf("version %d: round-trip mismatch (-want +got):\n%s\nfull decoded value:\n%s", version, diff, spew.Sdump(got))
		}
	}
}

func TestProduceResponseRoundTrip(t *testing.T) {
	for _, version := range []int16{0, 1, 2} {
		resp := &ProduceResponse{
			version: version,
			Topics: []ProduceResponseTopic{{
				Topic: "orders",
				Partitions: []ProduceResponsePartition{{
					Partition:  0,
					ErrorCode:  0,
					BaseOffset: 42,
				}},
			}},
		}
		if version >= 2 {
			resp.ThrottleTimeMs = 17
		}

		var w kbin.Writer
		resp.AppendTo(&w)

		got := &ProduceResponse{version: version}
		require.NoError(t, got.ReadFrom(w.Bytes()))
		if diff := cmp.Diff(resp, got, cmp.AllowUnexported(ProduceResponse{})); diff != "" {
			t.Fatalf("version %d: round-trip mismatch (-want +got):\n%s\nfull decoded value:\n%s", version, diff, spew.Sdump(got))
		}
	}
}

func TestApiVersionsResponseRoundTrip(t *testing.T) {
	resp := &ApiVersionsResponse{
		ErrorCode: 0,
		ApiKeys: []ApiVersionWindow{
			{ApiKey: KeyProduce, MinVersion: 0, MaxVersion: 2},
			{ApiKey: KeyMetadata, MinVersion: 0, MaxVersion: 0},
		},
	}

	var w kbin.Writer
	resp.AppendTo(&w)

	got := &ApiVersionsResponse{}
	require.NoError(t, got.ReadFrom(w.Bytes()))
	if diff := cmp.Diff(resp, got, cmp.AllowUnexported(ApiVersionsResponse{})); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s\nfull decoded value:\n%s", diff, spew.Sdump(got))
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	// Declares a 10-byte body but only 3 bytes are buffered: must not consume.
	buf := []byte{0, 0, 0, 10, 1, 2, 3}
	frame, consumed, status := DecodeFrame(buf)
	require.Equal(t, Incomplete, status)
	require.Nil(t, frame)
	require.Equal(t, 0, consumed)
}

func TestDecodeFrameDone(t *testing.T) {
	body := []byte{9, 9, 9}
	buf := append([]byte{0, 0, 0, byte(len(body))}, body...)
	frame, consumed, status := DecodeFrame(buf)
	require.Equal(t, Done, status)
	require.Equal(t, body, frame)
	require.Equal(t, len(buf), consumed)
}
