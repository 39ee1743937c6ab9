package kgo

import (
	"context"
	"encoding/binary"
	"net"
	"sync/atomic"
	"testing"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"
	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
)

// fakeRequest is one decoded request frame handed to a fake broker's
// handler, everything past the correlation id the client's Conn assigns.
type fakeRequest struct {
	apiKey  int16
	version int16
	corrID  int32
	body    []byte
}

func decodeFakeRequest(frame []byte) fakeRequest {
	r := kbin.NewReader(frame)
	apiKey := r.Int16()
	version := r.Int16()
	corrID := r.Int32()
	_ = r.NullableString() // client id, unused by the fake broker
	return fakeRequest{apiKey: apiKey, version: version, corrID: corrID, body: r.Src}
}

func frameResponse(corrID int32, body []byte) []byte {
	payload := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(payload[:4], uint32(corrID))
	copy(payload[4:], body)
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// defaultApiVersionsBody answers an ApiVersions probe with every api key
// this client knows at its newest version, so connections dialed against
// a fake broker negotiate versions without special-casing in every test.
func defaultApiVersionsBody() []byte {
	resp := &kmsg.ApiVersionsResponse{ApiKeys: []kmsg.ApiVersionWindow{
		{ApiKey: kmsg.KeyProduce, MinVersion: 0, MaxVersion: 2},
		{ApiKey: kmsg.KeyMetadata, MinVersion: 0, MaxVersion: 0},
		{ApiKey: kmsg.KeyApiVersions, MinVersion: 0, MaxVersion: 0},
		{ApiKey: kmsg.KeyListOffsets, MinVersion: 0, MaxVersion: 1},
	}}
	var w kbin.Writer
	resp.AppendTo(&w)
	return w.Bytes()
}

// serveFakeBroker runs a minimal broker over conn: it answers ApiVersions
// itself and forwards every other request to handle, writing back
// whatever response body handle returns. It runs until conn is closed.
func serveFakeBroker(t *testing.T, conn net.Conn, handle func(fakeRequest) []byte) {
	t.Helper()
	go func() {
		var carry []byte
		buf := make([]byte, 8192)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				carry = append(carry, buf[:n]...)
				for {
					frame, consumed, status := kmsg.DecodeFrame(carry)
					if status == kmsg.Incomplete {
						break
					}
					if status == kmsg.Error {
						return
					}
					carry = carry[consumed:]
					req := decodeFakeRequest(frame)

					var respBody []byte
					if req.apiKey == kmsg.KeyApiVersions {
						respBody = defaultApiVersionsBody()
					} else {
						respBody = handle(req)
					}
					if _, werr := conn.Write(frameResponse(req.corrID, respBody)); werr != nil {
						return
					}
				}
			}
			if err != nil {
				return
			}
		}
	}()
}

// pipeDialer returns a DialFunc that, on every dial, connects a fresh
// net.Pipe to a freshly spawned fake broker that forwards each request to
// handle. handle receives the dialed address alongside the request, so
// tests can tell which broker a request was sent to.
func pipeDialer(t *testing.T, handle func(addr string, req fakeRequest) []byte) DialFunc {
	var dials atomic.Int32
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		dials.Add(1)
		client, server := net.Pipe()
		serveFakeBroker(t, server, func(req fakeRequest) []byte { return handle(addr, req) })
		return client, nil
	}
}
