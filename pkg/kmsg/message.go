package kmsg

import (
	"hash/crc32"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kbin"
)

// Compression identifies a MessageSet's codec, carried in the low 3 bits of
// a Message's attributes byte.
type Compression int8

const (
	CompressionNone   Compression = 0
	CompressionGzip   Compression = 1
	CompressionSnappy Compression = 2
	CompressionLZ4    Compression = 3
)

// Message is one record in the Kafka on-wire message-set representation.
// Version 0 omits Timestamp; version 1+ writes it. Offset is relative
// within an uncompressed request MessageSet (the broker assigns absolute
// offsets) and absolute once read back from a fetch response.
type Message struct {
	Offset      int64
	Version     int8 // magic byte: 0 or 1
	Compression Compression
	Timestamp   int64 // unix millis; ignored when Version == 0
	Key         []byte
	Value       []byte
}

// appendBody writes magic..value (everything CRC is computed over).
func (m Message) appendBody(w *kbin.Writer) {
	w.Int8(m.Version)
	w.Int8(int8(m.Compression))
	if m.Version >= 1 {
		w.Int64(m.Timestamp)
	}
	w.NullableBytes(m.Key)
	w.NullableBytes(m.Value)
}

// AppendTo writes one full message entry (offset, size, crc, body) to w, as
// it appears inside a MessageSet.
func (m Message) AppendTo(w *kbin.Writer) {
	w.Int64(m.Offset)

	var body kbin.Writer
	m.appendBody(&body)
	crc := crc32.ChecksumIEEE(body.Bytes())

	sizeAt := len(w.Bytes())
	w.Int32(0) // message_size placeholder, backfilled below
	bodyAt := len(w.Bytes())

	w.Int32(int32(crc))
	w.AppendTo(append(w.Bytes(), body.Bytes()...))

	out := w.Bytes()
	size := len(out) - bodyAt
	putInt32(out[sizeAt:sizeAt+4], int32(size))
}

func putInt32(b []byte, v int32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// ReadMessage reads one (offset, size, crc, body) entry from r. A CRC
// mismatch is a protocol error, per the core spec's decode contract.
func ReadMessage(r *kbin.Reader) (Message, error) {
	var m Message
	m.Offset = r.Int64()
	size := r.Int32()
	if r.Err() != nil {
		return m, r.Err()
	}
	if int(size) < 0 || len(r.Src) < int(size) {
		return m, ErrTruncatedMessage
	}
	body := r.Src[:size]
	r.Src = r.Src[size:]

	gotCRC := crc32.ChecksumIEEE(body[4:])
	wantCRC := int32(kbin.NewReader(body[:4]).Int32())
	if int32(gotCRC) != wantCRC {
		return m, ErrCRCMismatch
	}

	br := kbin.NewReader(body[4:])
	m.Version = br.Int8()
	m.Compression = Compression(br.Int8())
	if m.Version >= 1 {
		m.Timestamp = br.Int64()
	}
	m.Key = br.NullableBytes()
	m.Value = br.NullableBytes()
	if err := br.Complete(); err != nil {
		return m, err
	}
	return m, nil
}

// MessageSetBuilder accumulates messages for one ProducerBatch, tracking
// the cumulative on-wire size against a configured limit. It never
// compresses eagerly; Finish performs compression once, when the batch is
// sealed, since compressing incrementally would mean recompressing on
// every append.
type MessageSetBuilder struct {
	version     int8
	compression Compression
	writeLimit  int

	messages []Message
	size     int // running uncompressed on-wire estimate, offsets 0..n-1
}

// NewMessageSetBuilder creates a builder for one batch. apiVersion selects
// the message format (version 0 for Produce v0, version 1 for v1+, per the
// core spec's version policy).
func NewMessageSetBuilder(apiVersion int16, compression Compression, writeLimit int) *MessageSetBuilder {
	msgVersion := int8(0)
	if apiVersion >= 1 {
		msgVersion = 1
	}
	return &MessageSetBuilder{
		version:     msgVersion,
		compression: compression,
		writeLimit:  writeLimit,
	}
}

// messageSize returns the on-wire size of one message entry at the
// builder's message version, excluding its 4-byte crc field: offset +
// size prefix + magic..value. TryAppend adds the crc on top.
func messageSize(key, value []byte, version int8) int {
	body := 1 + 1 + 4 + 4 // magic + attrs + key len + value len
	if version >= 1 {
		body += 8
	}
	body += len(key) + len(value)
	return 8 + 4 + body // offset + size prefix; the crc is not included
}

// TryAppend attempts to add one record to the batch. It reports false,
// without mutating the builder, if the record would not fit within
// writeLimit — this is the "batch full" signal the accumulator relies on.
// The first record of an empty batch is always accepted, whatever its size.
func (b *MessageSetBuilder) TryAppend(key, value []byte, timestamp int64) bool {
	add := messageSize(key, value, b.version) + 4 // +4 for the crc field itself
	if len(b.messages) > 0 && b.size+add > b.writeLimit {
		return false
	}
	b.messages = append(b.messages, Message{
		Offset:      int64(len(b.messages)),
		Version:     b.version,
		Compression: CompressionNone, // per-message compression set at Finish, on the wrapper only
		Timestamp:   timestamp,
		Key:         key,
		Value:       value,
	})
	b.size += add
	return true
}

// Empty reports whether no record has been appended yet.
func (b *MessageSetBuilder) Empty() bool { return len(b.messages) == 0 }

// Len returns the number of records appended so far.
func (b *MessageSetBuilder) Len() int { return len(b.messages) }

// Finish renders the accumulated messages into their on-wire MessageSet
// form, compressing into a single wrapper message if a codec other than
// CompressionNone was configured. compressFn is supplied by the caller
// (the pkg/kgo compression wrappers) so this package stays codec-agnostic.
func (b *MessageSetBuilder) Finish(compressFn func(Compression, []byte) ([]byte, error)) ([]byte, error) {
	var inner kbin.Writer
	for _, m := range b.messages {
		m.AppendTo(&inner)
	}

	if b.compression == CompressionNone || compressFn == nil {
		return inner.Bytes(), nil
	}

	compressed, err := compressFn(b.compression, inner.Bytes())
	if err != nil {
		return nil, err
	}
	wrapper := Message{
		Offset:      int64(len(b.messages) - 1),
		Version:     b.version,
		Compression: b.compression,
		Value:       compressed,
	}
	var out kbin.Writer
	wrapper.AppendTo(&out)
	return out.Bytes(), nil
}
