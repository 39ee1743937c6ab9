package kgo

import (
	"bytes"
	"io"

	"github.com/ThisisGurwinder/tokio-kafka/pkg/kmsg"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
)

// compress wraps raw in the codec named by c, implementing the
// MessageSetBuilder.Finish compressFn hook.
func compress(c kmsg.Compression, raw []byte) ([]byte, error) {
	switch c {
	case kmsg.CompressionNone:
		return raw, nil
	case kmsg.CompressionGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case kmsg.CompressionSnappy:
		return snappy.Encode(nil, raw), nil
	case kmsg.CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, &unsupportedCompressionError{c}
	}
}

// decompress reverses compress.
func decompress(c kmsg.Compression, raw []byte) ([]byte, error) {
	switch c {
	case kmsg.CompressionNone:
		return raw, nil
	case kmsg.CompressionGzip:
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case kmsg.CompressionSnappy:
		return snappy.Decode(nil, raw)
	case kmsg.CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(raw))
		return io.ReadAll(r)
	default:
		return nil, &unsupportedCompressionError{c}
	}
}

type unsupportedCompressionError struct{ codec kmsg.Compression }

func (e *unsupportedCompressionError) Error() string {
	return "kgo: unsupported compression codec"
}
