// Package kbin implements the big-endian primitive encoding the Kafka wire
// protocol uses: fixed-width ints, i16-length-prefixed strings, and
// i32-length-prefixed byte arrays and element arrays.
package kbin

import (
	"encoding/binary"
	"errors"
)

// ErrNotEnoughData is returned by any Reader method that would need to read
// past the end of the source slice.
var ErrNotEnoughData = errors.New("kbin: not enough data to decode")

// Writer appends primitives to an internal byte slice using the Kafka wire
// encoding. The zero value is ready to use.
type Writer struct {
	buf []byte
}

// AppendTo seeds the writer with an existing buffer to append onto.
func (w *Writer) AppendTo(buf []byte) { w.buf = buf }

// Bytes returns the writer's accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Int8(v int8) { w.buf = append(w.buf, byte(v)) }

func (w *Writer) Int16(v int16) {
	w.buf = append(w.buf, 0, 0)
	binary.BigEndian.PutUint16(w.buf[len(w.buf)-2:], uint16(v))
}

func (w *Writer) Int32(v int32) {
	w.buf = append(w.buf, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(w.buf[len(w.buf)-4:], uint32(v))
}

func (w *Writer) Int64(v int64) {
	w.buf = append(w.buf, 0, 0, 0, 0, 0, 0, 0, 0)
	binary.BigEndian.PutUint64(w.buf[len(w.buf)-8:], uint64(v))
}

// String writes a non-nullable i16-length-prefixed UTF-8 string.
func (w *Writer) String(s string) {
	w.Int16(int16(len(s)))
	w.buf = append(w.buf, s...)
}

// NullableString writes an i16-length-prefixed string, using length -1 for nil.
func (w *Writer) NullableString(s *string) {
	if s == nil {
		w.Int16(-1)
		return
	}
	w.String(*s)
}

// Bytes writes a non-nullable i32-length-prefixed byte array.
func (w *Writer) Bytes(b []byte) {
	w.Int32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// NullableBytes writes an i32-length-prefixed byte array, using length -1 for nil.
func (w *Writer) NullableBytes(b []byte) {
	if b == nil {
		w.Int32(-1)
		return
	}
	w.Bytes(b)
}

// ArrayLen writes the i32 element count prefixing a Kafka array. n<0 encodes
// a null array.
func (w *Writer) ArrayLen(n int) { w.Int32(int32(n)) }

// Reader consumes primitives from a byte slice using the Kafka wire encoding.
// Every method that would read out of bounds sets a sticky error and returns
// the zero value; callers should check Complete (or Err) once after a batch
// of reads rather than after every individual call.
type Reader struct {
	Src []byte
	err error
}

func NewReader(src []byte) *Reader { return &Reader{Src: src} }

// Err returns the first error encountered, if any.
func (r *Reader) Err() error { return r.err }

// Complete returns a non-nil error if there is unconsumed trailing data or a
// prior read failed.
func (r *Reader) Complete() error {
	if r.err != nil {
		return r.err
	}
	if len(r.Src) > 0 {
		return errors.New("kbin: unexpected trailing data")
	}
	return nil
}

func (r *Reader) fail() {
	if r.err == nil {
		r.err = ErrNotEnoughData
	}
	r.Src = nil
}

func (r *Reader) Int8() int8 {
	if r.err != nil || len(r.Src) < 1 {
		r.fail()
		return 0
	}
	v := int8(r.Src[0])
	r.Src = r.Src[1:]
	return v
}

func (r *Reader) Int16() int16 {
	if r.err != nil || len(r.Src) < 2 {
		r.fail()
		return 0
	}
	v := int16(binary.BigEndian.Uint16(r.Src))
	r.Src = r.Src[2:]
	return v
}

func (r *Reader) Int32() int32 {
	if r.err != nil || len(r.Src) < 4 {
		r.fail()
		return 0
	}
	v := int32(binary.BigEndian.Uint32(r.Src))
	r.Src = r.Src[4:]
	return v
}

func (r *Reader) Int64() int64 {
	if r.err != nil || len(r.Src) < 8 {
		r.fail()
		return 0
	}
	v := int64(binary.BigEndian.Uint64(r.Src))
	r.Src = r.Src[8:]
	return v
}

// NullableString reads an i16-length-prefixed string; length -1 yields nil.
func (r *Reader) NullableString() *string {
	n := r.Int16()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	if len(r.Src) < int(n) {
		r.fail()
		return nil
	}
	s := string(r.Src[:n])
	r.Src = r.Src[n:]
	return &s
}

// String reads an i16-length-prefixed string, treating a null as empty.
func (r *Reader) String() string {
	s := r.NullableString()
	if s == nil {
		return ""
	}
	return *s
}

// NullableBytes reads an i32-length-prefixed byte array; length -1 yields nil.
func (r *Reader) NullableBytes() []byte {
	n := r.Int32()
	if r.err != nil {
		return nil
	}
	if n < 0 {
		return nil
	}
	if len(r.Src) < int(n) {
		r.fail()
		return nil
	}
	b := make([]byte, n)
	copy(b, r.Src[:n])
	r.Src = r.Src[n:]
	return b
}

// ArrayLen reads the i32 element count prefixing a Kafka array. A negative
// count (null array) is returned as read, without normalizing it.
func (r *Reader) ArrayLen() int32 {
	n := r.Int32()
	if r.err != nil {
		return 0
	}
	return n
}
