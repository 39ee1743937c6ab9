package kbin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringRoundTrip(t *testing.T) {
	var w Writer
	w.String("hello")
	w.NullableString(nil)
	name := "topic"
	w.NullableString(&name)

	r := NewReader(w.Bytes())
	require.Equal(t, "hello", r.String())
	require.Nil(t, r.NullableString())
	require.Equal(t, &name, r.NullableString())
	require.NoError(t, r.Complete())
}

func TestBytesRoundTrip(t *testing.T) {
	var w Writer
	w.Bytes([]byte{1, 2, 3})
	w.NullableBytes(nil)

	r := NewReader(w.Bytes())
	require.Equal(t, []byte{1, 2, 3}, r.NullableBytes())
	require.Nil(t, r.NullableBytes())
	require.NoError(t, r.Complete())
}

func TestReaderNotEnoughData(t *testing.T) {
	r := NewReader([]byte{0, 1})
	r.Int32()
	require.ErrorIs(t, r.Err(), ErrNotEnoughData)
}
