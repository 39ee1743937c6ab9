package kgo

// Serializer converts a caller-supplied value into wire bytes for a
// record's key or value. Most callers pass []byte directly and never need
// more than ByteSerializer, but the hook exists for callers that want to
// serialize structured values without a pre-marshal step of their own.
type Serializer interface {
	Serialize(topic string, v interface{}) ([]byte, error)
}

// ByteSerializer passes []byte and nil through unchanged; everything else
// is an error.
type ByteSerializer struct{}

func (ByteSerializer) Serialize(_ string, v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, &serializeTypeError{v}
	}
	return b, nil
}

type serializeTypeError struct{ v interface{} }

func (e *serializeTypeError) Error() string {
	return "kgo: ByteSerializer cannot serialize non-[]byte value"
}
