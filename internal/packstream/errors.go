package packstream

import (
	"fmt"
	"reflect"
)

// ProtocolError is raised whenever the decoder encounters bytes that do not
// form a legal PackStream value: an unknown marker, a truncated buffer, or
// a string that is not valid UTF-8.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("packstream protocol error: %s", e.Msg)
}

// EncodingError is raised when the encoder is asked to write a value outside
// the PackStream universe: a non-string map key, an integer outside the
// signed 64-bit range, or a value of an unsupported Go type.
type EncodingError struct {
	Msg string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("packstream encoding error: %s", e.Msg)
}

// UsageError marks a programmer error in how the encoder or decoder is
// driven. Nothing in this package returns it; a struct with more fields
// than its header can encode is reported as an EncodingError.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("packstream usage error: %s", e.Msg)
}

func unsupportedType(x interface{}) error {
	return &EncodingError{Msg: fmt.Sprintf("cannot encode value of type %s", reflect.TypeOf(x))}
}
