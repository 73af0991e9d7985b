package packstream

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"
)

// Encoder writes PackStream-encoded values to an underlying io.Writer,
// always choosing the smallest legal marker for the value being written.
type Encoder struct {
	wr        io.Writer
	dehydrate Dehydrate
}

// NewEncoder returns an Encoder. dehydrate is consulted for any value whose
// Go type the encoder does not know about natively; pass nil to reject such
// values with an EncodingError.
func NewEncoder(wr io.Writer, dehydrate Dehydrate) *Encoder {
	if dehydrate == nil {
		dehydrate = func(x interface{}) (*Struct, error) { return nil, unsupportedType(x) }
	}
	return &Encoder{wr: wr, dehydrate: dehydrate}
}

// EncodeStruct is a convenience wrapper for callers that build a message
// from a tag and field list rather than a *Struct value.
func (e *Encoder) EncodeStruct(tag StructTag, fields ...interface{}) error {
	return e.Encode(&Struct{Tag: tag, Fields: fields})
}

func (e *Encoder) write(buf []byte) error {
	_, err := e.wr.Write(buf)
	return err
}

func (e *Encoder) writeStructHeader(tag StructTag, numFields int) error {
	if numFields > 0x0f {
		return &EncodingError{Msg: "struct has too many fields to encode"}
	}
	return e.write([]byte{0xb0 + byte(numFields), byte(tag)})
}

func (e *Encoder) writeStruct(s *Struct) error {
	if err := e.writeStructHeader(s.Tag, len(s.Fields)); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if err := e.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeInt(i int64) error {
	switch {
	case -0x10 <= i && i < 0x80:
		return e.write([]byte{byte(i)})
	case -0x80 <= i && i < -0x10:
		return e.write([]byte{0xc8, byte(i)})
	case -0x8000 <= i && i < 0x8000:
		buf := [3]byte{0xc9}
		binary.BigEndian.PutUint16(buf[1:], uint16(i))
		return e.write(buf[:])
	case -0x80000000 <= i && i < 0x80000000:
		buf := [5]byte{0xca}
		binary.BigEndian.PutUint32(buf[1:], uint32(i))
		return e.write(buf[:])
	default:
		buf := [9]byte{0xcb}
		binary.BigEndian.PutUint64(buf[1:], uint64(i))
		return e.write(buf[:])
	}
}

func (e *Encoder) writeFloat(f float64) error {
	buf := [9]byte{0xc1}
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	return e.write(buf[:])
}

// writeSizedHeader writes a length-prefixed header using the tiny marker
// when l < 0x10 and otherwise the smallest 8/16/32-bit length marker,
// offset from the three marker families (string/list/map).
func (e *Encoder) writeSizedHeader(l int, tinyBase, sizedBase byte) error {
	switch {
	case l < 0x10:
		return e.write([]byte{tinyBase + byte(l)})
	case l < 0x100:
		return e.write([]byte{sizedBase, byte(l)})
	case l < 0x10000:
		buf := [3]byte{sizedBase + 1}
		binary.BigEndian.PutUint16(buf[1:], uint16(l))
		return e.write(buf[:])
	case l <= math.MaxUint32:
		buf := [5]byte{sizedBase + 2}
		binary.BigEndian.PutUint32(buf[1:], uint32(l))
		return e.write(buf[:])
	default:
		return &EncodingError{Msg: "value too large to encode"}
	}
}

func (e *Encoder) writeString(s string) error {
	if err := e.writeSizedHeader(len(s), 0x80, 0xd0); err != nil {
		return err
	}
	return e.write([]byte(s))
}

func (e *Encoder) writeListHeader(l int) error { return e.writeSizedHeader(l, 0x90, 0xd4) }
func (e *Encoder) writeMapHeader(l int) error  { return e.writeSizedHeader(l, 0xa0, 0xd8) }

func (e *Encoder) writeBytes(b []byte) error {
	l := len(b)
	switch {
	case l < 0x100:
		if err := e.write([]byte{0xcc, byte(l)}); err != nil {
			return err
		}
	case l < 0x10000:
		buf := [3]byte{0xcd}
		binary.BigEndian.PutUint16(buf[1:], uint16(l))
		if err := e.write(buf[:]); err != nil {
			return err
		}
	case l <= math.MaxUint32:
		buf := [5]byte{0xce}
		binary.BigEndian.PutUint32(buf[1:], uint32(l))
		if err := e.write(buf[:]); err != nil {
			return err
		}
	default:
		return &EncodingError{Msg: "byte blob too large to encode"}
	}
	return e.write(b)
}

func (e *Encoder) writeBool(b bool) error {
	if b {
		return e.write([]byte{0xc3})
	}
	return e.write([]byte{0xc2})
}

func (e *Encoder) writeNil() error { return e.write([]byte{0xc0}) }

func (e *Encoder) writeList(x interface{}) error {
	switch v := x.(type) {
	case []byte:
		return e.writeBytes(v)
	case []interface{}:
		if err := e.writeListHeader(len(v)); err != nil {
			return err
		}
		for _, item := range v {
			if err := e.Encode(item); err != nil {
				return err
			}
		}
		return nil
	case []string:
		if err := e.writeListHeader(len(v)); err != nil {
			return err
		}
		for _, item := range v {
			if err := e.writeString(item); err != nil {
				return err
			}
		}
		return nil
	default:
		rv := reflect.ValueOf(x)
		n := rv.Len()
		if err := e.writeListHeader(n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := e.Encode(rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
}

func (e *Encoder) writeMap(x interface{}) error {
	switch v := x.(type) {
	case map[string]interface{}:
		if err := e.writeMapHeader(len(v)); err != nil {
			return err
		}
		for k, val := range v {
			if err := e.writeString(k); err != nil {
				return err
			}
			if err := e.Encode(val); err != nil {
				return err
			}
		}
		return nil
	case map[string]string:
		if err := e.writeMapHeader(len(v)); err != nil {
			return err
		}
		for k, val := range v {
			if err := e.writeString(k); err != nil {
				return err
			}
			if err := e.writeString(val); err != nil {
				return err
			}
		}
		return nil
	default:
		rv := reflect.ValueOf(x)
		if rv.Kind() != reflect.Map {
			return unsupportedType(x)
		}
		keys := rv.MapKeys()
		if err := e.writeMapHeader(len(keys)); err != nil {
			return err
		}
		for _, k := range keys {
			if k.Kind() != reflect.String {
				return &EncodingError{Msg: "map keys must be strings"}
			}
			if err := e.writeString(k.String()); err != nil {
				return err
			}
			if err := e.Encode(rv.MapIndex(k).Interface()); err != nil {
				return err
			}
		}
		return nil
	}
}

func checkIntOverflow(u uint64) error {
	if u > math.MaxInt64 {
		return &EncodingError{Msg: "unsigned integer does not fit in a signed 64-bit PackStream int"}
	}
	return nil
}

// Encode writes x using the minimum-size legal encoding for its runtime
// type. Maps with non-string keys and integers outside [-2^63, 2^63-1]
// fail with EncodingError.
func (e *Encoder) Encode(x interface{}) error {
	if x == nil {
		return e.writeNil()
	}
	if s, ok := x.(*Struct); ok {
		return e.writeStruct(s)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Bool:
		return e.writeBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return e.writeInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if err := checkIntOverflow(u); err != nil {
			return err
		}
		return e.writeInt(int64(u))
	case reflect.Float32, reflect.Float64:
		return e.writeFloat(rv.Float())
	case reflect.String:
		return e.writeString(rv.String())
	case reflect.Slice, reflect.Array:
		return e.writeList(x)
	case reflect.Map:
		return e.writeMap(x)
	case reflect.Ptr:
		if rv.IsNil() {
			return e.writeNil()
		}
		return e.tryDehydrate(x)
	case reflect.Struct:
		return e.tryDehydrate(x)
	}
	return unsupportedType(x)
}

func (e *Encoder) tryDehydrate(x interface{}) error {
	s, err := e.dehydrate(x)
	if err != nil {
		return err
	}
	if s == nil {
		return e.writeNil()
	}
	return e.writeStruct(s)
}
