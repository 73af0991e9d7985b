package packstream

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Decoder is a single-pass reader over a contiguous byte span. Strings
// decoded from it are copied out of the span; byte arrays borrow the
// underlying slice, so callers that need to retain one beyond the lifetime
// of the buffer must copy it.
type Decoder struct {
	buf []byte
	pos int
	hf  HydratorFactory
}

// NewDecoder wraps buf. hf is consulted whenever a struct marker is
// encountered; pass nil if the input is known not to contain structs.
func NewDecoder(buf []byte, hf HydratorFactory) *Decoder {
	if hf == nil {
		hf = hydratorFactoryFunc(noHydration)
	}
	return &Decoder{buf: buf, hf: hf}
}

type hydratorFactoryFunc func(tag StructTag, numFields int) (Hydrator, error)

func (f hydratorFactoryFunc) Hydrator(tag StructTag, numFields int) (Hydrator, error) {
	return f(tag, numFields)
}

func (d *Decoder) errTruncated() error {
	return &ProtocolError{Msg: "unexpected end of input"}
}

// PeekMarker returns the next marker byte without advancing the read
// position. It is an error to call it at end of input.
func (d *Decoder) PeekMarker() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, d.errTruncated()
	}
	return d.buf[d.pos], nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, d.errTruncated()
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) takeByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) takeString(n int) (string, error) {
	b, err := d.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &ProtocolError{Msg: "string is not valid UTF-8"}
	}
	return string(b), nil
}

// Decode reads the next complete value from the stream: a primitive, a
// []interface{}, a map[string]interface{}, or whatever a struct's
// Hydrator produces.
func (d *Decoder) Decode() (interface{}, error) {
	marker, err := d.takeByte()
	if err != nil {
		return nil, err
	}
	switch {
	case marker < 0x80:
		return int64(marker), nil
	case marker >= 0xf0:
		return int64(int8(marker)), nil
	case marker >= 0x80 && marker <= 0x8f:
		return d.takeString(int(marker - 0x80))
	case marker >= 0x90 && marker <= 0x9f:
		return d.readList(int(marker - 0x90))
	case marker >= 0xa0 && marker <= 0xaf:
		return d.readMap(int(marker - 0xa0))
	case marker >= 0xb0 && marker <= 0xbf:
		return d.readStruct(int(marker - 0xb0))
	}

	switch marker {
	case 0xc0:
		return nil, nil
	case 0xc1:
		bits, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case 0xc2:
		return false, nil
	case 0xc3:
		return true, nil
	case 0xc8:
		b, err := d.takeByte()
		if err != nil {
			return nil, err
		}
		return int64(int8(b)), nil
	case 0xc9:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return int64(int16(n)), nil
	case 0xca:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return int64(int32(n)), nil
	case 0xcb:
		n, err := d.readUint64()
		if err != nil {
			return nil, err
		}
		return int64(n), nil
	case 0xcc:
		b, err := d.takeByte()
		if err != nil {
			return nil, err
		}
		return d.take(int(b))
	case 0xcd:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.take(int(n))
	case 0xce:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.take(int(n))
	case 0xd0:
		n, err := d.takeByte()
		if err != nil {
			return nil, err
		}
		return d.takeString(int(n))
	case 0xd1:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.takeString(int(n))
	case 0xd2:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.takeString(int(n))
	case 0xd4:
		n, err := d.takeByte()
		if err != nil {
			return nil, err
		}
		return d.readList(int(n))
	case 0xd5:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.readList(int(n))
	case 0xd6:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.readList(int(n))
	case 0xd8:
		n, err := d.takeByte()
		if err != nil {
			return nil, err
		}
		return d.readMap(int(n))
	case 0xd9:
		n, err := d.readUint16()
		if err != nil {
			return nil, err
		}
		return d.readMap(int(n))
	case 0xda:
		n, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		return d.readMap(int(n))
	}

	return nil, &ProtocolError{Msg: "unknown marker byte"}
}

func (d *Decoder) readUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) readUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) readUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *Decoder) readList(n int) ([]interface{}, error) {
	out := make([]interface{}, n)
	for i := range out {
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (d *Decoder) readMap(n int) (map[string]interface{}, error) {
	out := make(map[string]interface{}, n)
	for i := 0; i < n; i++ {
		k, err := d.Decode()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, &ProtocolError{Msg: "map key is not a string"}
		}
		v, err := d.Decode()
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// readStruct reads a struct's one-byte tag followed by numFields values,
// delegating accumulation to the Hydrator the configured HydratorFactory
// returns for that tag.
func (d *Decoder) readStruct(numFields int) (interface{}, error) {
	tagByte, err := d.takeByte()
	if err != nil {
		return nil, err
	}
	tag := StructTag(tagByte)

	hydrator, err := d.hf.Hydrator(tag, numFields)
	if err != nil {
		return nil, err
	}
	for i := 0; i < numFields; i++ {
		field, err := d.Decode()
		if err != nil {
			return nil, err
		}
		if err := hydrator.HydrateField(field); err != nil {
			return nil, err
		}
	}
	return hydrator.HydrationComplete()
}

// Remaining reports how many bytes are still unread.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }
