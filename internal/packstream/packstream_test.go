package packstream

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func encode(t *testing.T, x interface{}) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := NewEncoder(buf, nil).Encode(x); err != nil {
		t.Fatalf("encode(%v): %v", x, err)
	}
	return buf.Bytes()
}

func decode(t *testing.T, b []byte) interface{} {
	t.Helper()
	v, err := NewDecoder(b, nil).Decode()
	if err != nil {
		t.Fatalf("decode(%x): %v", b, err)
	}
	return v
}

func TestEncodeMinimumSizeIntegers(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "00"},
		{127, "7f"},
		{-16, "f0"},
		{-17, "c8ef"},
		{200, "c900c8"},
		{-129, "c9ff7f"},
		{40000, "ca00009c40"},
		{9000000000, "cb0000000218711a00"},
	}
	for _, c := range cases {
		got := hex.EncodeToString(encode(t, c.in))
		if got != c.want {
			t.Errorf("encode(%d) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestEncodeMinimumSizeStrings(t *testing.T) {
	s15 := string(make([]byte, 15))
	s16 := string(make([]byte, 16))

	b15 := encode(t, s15)
	if b15[0] != 0x8f {
		t.Errorf("length-15 string should use TINY_STRING marker, got %#x", b15[0])
	}
	b16 := encode(t, s16)
	if b16[0] != 0xd0 {
		t.Errorf("length-16 string should use STRING_8 marker, got %#x", b16[0])
	}
}

func TestRoundTripPrimitives(t *testing.T) {
	cases := []interface{}{
		nil, true, false, int64(0), int64(-16), int64(127), int64(-17),
		int64(200), int64(-40000), 3.14159, "", "tiny", string(make([]byte, 300)),
	}
	for _, c := range cases {
		got := decode(t, encode(t, c))
		if got == nil && c == nil {
			continue
		}
		if got != c {
			t.Errorf("round trip of %#v produced %#v", c, got)
		}
	}
}

func TestRoundTripListOrderPreserved(t *testing.T) {
	in := []interface{}{int64(1), "two", int64(3), "four"}
	out := decode(t, encode(t, in)).([]interface{})
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("index %d: got %#v want %#v", i, out[i], in[i])
		}
	}
}

func TestRoundTripMapKeySet(t *testing.T) {
	in := map[string]interface{}{"a": int64(1), "b": "two", "c": true}
	out := decode(t, encode(t, in)).(map[string]interface{})
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(out), len(in))
	}
	for k, v := range in {
		if out[k] != v {
			t.Errorf("key %q: got %#v want %#v", k, out[k], v)
		}
	}
}

func TestEncodeRejectsNonStringMapKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	err := NewEncoder(buf, nil).Encode(map[int]string{1: "a"})
	if err == nil {
		t.Fatal("expected EncodingError for non-string map key")
	}
	if _, ok := err.(*EncodingError); !ok {
		t.Fatalf("expected *EncodingError, got %T", err)
	}
}

func TestEncodeRejectsUnsupportedType(t *testing.T) {
	buf := &bytes.Buffer{}
	err := NewEncoder(buf, nil).Encode(make(chan int))
	if _, ok := err.(*EncodingError); !ok {
		t.Fatalf("expected *EncodingError, got %T (%v)", err, err)
	}
}

func TestDecodeUnknownMarkerIsProtocolError(t *testing.T) {
	_, err := NewDecoder([]byte{0xc5}, nil).Decode()
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected *ProtocolError, got %T (%v)", err, err)
	}
}

func TestDecodeTruncatedInputIsProtocolErrorNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("decode panicked on truncated input: %v", r)
		}
	}()
	_, err := NewDecoder([]byte{0xd0, 0x05, 'h', 'i'}, nil).Decode()
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected *ProtocolError, got %T (%v)", err, err)
	}
}

func TestPeekMarkerDoesNotAdvance(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02}, nil)
	m1, err := d.PeekMarker()
	if err != nil {
		t.Fatal(err)
	}
	m2, err := d.PeekMarker()
	if err != nil {
		t.Fatal(err)
	}
	if m1 != m2 || m1 != 0x01 {
		t.Fatalf("peek should be idempotent, got %#x then %#x", m1, m2)
	}
	v, err := d.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(1) {
		t.Fatalf("decode after peek should still read the peeked value, got %v", v)
	}
}

type testHydrator struct {
	tag    StructTag
	fields []interface{}
}

func (h *testHydrator) HydrateField(field interface{}) error {
	h.fields = append(h.fields, field)
	return nil
}

func (h *testHydrator) HydrationComplete() (interface{}, error) {
	return &Struct{Tag: h.tag, Fields: h.fields}, nil
}

type testFactory struct{}

func (testFactory) Hydrator(tag StructTag, numFields int) (Hydrator, error) {
	return &testHydrator{tag: tag, fields: make([]interface{}, 0, numFields)}, nil
}

func TestStructRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}
	in := &Struct{Tag: 0x7f, Fields: []interface{}{int64(1), "x"}}
	if err := NewEncoder(buf, nil).Encode(in); err != nil {
		t.Fatal(err)
	}
	out, err := NewDecoder(buf.Bytes(), testFactory{}).Decode()
	if err != nil {
		t.Fatal(err)
	}
	s := out.(*Struct)
	if s.Tag != in.Tag || len(s.Fields) != 2 || s.Fields[0] != int64(1) || s.Fields[1] != "x" {
		t.Fatalf("struct round trip mismatch: %#v", s)
	}
}

func TestEncodeTooManyStructFieldsIsProgrammerError(t *testing.T) {
	buf := &bytes.Buffer{}
	fields := make([]interface{}, 16)
	err := NewEncoder(buf, nil).Encode(&Struct{Tag: 1, Fields: fields})
	if _, ok := err.(*EncodingError); !ok {
		t.Fatalf("expected *EncodingError for oversized struct, got %T", err)
	}
}
