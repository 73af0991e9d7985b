package packstream

// StructTag identifies the kind of a PackStream struct: a Bolt message
// signature (RUN, SUCCESS, ...) or a well-known temporal/spatial type.
type StructTag byte

// Struct is a tagged, fixed-arity sequence of values. It is the PackStream
// representation of both Bolt messages and the driver's graph/temporal
// value types.
type Struct struct {
	Tag    StructTag
	Fields []interface{}
}

// Dehydrate converts an application value that the encoder does not know
// natively (a Node, a temporal value, a request message) into a Struct.
// Returning a nil Struct and nil error encodes the value as PackStream Null.
type Dehydrate func(x interface{}) (*Struct, error)

// HydratorFactory is consulted by the decoder whenever it encounters a
// struct marker. It returns a Hydrator that accumulates the struct's
// fields one at a time, in the exact order the decoder reads them.
type HydratorFactory interface {
	Hydrator(tag StructTag, numFields int) (Hydrator, error)
}

// Hydrator accumulates the fields of one struct as they are decoded and
// produces the final application value.
type Hydrator interface {
	HydrateField(field interface{}) error
	HydrationComplete() (interface{}, error)
}

func noHydration(_ StructTag, _ int) (Hydrator, error) {
	return nil, &ProtocolError{Msg: "no hydrator factory configured"}
}
