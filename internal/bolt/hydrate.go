package bolt

import (
	"fmt"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/packstream"
	"github.com/corvid-graph/bolt-go-driver/internal/respqueue"
)

// hydratorFactory implements packstream.HydratorFactory: every struct
// collects its fields into a slice via a generic collector, then hydrate
// dispatches on tag once every field has arrived.
type hydratorFactory struct{}

func (hydratorFactory) Hydrator(tag packstream.StructTag, numFields int) (packstream.Hydrator, error) {
	return &collector{tag: tag, fields: make([]interface{}, 0, numFields)}, nil
}

type collector struct {
	tag    packstream.StructTag
	fields []interface{}
}

func (c *collector) HydrateField(field interface{}) error {
	c.fields = append(c.fields, field)
	return nil
}

func (c *collector) HydrationComplete() (interface{}, error) {
	return hydrate(c.tag, c.fields)
}

func hydrate(tag packstream.StructTag, f []interface{}) (interface{}, error) {
	switch tag {
	case msgSuccess:
		return hydrateSuccess(f)
	case msgRecord:
		return hydrateRecord(f)
	case msgIgnored:
		return &respqueue.Ignored{}, nil
	case msgFailure:
		return hydrateFailure(f)
	case tagNode:
		return hydrateNode(f)
	case tagRelationship:
		return hydrateRelationship(f)
	case tagUnboundRelationship:
		return hydrateUnboundRelationship(f)
	case tagPath:
		return hydratePath(f)
	case tagPoint2D:
		return hydratePoint2D(f)
	case tagPoint3D:
		return hydratePoint3D(f)
	case tagDateTimeOffset:
		return hydrateDateTimeOffset(f)
	case tagDateTimeNamedZone:
		return hydrateDateTimeNamedZone(f)
	case tagLocalDateTime:
		return hydrateLocalDateTime(f)
	case tagDate:
		return hydrateDate(f)
	case tagTime:
		return hydrateTime(f)
	case tagLocalTime:
		return hydrateLocalTime(f)
	case tagDuration:
		return hydrateDuration(f)
	default:
		return nil, &dbtype.ProtocolError{Err: fmt.Sprintf("unknown struct tag 0x%02x", byte(tag))}
	}
}

func hydrationError(what string) error {
	return &dbtype.ProtocolError{MessageType: what, Err: "field count or type mismatch"}
}

func hydrateSuccess(f []interface{}) (interface{}, error) {
	if len(f) != 1 {
		return nil, hydrationError("SUCCESS")
	}
	meta, ok := f[0].(map[string]interface{})
	if !ok {
		return nil, hydrationError("SUCCESS")
	}
	return &respqueue.Success{Meta: meta}, nil
}

func hydrateRecord(f []interface{}) (interface{}, error) {
	if len(f) != 1 {
		return nil, hydrationError("RECORD")
	}
	values, ok := f[0].([]interface{})
	if !ok {
		return nil, hydrationError("RECORD")
	}
	return &respqueue.Record{Values: values}, nil
}

func hydrateFailure(f []interface{}) (interface{}, error) {
	if len(f) != 1 {
		return nil, hydrationError("FAILURE")
	}
	m, ok := f[0].(map[string]interface{})
	if !ok {
		return nil, hydrationError("FAILURE")
	}
	code, _ := m["code"].(string)
	msg, _ := m["message"].(string)
	return &dbtype.Neo4jError{Code: code, Msg: msg, Meta: m}, nil
}

func hydrateNode(f []interface{}) (interface{}, error) {
	if len(f) < 3 {
		return nil, hydrationError("Node")
	}
	id, idok := f[0].(int64)
	labelsRaw, lok := f[1].([]interface{})
	props, pok := f[2].(map[string]interface{})
	if !idok || !lok || !pok {
		return nil, hydrationError("Node")
	}
	labels := make([]string, len(labelsRaw))
	for i, l := range labelsRaw {
		s, ok := l.(string)
		if !ok {
			return nil, hydrationError("Node")
		}
		labels[i] = s
	}
	n := &dbtype.Node{Id: id, Labels: labels, Props: props}
	if len(f) >= 4 {
		n.ElementId, _ = f[3].(string)
	}
	return n, nil
}

func hydrateRelationship(f []interface{}) (interface{}, error) {
	if len(f) < 5 {
		return nil, hydrationError("Relationship")
	}
	id, idok := f[0].(int64)
	startId, sok := f[1].(int64)
	endId, eok := f[2].(int64)
	relType, tok := f[3].(string)
	props, pok := f[4].(map[string]interface{})
	if !idok || !sok || !eok || !tok || !pok {
		return nil, hydrationError("Relationship")
	}
	r := &dbtype.Relationship{Id: id, StartId: startId, EndId: endId, Type: relType, Props: props}
	if len(f) >= 8 {
		r.ElementId, _ = f[5].(string)
		r.StartElementId, _ = f[6].(string)
		r.EndElementId, _ = f[7].(string)
	}
	return r, nil
}

func hydrateUnboundRelationship(f []interface{}) (interface{}, error) {
	if len(f) < 3 {
		return nil, hydrationError("UnboundRelationship")
	}
	id, idok := f[0].(int64)
	relType, tok := f[1].(string)
	props, pok := f[2].(map[string]interface{})
	if !idok || !tok || !pok {
		return nil, hydrationError("UnboundRelationship")
	}
	u := &dbtype.UnboundRelationship{Id: id, Type: relType, Props: props}
	if len(f) >= 4 {
		u.ElementId, _ = f[3].(string)
	}
	return u, nil
}

func hydratePath(f []interface{}) (interface{}, error) {
	if len(f) != 3 {
		return nil, hydrationError("Path")
	}
	nodesRaw, nok := f[0].([]interface{})
	relsRaw, rok := f[1].([]interface{})
	idxRaw, iok := f[2].([]interface{})
	if !nok || !rok || !iok {
		return nil, hydrationError("Path")
	}
	nodes := make([]*dbtype.Node, len(nodesRaw))
	for i, n := range nodesRaw {
		node, ok := n.(*dbtype.Node)
		if !ok {
			return nil, hydrationError("Path")
		}
		nodes[i] = node
	}
	rels := make([]*dbtype.UnboundRelationship, len(relsRaw))
	for i, r := range relsRaw {
		rel, ok := r.(*dbtype.UnboundRelationship)
		if !ok {
			return nil, hydrationError("Path")
		}
		rels[i] = rel
	}
	indexes := make([]int, len(idxRaw))
	for i, x := range idxRaw {
		v, ok := x.(int64)
		if !ok {
			return nil, hydrationError("Path")
		}
		indexes[i] = int(v)
	}
	if len(indexes)%2 != 0 {
		return nil, hydrationError("Path")
	}
	return dbtype.NewPath(nodes, rels, indexes), nil
}

func hydratePoint2D(f []interface{}) (interface{}, error) {
	if len(f) != 3 {
		return nil, hydrationError("Point2D")
	}
	srId, sok := f[0].(int64)
	x, xok := f[1].(float64)
	y, yok := f[2].(float64)
	if !sok || !xok || !yok {
		return nil, hydrationError("Point2D")
	}
	return &dbtype.Point2D{SpatialRefId: uint32(srId), X: x, Y: y}, nil
}

func hydratePoint3D(f []interface{}) (interface{}, error) {
	if len(f) != 4 {
		return nil, hydrationError("Point3D")
	}
	srId, sok := f[0].(int64)
	x, xok := f[1].(float64)
	y, yok := f[2].(float64)
	z, zok := f[3].(float64)
	if !sok || !xok || !yok || !zok {
		return nil, hydrationError("Point3D")
	}
	return &dbtype.Point3D{SpatialRefId: uint32(srId), X: x, Y: y, Z: z}, nil
}

func hydrateDateTimeOffset(f []interface{}) (interface{}, error) {
	if len(f) != 3 {
		return nil, hydrationError("DateTime")
	}
	secs, sok := f[0].(int64)
	nanos, nok := f[1].(int64)
	offset, ook := f[2].(int64)
	if !sok || !nok || !ook {
		return nil, hydrationError("DateTime")
	}
	loc := time.FixedZone("Offset", int(offset))
	return time.Unix(secs, nanos).In(loc), nil
}

func hydrateDateTimeNamedZone(f []interface{}) (interface{}, error) {
	if len(f) != 3 {
		return nil, hydrationError("DateTime")
	}
	secs, sok := f[0].(int64)
	nanos, nok := f[1].(int64)
	zone, zok := f[2].(string)
	if !sok || !nok || !zok {
		return nil, hydrationError("DateTime")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, &dbtype.ProtocolError{MessageType: "DateTime", Field: "tz_id", Err: err.Error()}
	}
	return time.Unix(secs, nanos).In(loc), nil
}

func hydrateLocalDateTime(f []interface{}) (interface{}, error) {
	if len(f) != 2 {
		return nil, hydrationError("LocalDateTime")
	}
	secs, sok := f[0].(int64)
	nanos, nok := f[1].(int64)
	if !sok || !nok {
		return nil, hydrationError("LocalDateTime")
	}
	return dbtype.LocalDateTime(time.Unix(secs, nanos).UTC()), nil
}

func hydrateDate(f []interface{}) (interface{}, error) {
	if len(f) != 1 {
		return nil, hydrationError("Date")
	}
	days, ok := f[0].(int64)
	if !ok {
		return nil, hydrationError("Date")
	}
	return dbtype.Date(time.Unix(days*86400, 0).UTC()), nil
}

func hydrateTime(f []interface{}) (interface{}, error) {
	if len(f) != 2 {
		return nil, hydrationError("Time")
	}
	nanosOfDay, nok := f[0].(int64)
	offset, ook := f[1].(int64)
	if !nok || !ook {
		return nil, hydrationError("Time")
	}
	secs := nanosOfDay / int64(time.Second)
	nanos := nanosOfDay - secs*int64(time.Second)
	loc := time.FixedZone("Offset", int(offset))
	return dbtype.Time(time.Date(0, 1, 1, 0, 0, int(secs), int(nanos), loc)), nil
}

func hydrateLocalTime(f []interface{}) (interface{}, error) {
	if len(f) != 1 {
		return nil, hydrationError("LocalTime")
	}
	nanosOfDay, ok := f[0].(int64)
	if !ok {
		return nil, hydrationError("LocalTime")
	}
	secs := nanosOfDay / int64(time.Second)
	nanos := nanosOfDay - secs*int64(time.Second)
	return dbtype.LocalTime(time.Date(0, 1, 1, 0, 0, int(secs), int(nanos), time.UTC)), nil
}

func hydrateDuration(f []interface{}) (interface{}, error) {
	if len(f) != 4 {
		return nil, hydrationError("Duration")
	}
	months, mok := f[0].(int64)
	days, dok := f[1].(int64)
	secs, sok := f[2].(int64)
	nanos, nok := f[3].(int64)
	if !mok || !dok || !sok || !nok {
		return nil, hydrationError("Duration")
	}
	return dbtype.Duration{Months: months, Days: days, Seconds: secs, Nanos: int(nanos)}, nil
}
