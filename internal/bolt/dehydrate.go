package bolt

import (
	"fmt"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
	"github.com/corvid-graph/bolt-go-driver/internal/packstream"
)

// dehydrate is invoked by the Encoder for any value it doesn't know how to
// write natively, letting query parameters carry spatial/temporal types
// back onto the wire in their PackStream struct form.
func dehydrate(x interface{}) (*packstream.Struct, error) {
	switch v := x.(type) {
	case *dbtype.Point2D:
		return &packstream.Struct{Tag: tagPoint2D, Fields: []interface{}{v.SpatialRefId, v.X, v.Y}}, nil
	case dbtype.Point2D:
		return &packstream.Struct{Tag: tagPoint2D, Fields: []interface{}{v.SpatialRefId, v.X, v.Y}}, nil
	case *dbtype.Point3D:
		return &packstream.Struct{Tag: tagPoint3D, Fields: []interface{}{v.SpatialRefId, v.X, v.Y, v.Z}}, nil
	case dbtype.Point3D:
		return &packstream.Struct{Tag: tagPoint3D, Fields: []interface{}{v.SpatialRefId, v.X, v.Y, v.Z}}, nil
	case time.Time:
		return dehydrateTime(v)
	case dbtype.LocalDateTime:
		t := time.Time(v)
		return &packstream.Struct{Tag: tagLocalDateTime, Fields: []interface{}{t.Unix(), int64(t.Nanosecond())}}, nil
	case dbtype.Date:
		t := time.Time(v)
		days := t.Unix() / 86400
		return &packstream.Struct{Tag: tagDate, Fields: []interface{}{days}}, nil
	case dbtype.Time:
		t := time.Time(v)
		_, offset := t.Zone()
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		nanosOfDay := t.Sub(midnight).Nanoseconds()
		return &packstream.Struct{Tag: tagTime, Fields: []interface{}{nanosOfDay, int64(offset)}}, nil
	case dbtype.LocalTime:
		t := time.Time(v)
		nanosOfDay := int64(t.Hour())*int64(time.Hour) + int64(t.Minute())*int64(time.Minute) +
			int64(t.Second())*int64(time.Second) + int64(t.Nanosecond())
		return &packstream.Struct{Tag: tagLocalTime, Fields: []interface{}{nanosOfDay}}, nil
	case dbtype.Duration:
		return &packstream.Struct{Tag: tagDuration, Fields: []interface{}{v.Months, v.Days, v.Seconds, int64(v.Nanos)}}, nil
	default:
		return nil, fmt.Errorf("unable to dehydrate type %T as a query parameter", x)
	}
}

func dehydrateTime(t time.Time) (*packstream.Struct, error) {
	zone, offset := t.Zone()
	secs := t.Unix()
	if zone == "Offset" {
		return &packstream.Struct{Tag: tagDateTimeOffset, Fields: []interface{}{secs, int64(t.Nanosecond()), int64(offset)}}, nil
	}
	return &packstream.Struct{Tag: tagDateTimeNamedZone, Fields: []interface{}{secs, int64(t.Nanosecond()), t.Location().String()}}, nil
}
