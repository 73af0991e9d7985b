// Package bolt implements the Bolt connection state machine: message
// construction, request/response correlation, and the version-specific
// wire differences between 3.0, 4.x and 5.x behind one Connection.
package bolt

import "github.com/corvid-graph/bolt-go-driver/internal/packstream"

// Message struct tags, shared across every supported protocol version.
const (
	msgHello    packstream.StructTag = 0x01
	msgLogon    packstream.StructTag = 0x6a
	msgLogoff   packstream.StructTag = 0x6b
	msgGoodbye  packstream.StructTag = 0x02
	msgReset    packstream.StructTag = 0x0f
	msgRun      packstream.StructTag = 0x10
	msgBegin    packstream.StructTag = 0x11
	msgCommit   packstream.StructTag = 0x12
	msgRollback packstream.StructTag = 0x13
	msgDiscardN packstream.StructTag = 0x2f
	msgPullN    packstream.StructTag = 0x3f
	msgRoute    packstream.StructTag = 0x66
	msgTelemetry packstream.StructTag = 0x54

	msgSuccess packstream.StructTag = 0x70
	msgRecord  packstream.StructTag = 0x71
	msgIgnored packstream.StructTag = 0x7e
	msgFailure packstream.StructTag = 0x7f
)

// Graph/spatial/temporal struct tags.
const (
	tagNode                packstream.StructTag = 'N'
	tagRelationship         packstream.StructTag = 'R'
	tagUnboundRelationship  packstream.StructTag = 'r'
	tagPath                 packstream.StructTag = 'P'
	tagPoint2D              packstream.StructTag = 'X'
	tagPoint3D              packstream.StructTag = 'Y'
	tagDateTimeOffset       packstream.StructTag = 'F'
	tagDateTimeNamedZone    packstream.StructTag = 'f'
	tagLocalDateTime        packstream.StructTag = 'd'
	tagDate                 packstream.StructTag = 'D'
	tagTime                 packstream.StructTag = 'T'
	tagLocalTime            packstream.StructTag = 't'
	tagDuration             packstream.StructTag = 'E'
)

// defaultFetchSize is the default PULL batch size when a Command doesn't
// specify one.
const defaultFetchSize = 1000

func normalizeFetchSize(fetchSize int) int {
	if fetchSize < 0 {
		return -1
	}
	if fetchSize == 0 {
		return defaultFetchSize
	}
	return fetchSize
}
