package dbtype

import "fmt"

// Point2D is a hydrated PackStream 'X' struct: a planar point tagged with
// its spatial reference system id.
type Point2D struct {
	SpatialRefId uint32
	X, Y         float64
}

func (p Point2D) String() string {
	return fmt.Sprintf("Point{srId=%d, x=%f, y=%f}", p.SpatialRefId, p.X, p.Y)
}

// Point3D is a hydrated PackStream 'Y' struct: a spatial point with a
// third coordinate.
type Point3D struct {
	SpatialRefId uint32
	X, Y, Z      float64
}

func (p Point3D) String() string {
	return fmt.Sprintf("Point{srId=%d, x=%f, y=%f, z=%f}", p.SpatialRefId, p.X, p.Y, p.Z)
}
