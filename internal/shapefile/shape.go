// Package shapefile reads ESRI Shapefile geometry (.shp) and attribute (.dbf)
// files into positional shape/record pairs.
package shapefile

import (
	"github.com/woozymasta/shp2geojson/internal/attribute"

	"github.com/jonas-p/go-shp"
)

// ShapeKind tags the variant held by a Shape.
type ShapeKind int

const (
	ShapeUnsupported ShapeKind = iota
	ShapePoint
	ShapePolyline
	ShapePolygon
)

func (k ShapeKind) String() string {
	switch k {
	case ShapePoint:
		return "Point"
	case ShapePolyline:
		return "Polyline"
	case ShapePolygon:
		return "Polygon"
	default:
		return "Unsupported"
	}
}

// Point is an x/y coordinate pair.
type Point struct {
	X, Y float64
}

// RingRole marks a polygon ring as exterior or hole.
type RingRole int

const (
	RingOuter RingRole = iota
	RingInner
)

func (r RingRole) String() string {
	if r == RingInner {
		return "Inner"
	}
	return "Outer"
}

// Ring is one closed polygon ring as stored in the file.
type Ring struct {
	Role   RingRole
	Points []Point
}

// Shape is one geometry record. Only the field matching Kind is set.
type Shape struct {
	Kind  ShapeKind
	Point Point
	Parts [][]Point
	Rings []Ring

	// TypeName is the shapefile type of the record, e.g. "PointZ".
	TypeName string
}

// Field describes one .dbf column.
type Field struct {
	Name      string
	Kind      attribute.Kind
	Type      byte
	Size      int
	Precision int
}

// Cell is one named attribute value.
type Cell struct {
	Field string
	Value attribute.Value
}

// Record is the ordered list of cells read alongside one shape.
type Record []Cell

// nullRecord returns a record holding the empty value of every field.
func nullRecord(fields []Field) Record {
	rec := make(Record, len(fields))
	for i, f := range fields {
		rec[i] = Cell{Field: f.Name, Value: attribute.Null(f.Kind)}
	}
	return rec
}

// convertShape translates a go-shp record into a Shape.
func convertShape(s shp.Shape) Shape {
	switch g := s.(type) {
	case *shp.Point:
		return Shape{Kind: ShapePoint, Point: Point{X: g.X, Y: g.Y}, TypeName: typeName(s)}
	case *shp.PolyLine:
		return Shape{Kind: ShapePolyline, Parts: splitParts(g.Parts, g.Points), TypeName: typeName(s)}
	case *shp.Polygon:
		parts := splitParts(g.Parts, g.Points)
		rings := make([]Ring, len(parts))
		for i, pts := range parts {
			role := RingOuter
			if signedArea(pts) > 0 {
				role = RingInner
			}
			rings[i] = Ring{Role: role, Points: pts}
		}
		return Shape{Kind: ShapePolygon, Rings: rings, TypeName: typeName(s)}
	default:
		return Shape{Kind: ShapeUnsupported, TypeName: typeName(s)}
	}
}

func splitParts(offsets []int32, points []shp.Point) [][]Point {
	parts := make([][]Point, 0, len(offsets))
	for i, start := range offsets {
		end := int32(len(points))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if start < 0 || end > int32(len(points)) || start > end {
			continue
		}
		part := make([]Point, 0, end-start)
		for _, p := range points[start:end] {
			part = append(part, Point{X: p.X, Y: p.Y})
		}
		parts = append(parts, part)
	}
	return parts
}

// signedArea is positive for counter-clockwise rings. Shapefile outer rings
// are clockwise, holes counter-clockwise.
func signedArea(pts []Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

func typeName(s shp.Shape) string {
	switch s.(type) {
	case nil, *shp.Null:
		return "Null"
	case *shp.Point:
		return "Point"
	case *shp.PolyLine:
		return "Polyline"
	case *shp.Polygon:
		return "Polygon"
	case *shp.MultiPoint:
		return "MultiPoint"
	case *shp.PointZ:
		return "PointZ"
	case *shp.PolyLineZ:
		return "PolylineZ"
	case *shp.PolygonZ:
		return "PolygonZ"
	case *shp.MultiPointZ:
		return "MultiPointZ"
	case *shp.PointM:
		return "PointM"
	case *shp.PolyLineM:
		return "PolylineM"
	case *shp.PolygonM:
		return "PolygonM"
	case *shp.MultiPointM:
		return "MultiPointM"
	case *shp.MultiPatch:
		return "MultiPatch"
	default:
		return "Unknown"
	}
}

var shapeTypeNames = map[shp.ShapeType]string{
	shp.NULL:        "Null",
	shp.POINT:       "Point",
	shp.POLYLINE:    "Polyline",
	shp.POLYGON:     "Polygon",
	shp.MULTIPOINT:  "MultiPoint",
	shp.POINTZ:      "PointZ",
	shp.POLYLINEZ:   "PolylineZ",
	shp.POLYGONZ:    "PolygonZ",
	shp.MULTIPOINTZ: "MultiPointZ",
	shp.POINTM:      "PointM",
	shp.POLYLINEM:   "PolylineM",
	shp.POLYGONM:    "PolygonM",
	shp.MULTIPOINTM: "MultiPointM",
	shp.MULTIPATCH:  "MultiPatch",
}

// ShapeTypeName returns the name of a shapefile header type.
func ShapeTypeName(t shp.ShapeType) string {
	if name, ok := shapeTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}
