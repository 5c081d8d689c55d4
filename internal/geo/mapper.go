package geo

import (
	"github.com/woozymasta/shp2geojson/internal/shapefile"

	"github.com/paulmach/orb"
)

// MapShape converts a shape into its GeoJSON geometry:
// Point to Point, Polyline to MultiLineString, Polygon to Polygon.
// Other kinds return ErrUnsupportedShape.
func MapShape(s shapefile.Shape) (orb.Geometry, error) {
	switch s.Kind {
	case shapefile.ShapePoint:
		return MapPoint(s)
	case shapefile.ShapePolyline:
		return MapPolyline(s)
	case shapefile.ShapePolygon:
		return MapPolygon(s)
	default:
		return nil, ErrUnsupportedShape
	}
}

// MapPoint maps a point shape to [x, y].
func MapPoint(s shapefile.Shape) (orb.Point, error) {
	if s.Kind != shapefile.ShapePoint {
		return orb.Point{}, &GeometryTypeMismatchError{Expected: shapefile.ShapePoint, Got: s.Kind}
	}
	return toPoint(s.Point), nil
}

// MapPolyline maps every part of a polyline to one line string, in order.
func MapPolyline(s shapefile.Shape) (orb.MultiLineString, error) {
	if s.Kind != shapefile.ShapePolyline {
		return nil, &GeometryTypeMismatchError{Expected: shapefile.ShapePolyline, Got: s.Kind}
	}

	mls := make(orb.MultiLineString, len(s.Parts))
	for i, part := range s.Parts {
		mls[i] = orb.LineString(toPoints(part))
	}
	return mls, nil
}

// MapPolygon maps rings in file order. Outer and inner rings are flattened
// positionally; winding and ring order are left as stored.
func MapPolygon(s shapefile.Shape) (orb.Polygon, error) {
	if s.Kind != shapefile.ShapePolygon {
		return nil, &GeometryTypeMismatchError{Expected: shapefile.ShapePolygon, Got: s.Kind}
	}

	poly := make(orb.Polygon, len(s.Rings))
	for i, ring := range s.Rings {
		poly[i] = orb.Ring(toPoints(ring.Points))
	}
	return poly, nil
}

func toPoint(p shapefile.Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

func toPoints(pts []shapefile.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[i] = toPoint(p)
	}
	return out
}
