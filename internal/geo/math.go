package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// CheckFinite returns a *NonFiniteCoordinateError for the first NaN or
// infinite coordinate in g. JSON has no encoding for such values.
func CheckFinite(g orb.Geometry) error {
	var bad *NonFiniteCoordinateError
	visit(g, func(p orb.Point) bool {
		if !finite(p[0]) || !finite(p[1]) {
			bad = &NonFiniteCoordinateError{X: p[0], Y: p[1]}
			return false
		}
		return true
	})
	if bad != nil {
		return bad
	}
	return nil
}

// Bound returns the extent of all feature geometries and false when there is none.
func Bound(features []*Feature) (orb.Bound, bool) {
	var (
		b  orb.Bound
		ok bool
	)
	for _, f := range features {
		if f == nil || f.Geometry == nil || f.Geometry.Coordinates == nil {
			continue
		}
		gb := f.Geometry.Coordinates.Bound()
		if !ok {
			b, ok = gb, true
			continue
		}
		b = b.Union(gb)
	}
	return b, ok
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// visit calls fn for every point of g until fn returns false.
func visit(g orb.Geometry, fn func(orb.Point) bool) {
	walk := func(pts []orb.Point) bool {
		for _, p := range pts {
			if !fn(p) {
				return false
			}
		}
		return true
	}

	switch v := g.(type) {
	case orb.Point:
		fn(v)
	case orb.MultiPoint:
		walk(v)
	case orb.LineString:
		walk(v)
	case orb.Ring:
		walk(v)
	case orb.MultiLineString:
		for _, ls := range v {
			if !walk(ls) {
				return
			}
		}
	case orb.Polygon:
		for _, r := range v {
			if !walk(r) {
				return
			}
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				if !walk(r) {
					return
				}
			}
		}
	}
}
