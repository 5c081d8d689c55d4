package geo

import (
	"errors"
	"fmt"

	"github.com/woozymasta/shp2geojson/internal/shapefile"
)

// ErrUnsupportedShape marks shapes that have no GeoJSON mapping. Callers skip them.
var ErrUnsupportedShape = errors.New("unsupported shape")

// GeometryTypeMismatchError means a mapper received a shape of the wrong kind.
// Correct routing makes it unreachable.
type GeometryTypeMismatchError struct {
	Expected shapefile.ShapeKind
	Got      shapefile.ShapeKind
}

func (e *GeometryTypeMismatchError) Error() string {
	return fmt.Sprintf("expected %v shape, got %v", e.Expected, e.Got)
}

// NonFiniteCoordinateError means a coordinate cannot be written as JSON.
type NonFiniteCoordinateError struct {
	X, Y float64
}

func (e *NonFiniteCoordinateError) Error() string {
	return fmt.Sprintf("non-finite coordinate (%v, %v)", e.X, e.Y)
}
