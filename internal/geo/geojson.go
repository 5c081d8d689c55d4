// Package geo builds GeoJSON documents from decoded shapefile geometry.
package geo

import (
	"github.com/paulmach/orb/geojson"
)

// FeatureCollection is the output document. BBox is always emitted as null
// and no foreign members are written.
type FeatureCollection struct {
	Type     string     `json:"type" yaml:"type"`
	BBox     []float64  `json:"bbox" yaml:"bbox"`
	Features []*Feature `json:"features" yaml:"features"`
}

// Feature is one geometry with its properties. Features carry no id.
type Feature struct {
	Type       string             `json:"type" yaml:"type"`
	Geometry   *geojson.Geometry  `json:"geometry" yaml:"geometry"`
	Properties geojson.Properties `json:"properties" yaml:"properties"`
}

// NewFeature wraps a geometry and its properties.
func NewFeature(g *geojson.Geometry, props geojson.Properties) *Feature {
	if props == nil {
		props = geojson.Properties{}
	}
	return &Feature{Type: "Feature", Geometry: g, Properties: props}
}

// NewFeatureCollection wraps features into a collection. A nil slice is
// written as an empty array.
func NewFeatureCollection(features []*Feature) *FeatureCollection {
	if features == nil {
		features = []*Feature{}
	}
	return &FeatureCollection{Type: "FeatureCollection", Features: features}
}
