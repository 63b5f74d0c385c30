// Package geo loads ZCTA boundary polygons and resolves incidents to ZIP
// codes with a point-in-polygon join.
package geo

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Boundary is one ZIP code's polygon in WGS84 coordinates. The set of
// boundaries is a read-only snapshot for the run.
type Boundary struct {
	Zip  string
	Geom orb.MultiPolygon

	// bound is the precomputed bounding box used to prefilter the
	// containment test.
	bound orb.Bound
}

// LoadBoundaries reads a GeoJSON FeatureCollection of ZCTA polygons. The ZIP
// is taken from the "zip" property, falling back to the Census TIGER
// "ZCTA5CE20"/"ZCTA5CE10" attribute names. Features without a ZIP or with
// non-polygonal geometry are skipped.
func LoadBoundaries(path string) ([]Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("geo: read boundary file: %w", err)
	}
	return ParseBoundaries(data)
}

// ParseBoundaries parses GeoJSON boundary data. See LoadBoundaries.
func ParseBoundaries(data []byte) ([]Boundary, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("geo: parse boundary geojson: %w", err)
	}

	boundaries := make([]Boundary, 0, len(fc.Features))
	for _, f := range fc.Features {
		zip := zipProperty(f.Properties)
		if zip == "" {
			continue
		}

		var geom orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			geom = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			geom = g
		default:
			continue
		}

		boundaries = append(boundaries, Boundary{
			Zip:   zip,
			Geom:  geom,
			bound: geom.Bound(),
		})
	}

	if len(boundaries) == 0 {
		return nil, fmt.Errorf("geo: boundary file contains no usable zip polygons")
	}
	return boundaries, nil
}

func zipProperty(props geojson.Properties) string {
	for _, key := range []string{"zip", "ZCTA5CE20", "ZCTA5CE10"} {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
