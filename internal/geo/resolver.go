package geo

import (
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
)

// Resolver assigns ZIP codes to incidents by testing their coordinates
// against the loaded boundary polygons.
type Resolver struct {
	boundaries []Boundary
	logger     *slog.Logger
}

// NewResolver creates a Resolver over a boundary snapshot.
func NewResolver(boundaries []Boundary, logger *slog.Logger) *Resolver {
	return &Resolver{boundaries: boundaries, logger: logger}
}

// Resolve returns the incidents with Zip populated where a containing
// polygon exists. Incidents without coordinates, or whose point falls in no
// polygon (ocean, out-of-area), keep an empty Zip and are excluded from
// per-ZIP aggregation downstream — they are never assigned to a default
// bucket. The second return value counts the unresolved incidents.
//
// The containment test is planar ray casting in geographic coordinates,
// adequate at ZCTA scale. A point exactly on a polygon edge counts as
// inside, so a point on a shared edge resolves to whichever boundary loads
// first; tests document this behavior.
func (r *Resolver) Resolve(incidents []domain.Incident) ([]domain.Incident, int) {
	resolved := make([]domain.Incident, len(incidents))
	copy(resolved, incidents)

	misses := 0
	for i := range resolved {
		if !resolved[i].HasCoordinates() {
			misses++
			continue
		}
		point := orb.Point{*resolved[i].Longitude, *resolved[i].Latitude}
		zip := r.lookup(point)
		if zip == "" {
			misses++
			continue
		}
		resolved[i].Zip = zip
	}

	if misses > 0 {
		r.logger.Debug("incidents without resolvable zip", "count", misses, "total", len(incidents))
	}
	return resolved, misses
}

// lookup returns the ZIP of the first boundary containing the point, with a
// bounding-box prefilter so most polygons are rejected without the full
// ray-casting test.
func (r *Resolver) lookup(p orb.Point) string {
	for i := range r.boundaries {
		b := &r.boundaries[i]
		if !b.bound.Contains(p) {
			continue
		}
		if planar.MultiPolygonContains(b.Geom, p) {
			return b.Zip
		}
	}
	return ""
}
