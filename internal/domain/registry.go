package domain

import "fmt"

// JurisdictionSpec describes one municipal open-data source: the Socrata
// domain it lives on, its dataset identifier, and the per-request record cap.
type JurisdictionSpec struct {
	ID         string // registry key, e.g. "sf"
	Name       string // display name written into canonical incidents
	Domain     string // Socrata API domain
	DatasetID  string
	FetchLimit int
}

// coordinateSource selects how a jurisdiction encodes incident coordinates
// when explicit latitude/longitude columns are absent.
type coordinateSource int

const (
	// coordsGeneric scans headers for the first column containing "lat" and
	// the first containing "lon" or "lng".
	coordsGeneric coordinateSource = iota
	// coordsGeoJSONPoint reads a nested GeoJSON point object, coordinates
	// ordered [lon, lat].
	coordsGeoJSONPoint
	// coordsLatLonObject reads a nested object with "latitude"/"longitude"
	// string members.
	coordsLatLonObject
)

// FieldMapping declares how a jurisdiction's columns resolve to canonical
// fields. Each slice is an ordered chain of case-insensitive substrings; the
// first header containing a chain entry wins. An empty resolution is not an
// error: the canonical field is simply null for the whole batch.
type FieldMapping struct {
	Date        []string
	Category    []string
	Description []string

	Coordinates coordinateSource
	// PointColumn names the nested point/location column consulted when
	// explicit latitude/longitude columns are missing.
	PointColumn string
}

// registry holds the built-in source definitions. The set mirrors the Bay
// Area portals the service was built against; adding a jurisdiction means
// adding a spec and a mapping here.
var registry = []JurisdictionSpec{
	{ID: "sf", Name: "San Francisco", Domain: "data.sfgov.org", DatasetID: "wg3w-h783", FetchLimit: 50000},
	{ID: "oakland", Name: "Oakland", Domain: "data.oaklandca.gov", DatasetID: "3xav-7geq", FetchLimit: 50000},
	{ID: "san_jose", Name: "San Jose", Domain: "data.sanjoseca.gov", DatasetID: "gqp9-crw5", FetchLimit: 50000},
	{ID: "berkeley", Name: "Berkeley", Domain: "data.cityofberkeley.info", DatasetID: "k2nh-s5h5", FetchLimit: 20000},
}

// genericMapping is the fallback for jurisdictions without a bespoke mapping.
var genericMapping = FieldMapping{
	Date:        []string{"date"},
	Category:    []string{"category", "type", "crime"},
	Description: []string{"desc", "narrative"},
	Coordinates: coordsGeneric,
}

var fieldMappings = map[string]FieldMapping{
	"sf": {
		Date:        []string{"date"},
		Category:    []string{"category", "incident"},
		Description: []string{"descript"},
		Coordinates: coordsGeoJSONPoint,
		PointColumn: "point",
	},
	"oakland": {
		Date:        []string{"date"},
		Category:    []string{"crimetype", "category"},
		Description: []string{"desc"},
		Coordinates: coordsLatLonObject,
		PointColumn: "location_1",
	},
}

// Jurisdictions returns the full registry. The returned slice is a copy;
// the registry itself is immutable after process start.
func Jurisdictions() []JurisdictionSpec {
	out := make([]JurisdictionSpec, len(registry))
	copy(out, registry)
	return out
}

// JurisdictionByID looks up a single spec by registry key.
func JurisdictionByID(id string) (JurisdictionSpec, error) {
	for _, spec := range registry {
		if spec.ID == id {
			return spec, nil
		}
	}
	return JurisdictionSpec{}, fmt.Errorf("unknown jurisdiction %q", id)
}

// MappingFor returns the field mapping for a jurisdiction, falling back to
// the generic substring chains when no bespoke mapping exists.
func MappingFor(id string) FieldMapping {
	if m, ok := fieldMappings[id]; ok {
		return m
	}
	return genericMapping
}
