package domain

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// dateLayouts covers the timestamp shapes the portals return. Socrata's
// floating timestamp ("2023-03-15T10:30:00.000") is by far the most common.
var dateLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer converts jurisdiction-specific raw rows into canonical
// incidents using the declarative field mappings in the registry. It is a
// pure transform: schema mismatches degrade to null fields, never errors.
type Normalizer struct {
	classifier *Classifier
	logger     *slog.Logger
}

// NewNormalizer creates a Normalizer. The classifier is required; every
// canonical incident gets a crime type even when the category is missing.
func NewNormalizer(classifier *Classifier, logger *slog.Logger) *Normalizer {
	return &Normalizer{classifier: classifier, logger: logger}
}

// Normalize maps one jurisdiction's raw batch into canonical incidents.
// Records without a parseable date are excluded; the second return value is
// the number dropped. The input batch is not modified.
func (n *Normalizer) Normalize(spec JurisdictionSpec, records []RawRecord) ([]Incident, int) {
	if len(records) == 0 {
		return nil, 0
	}

	mapping := MappingFor(spec.ID)
	headers := collectHeaders(records)

	dateCol := resolveColumn(headers, mapping.Date)
	categoryCol := resolveColumn(headers, mapping.Category)
	descCol := resolveColumn(headers, mapping.Description)
	latCol, lonCol := resolveCoordinateColumns(headers, mapping)

	if dateCol == "" {
		// Without a date column every row is undateable and the whole
		// batch drops out of aggregation.
		n.logger.Warn("no date column found, dropping batch",
			"jurisdiction", spec.ID, "headers", len(headers))
		return nil, len(records)
	}

	incidents := make([]Incident, 0, len(records))
	dropped := 0

	for _, rec := range records {
		date, ok := parseDate(rec[dateCol])
		if !ok {
			dropped++
			continue
		}

		inc := Incident{
			Date:         date,
			Category:     stringValue(rec[categoryCol]),
			Description:  stringValue(rec[descCol]),
			Jurisdiction: spec.Name,
		}
		inc.CrimeType = n.classifier.Classify(inc.Category)

		if latCol != "" && lonCol != "" {
			inc.Latitude = parseCoordinate(rec[latCol])
			inc.Longitude = parseCoordinate(rec[lonCol])
		} else if mapping.PointColumn != "" {
			inc.Latitude, inc.Longitude = parseNestedPoint(rec[mapping.PointColumn], mapping.Coordinates)
		}

		incidents = append(incidents, inc)
	}

	if dropped > 0 {
		n.logger.Debug("dropped records with unparseable dates",
			"jurisdiction", spec.ID, "dropped", dropped, "kept", len(incidents))
	}

	return incidents, dropped
}

// collectHeaders returns the sorted union of column names across the batch.
// Socrata omits null fields per row, so no single row is a reliable schema
// sample. Sorting makes substring resolution deterministic where the
// original relied on source column order.
func collectHeaders(records []RawRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(seen))
	for k := range seen {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return headers
}

// resolveColumn walks the ordered substring chain and returns the first
// header containing a chain entry, case-insensitively. Empty string means no
// candidate column exists; the canonical field is null for the batch.
func resolveColumn(headers []string, substrings []string) string {
	for _, sub := range substrings {
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), sub) {
				return h
			}
		}
	}
	return ""
}

// resolveCoordinateColumns prefers explicit latitude/longitude columns.
// When absent and the mapping uses generic resolution, it falls back to the
// first headers containing "lat" and "lon"/"lng". Jurisdictions with nested
// point columns return empty and are handled by parseNestedPoint per row.
func resolveCoordinateColumns(headers []string, mapping FieldMapping) (string, string) {
	var hasLat, hasLon bool
	for _, h := range headers {
		switch h {
		case "latitude":
			hasLat = true
		case "longitude":
			hasLon = true
		}
	}
	if hasLat && hasLon {
		return "latitude", "longitude"
	}

	if mapping.Coordinates != coordsGeneric {
		return "", ""
	}

	lat := resolveColumn(headers, []string{"lat"})
	lon := resolveColumn(headers, []string{"lon", "lng"})
	if lat == "" || lon == "" {
		return "", ""
	}
	return lat, lon
}

// parseNestedPoint extracts coordinates from a jurisdiction-specific nested
// object: a GeoJSON point ([lon, lat] coordinates array) or a location
// object with latitude/longitude members.
func parseNestedPoint(v any, source coordinateSource) (*float64, *float64) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}

	switch source {
	case coordsGeoJSONPoint:
		coords, ok := obj["coordinates"].([]any)
		if !ok || len(coords) < 2 {
			return nil, nil
		}
		lon := parseCoordinate(coords[0])
		lat := parseCoordinate(coords[1])
		return lat, lon
	case coordsLatLonObject:
		return parseCoordinate(obj["latitude"]), parseCoordinate(obj["longitude"])
	default:
		return nil, nil
	}
}

// parseCoordinate coerces a raw cell to a float, matching the tolerant
// numeric coercion of the source portals (strings and numbers both occur).
func parseCoordinate(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return nil
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// parseDate tries each known layout against a raw cell value.
func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// stringValue returns the cell as a string, or empty for null and non-string
// values.
func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
