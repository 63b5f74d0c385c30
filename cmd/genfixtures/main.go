// Command genfixtures writes deterministic test fixtures: one raw portal
// response per jurisdiction in that jurisdiction's column schema, and a small
// ZCTA boundary GeoJSON covering the fixture coordinates. It uses the actual
// normalization registry so the fixtures track schema changes.
//
// Usage:
//
//	go run ./cmd/genfixtures -out-dir data/fixtures -month 2023-03
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
)

// fixtureIncident is one synthetic report placed at a known coordinate.
type fixtureIncident struct {
	day      int
	category string
	desc     string
	lat, lon float64
}

// fixtureZips maps each fixture coordinate cluster to a zip whose boundary
// square is emitted alongside the raw batches.
var fixtureZips = map[string]struct {
	zip      string
	lat, lon float64
}{
	"sf":       {zip: "94110", lat: 37.7599, lon: -122.4148},
	"oakland":  {zip: "94601", lat: 37.7757, lon: -122.2189},
	"berkeley": {zip: "94704", lat: 37.8664, lon: -122.2578},
	"san_jose": {zip: "95112", lat: 37.3496, lon: -121.8882},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write fixtures into")
	monthArg := flag.String("month", "2023-03", "fixture month (YYYY-MM)")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	parsed, err := time.Parse("2006-01", *monthArg)
	if err != nil {
		return fmt.Errorf("parse -month: %w", err)
	}
	month := domain.MonthOf(parsed)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, spec := range domain.Jurisdictions() {
		records := buildBatch(spec, month)
		path := filepath.Join(*outDir, fmt.Sprintf("%s_%s.json", spec.ID, month))
		if err := writeJSON(path, records); err != nil {
			return fmt.Errorf("writing %s fixture: %w", spec.ID, err)
		}
		log.Printf("%s: %d records -> %s", spec.ID, len(records), path)
	}

	boundaryPath := filepath.Join(*outDir, "zcta_boundaries.geojson")
	if err := writeBoundaries(boundaryPath); err != nil {
		return fmt.Errorf("writing boundaries: %w", err)
	}
	log.Printf("boundaries -> %s", boundaryPath)
	return nil
}

// buildBatch renders the fixture incidents in the jurisdiction's own column
// schema, exercising the same mapping shapes the normalizer resolves.
func buildBatch(spec domain.JurisdictionSpec, month domain.Month) []domain.RawRecord {
	site := fixtureZips[spec.ID]
	incidents := []fixtureIncident{
		{day: 1, category: "Assault", desc: "Aggravated assault with weapon", lat: site.lat, lon: site.lon},
		{day: 5, category: "Burglary", desc: "Residential burglary", lat: site.lat + 0.001, lon: site.lon + 0.001},
		{day: 12, category: "Larceny Theft", desc: "Theft from vehicle", lat: site.lat - 0.001, lon: site.lon - 0.001},
		{day: 18, category: "Drug Violation", desc: "Possession of narcotics", lat: site.lat, lon: site.lon + 0.002},
		{day: 25, category: "Vandalism", desc: "Graffiti", lat: site.lat + 0.002, lon: site.lon},
	}

	records := make([]domain.RawRecord, 0, len(incidents))
	for _, inc := range incidents {
		date := time.Date(month.Year, month.Month, inc.day, 12, 0, 0, 0, time.UTC).
			Format("2006-01-02T15:04:05.000")

		switch spec.ID {
		case "sf":
			records = append(records, domain.RawRecord{
				"incident_date":        date,
				"incident_category":    inc.category,
				"incident_description": inc.desc,
				"point": map[string]any{
					"type":        "Point",
					"coordinates": []any{inc.lon, inc.lat},
				},
			})
		case "oakland":
			records = append(records, domain.RawRecord{
				"datetime":    date,
				"crimetype":   inc.category,
				"description": inc.desc,
				"location_1": map[string]any{
					"latitude":  fmt.Sprintf("%.6f", inc.lat),
					"longitude": fmt.Sprintf("%.6f", inc.lon),
				},
			})
		default:
			records = append(records, domain.RawRecord{
				"report_date": date,
				"crime_type":  inc.category,
				"description": inc.desc,
				"latitude":    fmt.Sprintf("%.6f", inc.lat),
				"longitude":   fmt.Sprintf("%.6f", inc.lon),
			})
		}
	}
	return records
}

// writeBoundaries emits one square ZCTA polygon around each fixture site,
// large enough to contain all of that site's offset coordinates.
func writeBoundaries(path string) error {
	fc := geojson.NewFeatureCollection()
	for _, site := range fixtureZips {
		const half = 0.01
		ring := orb.Ring{
			{site.lon - half, site.lat - half},
			{site.lon + half, site.lat - half},
			{site.lon + half, site.lat + half},
			{site.lon - half, site.lat + half},
			{site.lon - half, site.lat - half},
		}
		feature := geojson.NewFeature(orb.Polygon{ring})
		feature.Properties["zip"] = site.zip
		fc.Append(feature)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
