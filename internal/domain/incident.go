package domain

import (
	"fmt"
	"time"
)

// Category is the coarse crime classification used for aggregation.
type Category string

const (
	CategoryViolent       Category = "violent"
	CategoryProperty      Category = "property"
	CategoryDrugs         Category = "drugs"
	CategoryQualityOfLife Category = "quality_of_life"
	CategoryTraffic       Category = "traffic"
	CategoryOther         Category = "other"
)

// RawRecord is one row as returned by a source portal: an opaque mapping of
// column name to value. Socrata returns most scalars as strings and nested
// point/location columns as JSON objects.
type RawRecord map[string]any

// Incident is the canonical, schema-independent representation of one crime
// report after normalization. Latitude and Longitude are independently
// nullable; Zip stays empty until geographic resolution runs.
type Incident struct {
	Date         time.Time `json:"date"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Jurisdiction string    `json:"jurisdiction"`
	CrimeType    Category  `json:"crime_type"`
	Zip          string    `json:"zipcode,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are present.
func (i Incident) HasCoordinates() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// MonthlyZipStats is one aggregated row per (zip, year, month). Rate fields
// are nil when no population figure is available for the zip.
type MonthlyZipStats struct {
	Zip           string `json:"zip"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	ViolentCount  int    `json:"violent_count"`
	PropertyCount int    `json:"property_count"`
	OtherCount    int    `json:"other_count"`
	TotalCount    int    `json:"total_count"`

	ViolentRate  *float64 `json:"violent_rate,omitempty"`
	PropertyRate *float64 `json:"property_rate,omitempty"`
	OtherRate    *float64 `json:"other_rate,omitempty"`
	TotalRate    *float64 `json:"total_rate,omitempty"`
}

// Month identifies one calendar month, the unit of fetching, caching, and
// aggregation.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf truncates a time to its calendar month.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// After reports whether m is strictly later than other.
func (m Month) After(other Month) bool {
	if m.Year != other.Year {
		return m.Year > other.Year
	}
	return m.Month > other.Month
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the month.
func (m Month) End() time.Time {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls within the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MonthsBetween returns every month from first through last inclusive.
// Returns nil when first is after last.
func MonthsBetween(first, last Month) []Month {
	if first.After(last) {
		return nil
	}
	var months []Month
	for m := first; !m.After(last); m = m.Next() {
		months = append(months, m)
	}
	return months
}
