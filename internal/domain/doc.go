// Package domain models municipal crime-report data and its canonical form.
//
// # Data Sources
//
// Incident records come from Socrata-hosted open-data portals, one dataset
// per jurisdiction (see the registry in registry.go). Each portal publishes
// its own schema: column names, date formats, and coordinate encodings all
// differ. The normalizer reconciles them into the canonical [Incident] shape
// using declarative per-jurisdiction field mappings rather than runtime
// introspection of the response.
//
// # Column Resolution
//
// A mapping is an ordered chain of case-insensitive substrings per canonical
// field. The first matching header wins. Examples of real source columns:
//
//	San Francisco: incident_date, incident_category, incident_description,
//	               latitude, longitude, point ({"coordinates":[lon,lat]})
//	Oakland:       datetime, crimetype, description,
//	               location_1 ({"latitude":"...","longitude":"..."})
//	Generic:       any *date* column, any *category*/*type*/*crime* column,
//	               any *lat*/*lon*/*lng* columns
//
// A field with no candidate column resolves to null for the whole batch; the
// only hard requirement is a parseable date, since monthly aggregation is
// keyed on it. Rows whose date cannot be parsed are dropped and counted.
//
// # Crime Classification
//
// Free-text crime types map to six coarse categories (violent, property,
// drugs, quality_of_life, traffic, other) by scanning an ordered keyword
// list for the first substring hit. The keyword order follows FBI UCR Part I
// and Part II offense grouping and is behavior, not style: "grand theft
// auto" hits "theft" (property) before anything else, and "liquor law
// violation" hits "liquor law" (drugs) rather than falling through to other.
// Unmatched and missing text classify as other.
//
// # Safety Rating
//
// The per-1000-population crime rate maps to the 1-10 scale shown on the
// map via rating = clamp(10 - rate/5, 1, 10). See [SafetyRating].
package domain
