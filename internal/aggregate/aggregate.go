// Package aggregate rolls resolved incidents up into monthly per-ZIP counts
// and per-1000-population rates.
package aggregate

import (
	"sort"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
)

// MonthlyStats filters incidents to the target month, groups them by
// (zip, crime type), and emits one row per ZIP, sorted by ZIP so repeated
// runs over identical input produce identical output.
//
// Only three categories are reported: violent, property, and other. The
// drugs, quality_of_life, and traffic classifications collapse into the
// reported other bucket here. The rollup is lossy on purpose — the rating
// scheme downstream was calibrated against three buckets — even though the
// classifier distinguishes all six.
//
// Incidents without a resolved ZIP are excluded entirely; there is no
// default or unknown bucket.
func MonthlyStats(incidents []domain.Incident, m domain.Month) []domain.MonthlyZipStats {
	byZip := make(map[string]*domain.MonthlyZipStats)

	for _, inc := range incidents {
		if inc.Zip == "" || !m.Contains(inc.Date) {
			continue
		}

		row, ok := byZip[inc.Zip]
		if !ok {
			row = &domain.MonthlyZipStats{Zip: inc.Zip, Year: m.Year, Month: int(m.Month)}
			byZip[inc.Zip] = row
		}

		switch inc.CrimeType {
		case domain.CategoryViolent:
			row.ViolentCount++
		case domain.CategoryProperty:
			row.PropertyCount++
		default:
			row.OtherCount++
		}
		row.TotalCount++
	}

	stats := make([]domain.MonthlyZipStats, 0, len(byZip))
	for _, row := range byZip {
		stats = append(stats, *row)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Zip < stats[j].Zip })
	return stats
}

// ApplyRates fills in per-1000-population rates for every row whose ZIP has
// a positive population. Rows with a missing or zero population keep nil
// rates; the division is never performed for them.
func ApplyRates(stats []domain.MonthlyZipStats, populations map[string]int) []domain.MonthlyZipStats {
	out := make([]domain.MonthlyZipStats, len(stats))
	copy(out, stats)

	for i := range out {
		pop, ok := populations[out[i].Zip]
		if !ok || pop <= 0 {
			continue
		}
		out[i].ViolentRate = ratePer1000(out[i].ViolentCount, pop)
		out[i].PropertyRate = ratePer1000(out[i].PropertyCount, pop)
		out[i].OtherRate = ratePer1000(out[i].OtherCount, pop)
		out[i].TotalRate = ratePer1000(out[i].TotalCount, pop)
	}
	return out
}

func ratePer1000(count, population int) *float64 {
	rate := float64(count) / float64(population) * 1000
	return &rate
}
