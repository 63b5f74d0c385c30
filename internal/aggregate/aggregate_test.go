package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zipwatch/crime-stats-etl/internal/domain"
)

var march = domain.Month{Year: 2023, Month: time.March}

func incident(zip string, crimeType domain.Category, day int) domain.Incident {
	return domain.Incident{
		Date:      time.Date(2023, 3, day, 12, 0, 0, 0, time.UTC),
		CrimeType: crimeType,
		Zip:       zip,
	}
}

// Two jurisdictions reporting 3 and 2 incidents in ZIP 94110 for March 2023
// must merge into a single row with the combined counts.
func TestMonthlyStats_CombinesJurisdictions(t *testing.T) {
	incidents := []domain.Incident{
		// First jurisdiction: 3 incidents.
		incident("94110", domain.CategoryViolent, 3),
		incident("94110", domain.CategoryProperty, 10),
		incident("94110", domain.CategoryProperty, 21),
		// Second jurisdiction: 2 incidents.
		incident("94110", domain.CategoryProperty, 14),
		incident("94110", domain.CategoryOther, 28),
	}

	stats := MonthlyStats(incidents, march)
	require.Len(t, stats, 1)
	assert.Equal(t, domain.MonthlyZipStats{
		Zip:           "94110",
		Year:          2023,
		Month:         3,
		ViolentCount:  1,
		PropertyCount: 3,
		OtherCount:    1,
		TotalCount:    5,
	}, stats[0])
}

func TestMonthlyStats_ZeroFillsCategories(t *testing.T) {
	stats := MonthlyStats([]domain.Incident{
		incident("94601", domain.CategoryViolent, 5),
	}, march)

	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].ViolentCount)
	assert.Zero(t, stats[0].PropertyCount)
	assert.Zero(t, stats[0].OtherCount)
	assert.Equal(t, 1, stats[0].TotalCount)
}

// The reporting rollup collapses drugs, quality_of_life, and traffic into
// the other bucket. This mirrors the three-bucket rating calibration and is
// intentional, not a classification bug.
func TestMonthlyStats_CollapsesFineCategoriesIntoOther(t *testing.T) {
	stats := MonthlyStats([]domain.Incident{
		incident("94110", domain.CategoryDrugs, 1),
		incident("94110", domain.CategoryQualityOfLife, 2),
		incident("94110", domain.CategoryTraffic, 3),
		incident("94110", domain.CategoryOther, 4),
	}, march)

	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].OtherCount)
	assert.Equal(t, 4, stats[0].TotalCount)
}

func TestMonthlyStats_Filtering(t *testing.T) {
	t.Run("other months excluded", func(t *testing.T) {
		incidents := []domain.Incident{
			incident("94110", domain.CategoryViolent, 15),
			{
				Date:      time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
				CrimeType: domain.CategoryViolent,
				Zip:       "94110",
			},
		}

		stats := MonthlyStats(incidents, march)
		require.Len(t, stats, 1)
		assert.Equal(t, 1, stats[0].TotalCount)
	})

	t.Run("unresolved zips excluded", func(t *testing.T) {
		incidents := []domain.Incident{
			incident("", domain.CategoryViolent, 15), // ocean point, no polygon
			incident("94110", domain.CategoryProperty, 16),
		}

		stats := MonthlyStats(incidents, march)
		require.Len(t, stats, 1)
		assert.Equal(t, "94110", stats[0].Zip)
		assert.Equal(t, 1, stats[0].TotalCount)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, MonthlyStats(nil, march))
	})
}

func TestMonthlyStats_SortedAndRepeatable(t *testing.T) {
	incidents := []domain.Incident{
		incident("94601", domain.CategoryOther, 1),
		incident("94110", domain.CategoryViolent, 2),
		incident("94702", domain.CategoryProperty, 3),
	}

	first := MonthlyStats(incidents, march)
	second := MonthlyStats(incidents, march)

	require.Len(t, first, 3)
	assert.Equal(t, "94110", first[0].Zip)
	assert.Equal(t, "94601", first[1].Zip)
	assert.Equal(t, "94702", first[2].Zip)
	assert.Equal(t, first, second)
}

func TestMonthlyStats_TotalInvariant(t *testing.T) {
	incidents := []domain.Incident{
		incident("94110", domain.CategoryViolent, 1),
		incident("94110", domain.CategoryProperty, 2),
		incident("94110", domain.CategoryDrugs, 3),
		incident("94601", domain.CategoryTraffic, 4),
		incident("94601", domain.CategoryViolent, 5),
	}

	for _, row := range MonthlyStats(incidents, march) {
		assert.Equal(t, row.TotalCount, row.ViolentCount+row.PropertyCount+row.OtherCount, "zip %s", row.Zip)
	}
}

func TestApplyRates(t *testing.T) {
	stats := []domain.MonthlyZipStats{
		{Zip: "94110", Year: 2023, Month: 3, ViolentCount: 1, PropertyCount: 3, OtherCount: 1, TotalCount: 5},
		{Zip: "94601", Year: 2023, Month: 3, TotalCount: 2, OtherCount: 2},
		{Zip: "94702", Year: 2023, Month: 3, TotalCount: 1, OtherCount: 1},
	}
	populations := map[string]int{
		"94110": 40000,
		"94601": 0, // present but zero: rates must stay undefined
		// 94702 missing entirely
	}

	rated := ApplyRates(stats, populations)
	require.Len(t, rated, 3)

	require.NotNil(t, rated[0].TotalRate)
	assert.InDelta(t, 0.125, *rated[0].TotalRate, 1e-9)
	assert.InDelta(t, 0.025, *rated[0].ViolentRate, 1e-9)
	assert.InDelta(t, 0.075, *rated[0].PropertyRate, 1e-9)
	assert.InDelta(t, 9.975, domain.SafetyRating(*rated[0].TotalRate), 1e-9)

	assert.Nil(t, rated[1].TotalRate, "zero population must not produce a rate")
	assert.Nil(t, rated[2].TotalRate, "missing population must not produce a rate")

	// Input slice untouched.
	assert.Nil(t, stats[0].TotalRate)
}
