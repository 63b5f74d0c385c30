package domain

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(
		NewClassifier(DefaultKeywordRules()),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func mustSpec(t *testing.T, id string) JurisdictionSpec {
	t.Helper()
	spec, err := JurisdictionByID(id)
	require.NoError(t, err)
	return spec
}

func TestNormalize_SanFrancisco(t *testing.T) {
	n := testNormalizer()
	spec := mustSpec(t, "sf")

	t.Run("explicit coordinate columns", func(t *testing.T) {
		records := []RawRecord{
			{
				"incident_date":        "2023-03-15T10:30:00.000",
				"incident_category":    "Larceny Theft",
				"incident_description": "Theft from locked vehicle",
				"latitude":             "37.7599",
				"longitude":            "-122.4148",
			},
		}

		incidents, dropped := n.Normalize(spec, records)
		require.Len(t, incidents, 1)
		assert.Zero(t, dropped)

		inc := incidents[0]
		assert.Equal(t, time.Date(2023, 3, 15, 10, 30, 0, 0, time.UTC), inc.Date)
		assert.Equal(t, "Larceny Theft", inc.Category)
		assert.Equal(t, "Theft from locked vehicle", inc.Description)
		assert.Equal(t, "San Francisco", inc.Jurisdiction)
		assert.Equal(t, CategoryProperty, inc.CrimeType)
		require.True(t, inc.HasCoordinates())
		assert.InDelta(t, 37.7599, *inc.Latitude, 1e-9)
		assert.InDelta(t, -122.4148, *inc.Longitude, 1e-9)
		assert.Empty(t, inc.Zip)
	})

	t.Run("geojson point fallback", func(t *testing.T) {
		records := []RawRecord{
			{
				"incident_date":     "2023-03-02T08:00:00.000",
				"incident_category": "Assault",
				"point": map[string]any{
					"type":        "Point",
					"coordinates": []any{-122.2711, 37.8044},
				},
			},
		}

		incidents, dropped := n.Normalize(spec, records)
		require.Len(t, incidents, 1)
		assert.Zero(t, dropped)
		require.True(t, incidents[0].HasCoordinates())
		assert.InDelta(t, 37.8044, *incidents[0].Latitude, 1e-9)
		assert.InDelta(t, -122.2711, *incidents[0].Longitude, 1e-9)
	})
}

func TestNormalize_Oakland(t *testing.T) {
	n := testNormalizer()
	spec := mustSpec(t, "oakland")

	records := []RawRecord{
		{
			"datetime":    "2023-03-20T22:15:00.000",
			"crimetype":   "ROBBERY",
			"description": "Street robbery",
			"location_1": map[string]any{
				"latitude":  "37.8044",
				"longitude": "-122.2712",
			},
		},
	}

	incidents, dropped := n.Normalize(spec, records)
	require.Len(t, incidents, 1)
	assert.Zero(t, dropped)

	inc := incidents[0]
	assert.Equal(t, "Oakland", inc.Jurisdiction)
	assert.Equal(t, "ROBBERY", inc.Category)
	assert.Equal(t, CategoryViolent, inc.CrimeType)
	require.True(t, inc.HasCoordinates())
	assert.InDelta(t, 37.8044, *inc.Latitude, 1e-9)
}

func TestNormalize_GenericJurisdiction(t *testing.T) {
	n := testNormalizer()
	spec := mustSpec(t, "berkeley")

	records := []RawRecord{
		{
			"call_date": "2023-03-05",
			"crime":     "Vandalism",
			"narrative": "Broken storefront window",
			"lat":       "37.8715",
			"lng":       "-122.2730",
		},
	}

	incidents, dropped := n.Normalize(spec, records)
	require.Len(t, incidents, 1)
	assert.Zero(t, dropped)

	inc := incidents[0]
	assert.Equal(t, "Berkeley", inc.Jurisdiction)
	assert.Equal(t, CategoryProperty, inc.CrimeType)
	require.True(t, inc.HasCoordinates())
	assert.InDelta(t, -122.2730, *inc.Longitude, 1e-9)
}

func TestNormalize_Degradation(t *testing.T) {
	n := testNormalizer()
	spec := mustSpec(t, "sf")

	t.Run("unparseable dates dropped and counted", func(t *testing.T) {
		records := []RawRecord{
			{"incident_date": "2023-03-01T00:00:00.000", "incident_category": "Theft"},
			{"incident_date": "not a date", "incident_category": "Theft"},
			{"incident_date": nil, "incident_category": "Theft"},
		}

		incidents, dropped := n.Normalize(spec, records)
		assert.Len(t, incidents, 1)
		assert.Equal(t, 2, dropped)
	})

	t.Run("missing category defaults to other", func(t *testing.T) {
		records := []RawRecord{
			{"incident_date": "2023-03-01T00:00:00.000"},
		}

		incidents, _ := n.Normalize(spec, records)
		require.Len(t, incidents, 1)
		assert.Empty(t, incidents[0].Category)
		assert.Equal(t, CategoryOther, incidents[0].CrimeType)
	})

	t.Run("no date column drops whole batch", func(t *testing.T) {
		records := []RawRecord{
			{"incident_category": "Theft"},
			{"incident_category": "Assault"},
		}

		incidents, dropped := n.Normalize(spec, records)
		assert.Empty(t, incidents)
		assert.Equal(t, 2, dropped)
	})

	t.Run("missing coordinates leave nil fields", func(t *testing.T) {
		records := []RawRecord{
			{"incident_date": "2023-03-01T00:00:00.000", "incident_category": "Theft"},
		}

		incidents, _ := n.Normalize(spec, records)
		require.Len(t, incidents, 1)
		assert.Nil(t, incidents[0].Latitude)
		assert.Nil(t, incidents[0].Longitude)
		assert.False(t, incidents[0].HasCoordinates())
	})

	t.Run("malformed nested point", func(t *testing.T) {
		records := []RawRecord{
			{"incident_date": "2023-03-01T00:00:00.000", "point": "not an object"},
			{"incident_date": "2023-03-01T00:00:00.000", "point": map[string]any{"coordinates": []any{-122.4}}},
		}

		incidents, _ := n.Normalize(spec, records)
		require.Len(t, incidents, 2)
		for _, inc := range incidents {
			assert.False(t, inc.HasCoordinates())
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		incidents, dropped := n.Normalize(spec, nil)
		assert.Empty(t, incidents)
		assert.Zero(t, dropped)
	})
}

// Sparse Socrata rows omit null columns entirely, so the header set must be
// the union across the batch, not the first row's keys.
func TestNormalize_SparseRows(t *testing.T) {
	n := testNormalizer()
	spec := mustSpec(t, "sf")

	records := []RawRecord{
		{"incident_date": "2023-03-01T00:00:00.000"},
		{
			"incident_date":     "2023-03-02T00:00:00.000",
			"incident_category": "Burglary",
			"latitude":          "37.76",
			"longitude":         "-122.41",
		},
	}

	incidents, dropped := n.Normalize(spec, records)
	require.Len(t, incidents, 2)
	assert.Zero(t, dropped)
	assert.Equal(t, CategoryOther, incidents[0].CrimeType)
	assert.Equal(t, CategoryProperty, incidents[1].CrimeType)
	assert.True(t, incidents[1].HasCoordinates())
}
