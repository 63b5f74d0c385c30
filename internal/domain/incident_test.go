package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonth(t *testing.T) {
	t.Run("next wraps year", func(t *testing.T) {
		m := Month{Year: 2023, Month: time.December}
		assert.Equal(t, Month{Year: 2024, Month: time.January}, m.Next())
	})

	t.Run("start and end", func(t *testing.T) {
		m := Month{Year: 2023, Month: time.February}
		assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), m.Start())
		assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), m.End())
	})

	t.Run("end handles leap years", func(t *testing.T) {
		m := Month{Year: 2024, Month: time.February}
		assert.Equal(t, 29, m.End().Day())
	})

	t.Run("contains", func(t *testing.T) {
		m := Month{Year: 2023, Month: time.March}
		assert.True(t, m.Contains(time.Date(2023, 3, 31, 23, 59, 0, 0, time.UTC)))
		assert.False(t, m.Contains(time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)))
		assert.False(t, m.Contains(time.Date(2022, 3, 15, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "2023-03", Month{Year: 2023, Month: time.March}.String())
	})
}

func TestMonthsBetween(t *testing.T) {
	t.Run("spans year boundary", func(t *testing.T) {
		months := MonthsBetween(
			Month{Year: 2022, Month: time.November},
			Month{Year: 2023, Month: time.February},
		)
		assert.Equal(t, []Month{
			{2022, time.November},
			{2022, time.December},
			{2023, time.January},
			{2023, time.February},
		}, months)
	})

	t.Run("single month", func(t *testing.T) {
		m := Month{Year: 2023, Month: time.March}
		assert.Equal(t, []Month{m}, MonthsBetween(m, m))
	})

	t.Run("inverted range is empty", func(t *testing.T) {
		assert.Nil(t, MonthsBetween(
			Month{Year: 2023, Month: time.April},
			Month{Year: 2023, Month: time.March},
		))
	})
}

func TestJurisdictionRegistry(t *testing.T) {
	specs := Jurisdictions()
	assert.Len(t, specs, 4)

	sf, err := JurisdictionByID("sf")
	assert.NoError(t, err)
	assert.Equal(t, "data.sfgov.org", sf.Domain)
	assert.Equal(t, "wg3w-h783", sf.DatasetID)
	assert.Equal(t, 50000, sf.FetchLimit)

	_, err = JurisdictionByID("gotham")
	assert.Error(t, err)

	// Jurisdictions without a bespoke mapping get the generic chains.
	m := MappingFor("san_jose")
	assert.Equal(t, genericMapping, m)
	assert.Equal(t, coordsGeoJSONPoint, MappingFor("sf").Coordinates)
}
