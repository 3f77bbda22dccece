package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLat = 44.8125
	testLon = 20.4612
)

func TestParseOffset(t *testing.T) {
	o := ParseOffset("Sunset:-10")
	assert.Equal(t, Sunset, o.Kind)
	assert.Equal(t, -10, o.Minutes)

	o = ParseOffset("garbage")
	assert.Equal(t, Sunset, o.Kind)
	assert.Equal(t, 0, o.Minutes)

	o = ParseOffset("DawnCivil:15")
	assert.Equal(t, DawnCivil, o.Kind)
	assert.Equal(t, 15, o.Minutes)
}

func TestCompute_CivilDawnBeforeSunrise(t *testing.T) {
	date := time.Date(2025, 6, 21, 12, 0, 0, 0, time.Local)

	sunrise, err := compute(Sunrise, date, testLat, testLon)
	require.NoError(t, err)

	dawn, err := compute(DawnCivil, date, testLat, testLon)
	require.NoError(t, err)

	assert.True(t, dawn.Before(sunrise), "civil dawn %v should be before sunrise %v", dawn, sunrise)
}

func TestCompute_TwilightOrdering(t *testing.T) {
	date := time.Date(2025, 6, 21, 12, 0, 0, 0, time.Local)

	astro, err := compute(DawnAstronomical, date, testLat, testLon)
	require.NoError(t, err)
	nautical, err := compute(DawnNautical, date, testLat, testLon)
	require.NoError(t, err)
	civil, err := compute(DawnCivil, date, testLat, testLon)
	require.NoError(t, err)
	sunrise, err := compute(Sunrise, date, testLat, testLon)
	require.NoError(t, err)

	assert.True(t, astro.Before(nautical))
	assert.True(t, nautical.Before(civil))
	assert.True(t, civil.Before(sunrise))
}

func TestCompute_SolarNoonBetweenSunriseAndSunset(t *testing.T) {
	date := time.Date(2025, 6, 21, 12, 0, 0, 0, time.Local)

	sunrise, err := compute(Sunrise, date, testLat, testLon)
	require.NoError(t, err)
	sunset, err := compute(Sunset, date, testLat, testLon)
	require.NoError(t, err)
	noon, err := compute(SolarNoon, date, testLat, testLon)
	require.NoError(t, err)

	assert.True(t, noon.After(sunrise))
	assert.True(t, noon.Before(sunset))
}

func TestResolve_SunsetAdvancesWhenPast(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	instant := Resolve(Sunset, past, testLat, testLon, false)
	assert.True(t, instant.After(time.Now()))
}

func TestResolve_AllowPastReturnsRequestedDay(t *testing.T) {
	date := time.Date(2025, 6, 21, 12, 0, 0, 0, time.Local)
	instant := Resolve(Sunset, date, testLat, testLon, true)
	assert.Equal(t, date.Year(), instant.Year())
	assert.Equal(t, date.Month(), instant.Month())
	assert.Equal(t, date.Day(), instant.Day())
}

func TestDDSTGuard(t *testing.T) {
	early := time.Date(2025, 3, 30, 2, 0, 0, 0, time.Local)
	guarded := ddstGuard(early)
	assert.Equal(t, 3, guarded.Hour())
	assert.Equal(t, 10, guarded.Minute())

	late := time.Date(2025, 3, 30, 14, 0, 0, 0, time.Local)
	assert.Equal(t, late, ddstGuard(late))
}
