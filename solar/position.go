package solar

import (
	"fmt"
	"math"
	"time"
)

// Depression angles, in degrees below the horizon, for the twilight
// phenomena the go-sunrise library doesn't cover on its own. These are
// the conventional values used by every civil/nautical/astronomical
// twilight definition.
const (
	civilDepression        = 6.0
	nauticalDepression     = 12.0
	astronomicalDepression = 18.0
)

// hourAngleInstant and solarNoon implement the same public-domain solar
// position equations (NOAA Solar Calculator) that underlie sunrise and
// sunset computation in general — go-sunrise covers the two depression
// angles it needs (roughly -0.833°, accounting for atmospheric
// refraction and the sun's apparent radius); this extends the same
// family of equations to arbitrary depression angles so dawn/dusk and
// solar noon can be computed without a second geometry.
func hourAngleInstant(date time.Time, lat, lon, depressionDeg float64, morning bool) (time.Time, error) {
	jd := julianDay(date)
	t := julianCentury(jd)

	decl := sunDeclination(t)
	eqTime := equationOfTime(t)

	latRad := degToRad(lat)
	declRad := degToRad(decl)
	cosHA := (math.Sin(degToRad(-depressionDeg)) - math.Sin(latRad)*math.Sin(declRad)) /
		(math.Cos(latRad) * math.Cos(declRad))

	if cosHA < -1 || cosHA > 1 {
		return time.Time{}, fmt.Errorf("solar: sun never reaches %.1f° depression on %s at lat %.4f", depressionDeg, date.Format("2006-01-02"), lat)
	}

	haDeg := radToDeg(math.Acos(cosHA))
	noonMinutesUTC := 720 - 4*lon - eqTime

	var minutesUTC float64
	if morning {
		minutesUTC = noonMinutesUTC - 4*haDeg
	} else {
		minutesUTC = noonMinutesUTC + 4*haDeg
	}

	return utcMinutesToLocal(date, minutesUTC), nil
}

func solarNoon(date time.Time, lon float64) (time.Time, error) {
	jd := julianDay(date)
	t := julianCentury(jd)
	eqTime := equationOfTime(t)
	noonMinutesUTC := 720 - 4*lon - eqTime
	return utcMinutesToLocal(date, noonMinutesUTC), nil
}

// julianDay returns the Julian day number for 12:00 UTC of date's
// calendar day.
func julianDay(date time.Time) float64 {
	utc := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)
	return float64(utc.Unix())/86400.0 + 2440587.5
}

func julianCentury(jd float64) float64 {
	return (jd - 2451545.0) / 36525.0
}

func sunGeomMeanLong(t float64) float64 {
	return math.Mod(280.46646+t*(36000.76983+t*0.0003032), 360)
}

func sunGeomMeanAnomaly(t float64) float64 {
	return 357.52911 + t*(35999.05029-0.0001537*t)
}

func eccentricityEarthOrbit(t float64) float64 {
	return 0.016708634 - t*(0.000042037+0.0000001267*t)
}

func sunEqOfCenter(t float64) float64 {
	m := degToRad(sunGeomMeanAnomaly(t))
	return math.Sin(m)*(1.914602-t*(0.004817+0.000014*t)) +
		math.Sin(2*m)*(0.019993-0.000101*t) +
		math.Sin(3*m)*0.000289
}

func sunTrueLong(t float64) float64 {
	return sunGeomMeanLong(t) + sunEqOfCenter(t)
}

func sunApparentLong(t float64) float64 {
	omega := 125.04 - 1934.136*t
	return sunTrueLong(t) - 0.00569 - 0.00478*math.Sin(degToRad(omega))
}

func meanObliquityOfEcliptic(t float64) float64 {
	seconds := 21.448 - t*(46.815+t*(0.00059-t*0.001813))
	return 23.0 + (26.0+seconds/60.0)/60.0
}

func obliquityCorrection(t float64) float64 {
	omega := 125.04 - 1934.136*t
	return meanObliquityOfEcliptic(t) + 0.00256*math.Cos(degToRad(omega))
}

func sunDeclination(t float64) float64 {
	e := degToRad(obliquityCorrection(t))
	lambda := degToRad(sunApparentLong(t))
	return radToDeg(math.Asin(math.Sin(e) * math.Sin(lambda)))
}

func equationOfTime(t float64) float64 {
	epsilon := degToRad(obliquityCorrection(t))
	l0 := degToRad(sunGeomMeanLong(t))
	e := eccentricityEarthOrbit(t)
	m := degToRad(sunGeomMeanAnomaly(t))

	y := math.Tan(epsilon/2) * math.Tan(epsilon/2)

	sin2l0 := math.Sin(2 * l0)
	sinm := math.Sin(m)
	cos2l0 := math.Cos(2 * l0)
	sin4l0 := math.Sin(4 * l0)
	sin2m := math.Sin(2 * m)

	etMinutes := y*sin2l0 - 2*e*sinm + 4*e*y*sinm*cos2l0 - 0.5*y*y*sin4l0 - 1.25*e*e*sin2m
	return radToDeg(etMinutes) * 4
}

func utcMinutesToLocal(date time.Time, minutesUTC float64) time.Time {
	for minutesUTC < 0 {
		minutesUTC += 1440
	}
	for minutesUTC >= 1440 {
		minutesUTC -= 1440
	}

	utcMidnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	instant := utcMidnight.Add(time.Duration(minutesUTC*60) * time.Second)
	return instant.In(date.Location())
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }
