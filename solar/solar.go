// Package solar resolves astronomical anchors (sunrise/sunset and the
// civil/nautical/astronomical dawn/dusk twilights, plus solar noon) for
// a given date and geographic location. It is the engine's only
// dependency on an external solar-position algorithm; per §1 of the
// specification this package is a replaceable collaborator — the
// recurrence engine only ever calls Resolve.
package solar

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dromara/carbon/v2"
	sunrisepkg "github.com/nathan-osman/go-sunrise"
)

// Kind identifies a solar phenomenon.
type Kind int

const (
	Sunset Kind = iota // default
	Sunrise
	SolarNoon
	DawnCivil
	DuskCivil
	DawnNautical
	DuskNautical
	DawnAstronomical
	DuskAstronomical
)

func (k Kind) String() string {
	switch k {
	case Sunrise:
		return "Sunrise"
	case Sunset:
		return "Sunset"
	case SolarNoon:
		return "SolarNoon"
	case DawnCivil:
		return "DawnCivil"
	case DuskCivil:
		return "DuskCivil"
	case DawnNautical:
		return "DawnNautical"
	case DuskNautical:
		return "DuskNautical"
	case DawnAstronomical:
		return "DawnAstronomical"
	case DuskAstronomical:
		return "DuskAstronomical"
	default:
		return "Sunset"
	}
}

// ParseKind parses a kind name case-insensitively, defaulting to Sunset
// for anything unrecognized (per §3's astroOffset default).
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sunrise":
		return Sunrise
	case "sunset":
		return Sunset
	case "solarnoon":
		return SolarNoon
	case "dawncivil":
		return DawnCivil
	case "duskcivil":
		return DuskCivil
	case "dawnnautical":
		return DawnNautical
	case "dusknautical":
		return DuskNautical
	case "dawnastronomical":
		return DawnAstronomical
	case "duskastronomical":
		return DuskAstronomical
	default:
		return Sunset
	}
}

// Offset is a parsed astroOffset field: "<Kind>:<±minutes>".
type Offset struct {
	Kind    Kind
	Minutes int
}

// ParseOffset parses the "<Kind>:<±minutes>" form used by EventCfg's
// astro-offset field. On any parse failure it returns the documented
// default: Sunset, 0 minutes.
func ParseOffset(s string) Offset {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Offset{Kind: Sunset, Minutes: 0}
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Offset{Kind: Sunset, Minutes: 0}
	}
	return Offset{Kind: ParseKind(parts[0]), Minutes: minutes}
}

func (o Offset) String() string {
	return fmt.Sprintf("%s:%+d", o.Kind, o.Minutes)
}

// Resolve returns the instant at which the given solar phenomenon
// occurs on date, at (lat, lon). When allowPast is false the result is
// advanced a day at a time until it lands strictly after now+1 minute,
// per §4.2.
//
// Before computing, a date whose time-of-day is before 03:30 local is
// advanced to 03:10 local: a DST-transition safety heuristic that keeps
// the computation on a clock time unambiguously after any spring-forward
// transition.
func Resolve(kind Kind, date time.Time, lat, lon float64, allowPast bool) time.Time {
	now := time.Now()
	day := ddstGuard(date)

	for i := 0; i < 366; i++ {
		instant, err := compute(kind, day, lat, lon)
		if err != nil {
			slog.Error("solar: failed to compute phenomenon, using now as sentinel", "kind", kind, "error", err)
			return now
		}
		if allowPast || instant.After(now.Add(time.Minute)) {
			return instant
		}
		day = carbon.CreateFromStdTime(day).AddDay().StdTime()
	}

	slog.Error("solar: could not find a future occurrence within a year", "kind", kind)
	return now
}

// ddstGuard applies the 03:30-local DST heuristic described above.
func ddstGuard(date time.Time) time.Time {
	if date.Hour() < 3 || (date.Hour() == 3 && date.Minute() < 30) {
		return time.Date(date.Year(), date.Month(), date.Day(), 3, 10, 0, 0, date.Location())
	}
	return date
}

// compute dispatches to the sunrise/sunset library for the two kinds it
// natively supports, to the depression-angle hour-angle formula in
// position.go for every twilight kind, and to position.go's solarNoon
// for solar noon.
func compute(kind Kind, date time.Time, lat, lon float64) (time.Time, error) {
	switch kind {
	case Sunrise:
		rise, _ := sunrisepkg.SunriseSunset(lat, lon, date.Year(), date.Month(), date.Day())
		if rise.IsZero() {
			return time.Time{}, fmt.Errorf("solar: sun does not rise on %s at (%.4f,%.4f)", date.Format("2006-01-02"), lat, lon)
		}
		return rise.Local(), nil
	case Sunset:
		_, set := sunrisepkg.SunriseSunset(lat, lon, date.Year(), date.Month(), date.Day())
		if set.IsZero() {
			return time.Time{}, fmt.Errorf("solar: sun does not set on %s at (%.4f,%.4f)", date.Format("2006-01-02"), lat, lon)
		}
		return set.Local(), nil
	case SolarNoon:
		return solarNoon(date, lon)
	case DawnCivil:
		return hourAngleInstant(date, lat, lon, civilDepression, true)
	case DuskCivil:
		return hourAngleInstant(date, lat, lon, civilDepression, false)
	case DawnNautical:
		return hourAngleInstant(date, lat, lon, nauticalDepression, true)
	case DuskNautical:
		return hourAngleInstant(date, lat, lon, nauticalDepression, false)
	case DawnAstronomical:
		return hourAngleInstant(date, lat, lon, astronomicalDepression, true)
	case DuskAstronomical:
		return hourAngleInstant(date, lat, lon, astronomicalDepression, false)
	default:
		_, set := sunrisepkg.SunriseSunset(lat, lon, date.Year(), date.Month(), date.Day())
		return set.Local(), nil
	}
}
