// Package recurrence implements the pure, deterministic arithmetic that
// maps a (target, now, rule) triple onto the next fire instant. Nothing
// in this package touches a clock, a file, or a goroutine: every
// function here is safe to call from a unit test with fabricated times.
package recurrence

import (
	"fmt"
	"time"

	"github.com/dromara/carbon/v2"
)

// Kind identifies the cadence a Rule advances by.
type Kind int

const (
	// None marks a one-shot event: NextFire never advances it.
	None Kind = iota
	EveryNMinutes
	EveryNHours
	EveryNDays
	EveryNWeeks
	EveryNMonths
	EveryNYears
)

// String renders the Kind the way it appears in EventCfg.Frequency.
func (k Kind) String() string {
	switch k {
	case None:
		return "NotSet"
	case EveryNMinutes:
		return "EveryNthMinute"
	case EveryNHours:
		return "EveryNthHour"
	case EveryNDays:
		return "EveryNthDay"
	case EveryNWeeks:
		return "EveryNthWeek"
	case EveryNMonths:
		return "EveryNthMonth"
	case EveryNYears:
		return "EveryNthYear"
	default:
		return "NotSet"
	}
}

// ParseKind parses a frequency name case-insensitively, defaulting to
// None for anything unrecognized.
func ParseKind(s string) Kind {
	switch normalize(s) {
	case "everynthminute":
		return EveryNMinutes
	case "everynthhour":
		return EveryNHours
	case "everynthday":
		return EveryNDays
	case "everynthweek":
		return EveryNWeeks
	case "everynthmonth":
		return EveryNMonths
	case "everynthyear":
		return EveryNYears
	default:
		return None
	}
}

func normalize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c == ' ' || c == '_' || c == '-' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

// Weekday bitmask conventions shared with the EventCfg.AddRate field.
// Bit 0 is Sunday, matching time.Weekday's numbering directly.
const (
	WeekdaysMask = 0x3E // Monday..Friday
	WeekendsMask = 0x41 // Sunday, Saturday
	AllDaysMask  = 0x7F // every day of the week
)

// Rule is an immutable recurrence descriptor: a cadence, a rate, and
// (for weekly/monthly cadences) a day-selection bitmask.
type Rule struct {
	Kind Kind
	// Rate is the "every N" multiplier; must be >= 1 for every Kind
	// except None.
	Rate uint
	// AddRate is a bitmask: weekday selection (bit0=Sunday..bit6=Saturday)
	// for EveryNWeeks, or day-of-month selection (bit i = day i, 1<=i<=31)
	// for EveryNMonths. Ignored by every other Kind.
	AddRate int32
}

// oneMinute is the forward guard used throughout NextFire: a computed
// target must land strictly after now+oneMinute, never merely after now,
// so a timer re-armed immediately after firing can't double-fire in the
// same minute.
const oneMinute = time.Minute

// Validate reports the configuration errors NextFire would otherwise
// loop forever or panic on.
func (r Rule) Validate() error {
	if r.Kind == None {
		return nil
	}
	if r.Rate == 0 {
		return fmt.Errorf("recurrence: rate must be >= 1 for kind %s", r.Kind)
	}
	if (r.Kind == EveryNWeeks || r.Kind == EveryNMonths) && r.AddRate <= 0 {
		return fmt.Errorf("recurrence: add-rate must be > 0 for kind %s", r.Kind)
	}
	return nil
}

// NextFire advances target until it is strictly later than
// now+oneMinute, per the rule's cadence. target is returned unchanged
// when Kind is None — callers are responsible for deciding whether an
// unchanged one-shot target that is already in the past should be
// rejected (see Event construction, §4.3).
func NextFire(target, now time.Time, rule Rule) (time.Time, error) {
	if err := rule.Validate(); err != nil {
		return target, err
	}

	guard := now.Add(oneMinute)

	switch rule.Kind {
	case None:
		return target, nil
	case EveryNMinutes:
		return RoundToMinute(advanceFixed(target, guard, func(c carbon.Carbon) carbon.Carbon {
			return c.AddMinutes(int(rule.Rate))
		})), nil
	case EveryNHours:
		return RoundToMinute(advanceFixed(target, guard, func(c carbon.Carbon) carbon.Carbon {
			return c.AddHours(int(rule.Rate))
		})), nil
	case EveryNDays:
		return RoundToMinute(advanceFixed(target, guard, func(c carbon.Carbon) carbon.Carbon {
			return c.AddDays(int(rule.Rate))
		})), nil
	case EveryNYears:
		return RoundToMinute(advanceFixed(target, guard, func(c carbon.Carbon) carbon.Carbon {
			return c.AddYears(int(rule.Rate))
		})), nil
	case EveryNWeeks:
		return RoundToMinute(nextWeekly(target, guard, rule)), nil
	case EveryNMonths:
		return RoundToMinute(nextMonthly(target, guard, rule)), nil
	default:
		return target, fmt.Errorf("recurrence: unknown kind %d", rule.Kind)
	}
}

// advanceFixed repeatedly applies step until the result is after guard.
func advanceFixed(target, guard time.Time, step func(carbon.Carbon) carbon.Carbon) time.Time {
	c := carbon.CreateFromStdTime(target)
	for !c.StdTime().After(guard) {
		c = step(c)
	}
	return c.StdTime()
}

// nextWeekly implements the EveryNWeeks day-by-day scan described in
// §4.1: stay in the current week if target's own weekday bit is set and
// target is already past the guard; otherwise walk forward a day at a
// time, jumping whole "rate-1" extra weeks between scan windows once a
// week's 7 days have been exhausted without a match.
func nextWeekly(target, guard time.Time, rule Rule) time.Time {
	daysMask := rule.AddRate & 0x7F

	if target.After(guard) && weekdayBitSet(daysMask, target) {
		return target
	}

	cursor := carbon.CreateFromStdTime(target)
	for {
		for i := 0; i < 7; i++ {
			cursor = cursor.AddDays(1)
			if weekdayBitSet(daysMask, cursor.StdTime()) && cursor.StdTime().After(guard) {
				return cursor.StdTime()
			}
		}
		if rule.Rate > 1 {
			cursor = cursor.AddDays(7 * int(rule.Rate-1))
		}
	}
}

func weekdayBitSet(mask int32, t time.Time) bool {
	return mask&(1<<uint(t.Weekday())) != 0
}

// nextMonthly implements the EveryNMonths day-by-day scan described in
// §4.1: walk forward a day at a time within the current month, looking
// for a day whose bit is set in daysMask and which is after the guard;
// once the month's last day has been passed without a match, skip
// "rate-1" extra months before resuming the scan. hour:minute of target
// is preserved throughout.
func nextMonthly(target, guard time.Time, rule Rule) time.Time {
	daysMask := rule.AddRate

	cursor := carbon.CreateFromStdTime(target)
	hour, minute := cursor.Hour(), cursor.Minute()
	cursor = cursor.SetTimeMilli(hour, minute, 0, 0)

	for {
		for {
			if monthDayBitSet(daysMask, cursor.Day()) && cursor.StdTime().After(guard) {
				return cursor.StdTime()
			}
			next := cursor.AddDays(1)
			if next.Month() != cursor.Month() || next.Year() != cursor.Year() {
				cursor = next.StartOfMonth().SetTimeMilli(hour, minute, 0, 0)
				if rule.Rate > 1 {
					cursor = cursor.AddMonths(int(rule.Rate - 1))
				}
				break
			}
			cursor = next
		}
	}
}

func monthDayBitSet(mask int32, day int) bool {
	if day < 1 || day > 31 {
		return false
	}
	return mask&(1<<uint(day)) != 0
}

// RoundToMinute zeroes seconds and sub-second precision, rounding up to
// the next minute when seconds >= 30.
func RoundToMinute(t time.Time) time.Time {
	if t.Second() >= 30 {
		t = t.Add(time.Duration(60-t.Second()) * time.Second)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
}
