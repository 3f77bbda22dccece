package recurrence

import (
	"fmt"
	"strings"
	"time"
)

var weekdayAbbrev = [7]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// Describe renders the deterministic, human-readable recurrence string
// documented in §4.1. target supplies the day/month used by the
// EveryNYears case; it is ignored by every other Kind.
func Describe(rule Rule, target time.Time) string {
	switch rule.Kind {
	case None:
		return "One time event"
	case EveryNMinutes:
		return fmt.Sprintf("Every(%d)Minute", rule.Rate)
	case EveryNHours:
		return fmt.Sprintf("Every(%d)Hour", rule.Rate)
	case EveryNDays:
		return fmt.Sprintf("Every(%d)Day", rule.Rate)
	case EveryNWeeks:
		return fmt.Sprintf("Every(%d)Week (%s)", rule.Rate, describeWeekMask(rule.AddRate))
	case EveryNMonths:
		return fmt.Sprintf("Every(%d)Month (%s)", rule.Rate, describeMonthMask(rule.AddRate))
	case EveryNYears:
		return fmt.Sprintf("Every(%d)Year (%02d/%02d)", rule.Rate, target.Day(), int(target.Month()))
	default:
		return "One time event"
	}
}

func describeWeekMask(mask int32) string {
	var b strings.Builder
	found := false
	for i := 0; i < 7; i++ {
		if mask&(1<<uint(i)) != 0 {
			found = true
			b.WriteByte('-')
			b.WriteString(weekdayAbbrev[i])
		}
	}
	if !found {
		return "-"
	}
	b.WriteByte('-')
	return b.String()
}

func describeMonthMask(mask int32) string {
	var b strings.Builder
	found := false
	for day := 1; day <= 31; day++ {
		if mask&(1<<uint(day)) != 0 {
			found = true
			fmt.Fprintf(&b, "-%d.", day)
		}
	}
	if !found {
		return "-"
	}
	b.WriteByte('-')
	return b.String()
}
