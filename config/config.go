// Package config defines the on-disk JSON shapes for profiles and
// events (§6 of the specification) and the timestamp parsing/formatting
// helpers shared by every layer that has to cross the JSON boundary.
package config

import (
	"fmt"
	"time"
)

// timestampLayout is "yyyy-MM-ddTHH:mm:sszzz" in Go's reference-time
// notation: an ISO-8601 instant with a numeric, colon-separated UTC
// offset (e.g. "2025-09-01T12:00:00+02:00").
const timestampLayout = "2006-01-02T15:04:05-07:00"

// legacyDateLayout is "MM/dd/yyyy", the EventCfg.Date field's format.
const legacyDateLayout = "01/02/2006"

// legacyTimeLayout is "HH:mm", the EventCfg.Time field's format.
const legacyTimeLayout = "15:04"

// ParseTimestamp parses the canonical "target-time"/"last-fired" format.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatTimestamp renders t in the canonical "target-time"/"last-fired"
// format, in t's own location (local offset is expected at call sites).
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// ParseLegacyDateTime combines EventCfg's legacy "date" ("MM/dd/yyyy")
// and "time" ("HH:mm") fields into one instant, in loc.
func ParseLegacyDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(legacyDateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid legacy date %q: %w", date, err)
	}
	c, err := time.ParseInLocation(legacyTimeLayout, clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: invalid legacy time %q: %w", clock, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}

// EventCfg is the on-disk shape of one event, exactly as documented in
// the EventCfg schema table (§6). All string enums are parsed
// case-insensitively by the recurrence/types/solar packages.
type EventCfg struct {
	ID             uint     `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	RecDescription string   `json:"rec-description,omitempty"`
	Type           string   `json:"type"`
	State          string   `json:"state"`
	Frequency      string   `json:"frequency"`
	Rate           uint     `json:"rate"`
	AddRate        int32    `json:"add-rate"`
	AstroOffset    string   `json:"astro-offset,omitempty"`
	TargetTime     string   `json:"target-time,omitempty"`
	Time           string   `json:"time,omitempty"`
	Date           string   `json:"date,omitempty"`
	LastFired      string   `json:"last-fired,omitempty"`
	Acknowledge    bool     `json:"acknowledge"`
	Actions        []string `json:"actions,omitempty"`
}

// ProfileCfg is the on-disk shape of one profile file.
type ProfileCfg struct {
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	LastModified string     `json:"last-modified,omitempty"`
	Events       []EventCfg `json:"events"`
}
