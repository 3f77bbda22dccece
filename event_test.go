package chronosched

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colinhoyt/chronosched/config"
	"github.com/colinhoyt/chronosched/recurrence"
	"github.com/colinhoyt/chronosched/types"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc := time.FixedZone("+02:00", 2*60*60)
	return loc
}

// scenario 1: a one-shot whose target is still ahead of construction
// time is accepted with its target unchanged and no last-fired time.
func TestNewEvent_OneShotFuture(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2025, 9, 1, 11, 59, 0, 0, loc)

	ev, err := newEvent(config.EventCfg{
		Name:       "porch",
		State:      "Enabled",
		Frequency:  "NotSet",
		TargetTime: "2025-09-01T12:00:00+02:00",
	}, nil, now)

	require.NoError(t, err)
	assert.Equal(t, "porch", ev.Name())
	assert.True(t, ev.TargetTime().Equal(time.Date(2025, 9, 1, 12, 0, 0, 0, loc)))
	assert.Equal(t, "One time event", ev.RecurrenceDescription())
	assert.Nil(t, ev.LastFired())
}

// scenario 2: a one-shot whose target has already passed is rejected
// outright, not retroactively fired.
func TestNewEvent_PastOneShotRejected(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2025, 9, 1, 12, 1, 0, 0, loc)

	_, err := newEvent(config.EventCfg{
		Name:       "porch",
		State:      "Enabled",
		Frequency:  "NotSet",
		TargetTime: "2025-09-01T12:00:00+02:00",
	}, nil, now)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchedule))
}

// scenario 3: every 10 minutes, constructed mid-cycle, lands on the next
// :X0 boundary.
func TestNewEvent_EveryNMinutes(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2025, 7, 15, 9, 7, 30, 0, loc)

	ev, err := newEvent(config.EventCfg{
		Name:       "tick",
		State:      "Enabled",
		Frequency:  "EveryNthMinute",
		Rate:       10,
		TargetTime: "2025-07-10T00:00:00+02:00",
	}, nil, now)

	require.NoError(t, err)
	assert.True(t, ev.TargetTime().Equal(time.Date(2025, 7, 15, 9, 10, 0, 0, loc)))
}

func TestNewEvent_DefaultsTargetTimeWhenMissing(t *testing.T) {
	now := time.Now()
	ev, err := newEvent(config.EventCfg{
		Name:  "no-target",
		State: "Enabled",
	}, nil, now)

	require.NoError(t, err)
	assert.True(t, ev.TargetTime().After(now))
}

func TestNewEvent_RejectsZeroRate(t *testing.T) {
	_, err := newEvent(config.EventCfg{
		Name:       "bad-rate",
		Frequency:  "EveryNthDay",
		Rate:       0,
		TargetTime: "2025-09-01T12:00:00+02:00",
	}, nil, time.Now())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestEvent_EnableDisable(t *testing.T) {
	loc := mustLoc(t)
	now := time.Date(2025, 7, 15, 9, 7, 30, 0, loc)

	ev, err := newEvent(config.EventCfg{
		Name:       "tick",
		State:      "Enabled",
		Frequency:  "EveryNthHour",
		Rate:       1,
		TargetTime: "2025-07-15T09:00:00+02:00",
	}, nil, now)
	require.NoError(t, err)

	ev.Disable()
	assert.Equal(t, types.Disabled, ev.State())

	ev.Disable() // no-op on already-disabled
	assert.Equal(t, types.Disabled, ev.State())

	require.NoError(t, ev.Enable())
	assert.Equal(t, types.Enabled, ev.State())
	ev.dispose()
}

func TestEvent_Actions(t *testing.T) {
	ev, err := newEvent(config.EventCfg{
		Name:       "actions",
		State:      "Disabled",
		TargetTime: "2099-01-01T00:00:00+00:00",
	}, nil, time.Now())
	require.NoError(t, err)

	ev.AddAction("turn-on-lights")
	ev.AddAction("turn-on-lights") // duplicate, ignored
	ev.AddAction("lock-door")

	assert.True(t, ev.HasAction("turn-on-lights"))
	assert.True(t, ev.HasActions())
	assert.Equal(t, []string{"turn-on-lights", "lock-door"}, ev.GetActions())

	ev.RemoveAction("turn-on-lights")
	assert.False(t, ev.HasAction("turn-on-lights"))
	assert.Equal(t, []string{"lock-door"}, ev.GetActions())

	ev.SetActions([]string{"a", "a", " b ", ""})
	assert.Equal(t, []string{"a", "b"}, ev.GetActions())

	ev.ClearActions()
	assert.False(t, ev.HasActions())
}

func TestEvent_ExecuteActions(t *testing.T) {
	ev, err := newEvent(config.EventCfg{
		Name:       "exec",
		State:      "Disabled",
		TargetTime: "2099-01-01T00:00:00+00:00",
		Actions:    []string{"ping"},
	}, nil, time.Now())
	require.NoError(t, err)

	done := make(chan string, 1)
	ev.ExecuteActions(func(action string, e *Event) error {
		done <- action
		return nil
	})

	select {
	case got := <-done:
		assert.Equal(t, "ping", got)
	case <-time.After(time.Second):
		t.Fatal("action callback never ran")
	}
}

// fire() is the synchronous half of tick(); it should update lastFired,
// advance recurring targets, and leave one-shot targets for the caller
// to remove.
func TestEvent_FireAdvancesRecurringTarget(t *testing.T) {
	loc := mustLoc(t)
	ev, err := newEvent(config.EventCfg{
		Name:       "recurring",
		State:      "Enabled",
		Frequency:  "EveryNthHour",
		Rate:       1,
		TargetTime: "2025-07-15T09:00:00+02:00",
	}, nil, time.Date(2025, 7, 15, 8, 0, 0, 0, loc))
	require.NoError(t, err)

	before := ev.TargetTime()
	ev.fire(time.Date(2025, 7, 15, 9, 0, 0, 0, loc))

	assert.True(t, ev.TargetTime().After(before))
	require.NotNil(t, ev.LastFired())
	assert.Equal(t, recurrence.Describe(ev.rule, ev.TargetTime()), ev.RecurrenceDescription())
}

func TestEvent_TickRemovesOneShotFromProfile(t *testing.T) {
	profile := newProfile("p", "", "", Coordinates{}, nil)

	require.True(t, profile.AddEvent(config.EventCfg{
		Name:       "one-shot",
		State:      "Enabled",
		Frequency:  "NotSet",
		TargetTime: "2099-01-01T00:00:00+00:00",
	}, true))

	ev, ok := profile.GetEvent("one-shot")
	require.True(t, ok)

	ev.disarm() // avoid racing the real timer armed by AddEvent
	ev.mu.Lock()
	ev.targetTime = time.Now().Add(-time.Minute)
	ev.mu.Unlock()

	ev.tick()

	_, stillThere := profile.GetEvent("one-shot")
	assert.False(t, stillThere)
}
