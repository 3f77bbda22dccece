package chronosched

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/colinhoyt/chronosched/config"
	"github.com/colinhoyt/chronosched/recurrence"
	"github.com/colinhoyt/chronosched/solar"
	"github.com/colinhoyt/chronosched/types"
)

// EventFiredFunc is invoked synchronously, on the timer's own goroutine,
// whenever an event's target time is reached. Implementations must not
// assume they run on any particular goroutine and should return
// quickly — the engine applies no backpressure to callbacks (§1).
type EventFiredFunc func(*Event)

// defaultAstroOffset is used whenever an Astronomical event's
// astro-offset field is empty (§3). A non-empty offset that fails to
// parse resolves to Sunset with a zero minute offset (solar.ParseOffset).
const defaultAstroOffset = "Sunset:-10"

// Event owns one recurrence rule, one target time, and the one-shot
// timer that advances both. Name is the event's identity within its
// owning Profile and never changes after construction.
type Event struct {
	name string // immutable identity

	mu             sync.Mutex
	id             uint
	description    string
	recDescription string
	state          types.State
	etype          types.EventType
	rule           recurrence.Rule
	astroOffset    string
	targetTime     time.Time
	lastFired      *time.Time
	actions        []string
	acknowledge    bool // reserved field, preserved verbatim across save/load

	profile     *Profile
	fireHandler EventFiredFunc

	timerMu sync.Mutex
	timer   *time.Timer
}

// newEvent constructs an Event from its on-disk record, per the
// construction steps in §4.3; arming the timer of an enabled event is
// left to Profile.AddEvent. now is passed in (rather than read from
// time.Now() internally) so tests can exercise every branch
// deterministically.
func newEvent(cfg config.EventCfg, profile *Profile, now time.Time) (*Event, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: event name is empty", ErrConfig)
	}

	etype := types.ParseEventType(cfg.Type)
	state := types.ParseState(cfg.State)
	kind := recurrence.ParseKind(cfg.Frequency)
	rule := recurrence.Rule{Kind: kind, Rate: cfg.Rate, AddRate: cfg.AddRate}

	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, name, err)
	}

	astroOffset := strings.TrimSpace(cfg.AstroOffset)
	if etype == types.Astronomical {
		if astroOffset == "" {
			astroOffset = defaultAstroOffset
		}
	} else {
		astroOffset = ""
	}

	target, err := resolveInitialTarget(cfg, now)
	if err != nil {
		slog.Warn("chronosched: defaulting target time", "event", name, "error", err)
	}

	lastFired, err := parseLastFired(cfg.LastFired)
	if err != nil {
		slog.Warn("chronosched: ignoring unparseable last-fired", "event", name, "error", err)
	}

	ev := &Event{
		name:        name,
		id:          cfg.ID,
		description: cfg.Description,
		state:       state,
		etype:       etype,
		rule:        rule,
		astroOffset: astroOffset,
		targetTime:  target,
		lastFired:   lastFired,
		actions:     dedupeActions(cfg.Actions),
		acknowledge: cfg.Acknowledge,
		profile:     profile,
	}

	if err := ev.advanceAndRound(now); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfig, name, err)
	}

	if rule.Kind == recurrence.None && ev.targetTime.Before(now) {
		return nil, fmt.Errorf("%w: %s: one-shot target %s is in the past", ErrSchedule, name, ev.targetTime)
	}

	ev.recDescription = recurrence.Describe(rule, ev.targetTime)

	return ev, nil
}

// resolveInitialTarget implements construction step 3: prefer
// target-time, fall back to legacy date+time, and finally default to
// now+5 minutes with a logged warning.
func resolveInitialTarget(cfg config.EventCfg, now time.Time) (time.Time, error) {
	if cfg.TargetTime != "" {
		t, err := config.ParseTimestamp(cfg.TargetTime)
		if err == nil {
			return t, nil
		}
		return now.Add(5 * time.Minute), err
	}
	if cfg.Date != "" && cfg.Time != "" {
		t, err := config.ParseLegacyDateTime(cfg.Date, cfg.Time, now.Location())
		if err == nil {
			return t, nil
		}
		return now.Add(5 * time.Minute), err
	}
	return now.Add(5 * time.Minute), fmt.Errorf("no target-time or date+time provided")
}

func parseLastFired(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := config.ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func dedupeActions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}

// advanceAndRound brings ev.targetTime into the future per the
// recurrence rule (or leaves it untouched for Kind == None), resolves
// astronomical anchoring, and rounds to the minute. It takes no lock
// itself: newEvent calls it before ev is shared, and fire and Enable
// call it with ev.mu held.
func (ev *Event) advanceAndRound(now time.Time) error {
	next, err := recurrence.NextFire(ev.targetTime, now, ev.rule)
	if err != nil {
		return err
	}

	if ev.etype == types.Astronomical {
		next = ev.resolveAstro(next)
	}

	ev.targetTime = recurrence.RoundToMinute(next)
	return nil
}

// resolveAstro applies §4.3's astronomical resolution step: parse the
// offset, ask the solar resolver for that phenomenon on nominal's date,
// then add the signed minute offset.
func (ev *Event) resolveAstro(nominal time.Time) time.Time {
	offset := solar.ParseOffset(ev.astroOffset)

	coords := ev.profile.Coordinates()
	instant := solar.Resolve(offset.Kind, nominal, coords.Latitude, coords.Longitude, true)
	return instant.Add(time.Duration(offset.Minutes) * time.Minute)
}

// Name returns the event's immutable identity within its profile.
func (ev *Event) Name() string { return ev.name }

// ID returns the display-order identifier, renumbered 1..N on save.
func (ev *Event) ID() uint {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.id
}

// State returns whether the event is Enabled or Disabled.
func (ev *Event) State() types.State {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.state
}

// TargetTime returns the next fire instant.
func (ev *Event) TargetTime() time.Time {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.targetTime
}

// LastFired returns the last fire instant, or nil if the event has
// never fired.
func (ev *Event) LastFired() *time.Time {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if ev.lastFired == nil {
		return nil
	}
	t := *ev.lastFired
	return &t
}

// RecurrenceDescription returns the deterministic, human-readable
// recurrence string (§4.1), kept live across enable/disable and
// recurrence advances rather than only recomputed at save time.
func (ev *Event) RecurrenceDescription() string {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.recDescription
}

// Description returns the event's free-text description.
func (ev *Event) Description() string {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.description
}

// arm schedules the timer to fire at the next exact minute boundary. It
// is idempotent: calling it while already armed replaces the pending
// timer.
func (ev *Event) arm() {
	ev.timerMu.Lock()
	defer ev.timerMu.Unlock()

	if ev.timer != nil {
		ev.timer.Stop()
	}

	delay := delayToNextMinute(time.Now())
	ev.timer = time.AfterFunc(delay, ev.tick)
}

// disarm stops the timer without re-arming it.
func (ev *Event) disarm() {
	ev.timerMu.Lock()
	defer ev.timerMu.Unlock()
	if ev.timer != nil {
		ev.timer.Stop()
		ev.timer = nil
	}
}

func delayToNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

// tick is the timer callback described in §4.3's "Timer semantics".
// Exceptions inside the fan-out to subscribers are recovered and logged
// per §7's TimerError: the event is still re-armed and its state is
// not corrupted.
func (ev *Event) tick() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chronosched: recovered from timer panic", "event", ev.name, "panic", r)
		}
	}()

	now := time.Now()

	ev.mu.Lock()
	shouldFire := !now.Before(ev.targetTime)
	kind := ev.rule.Kind
	ev.mu.Unlock()

	if shouldFire {
		ev.fire(now)
		if kind == recurrence.None {
			if ev.profile != nil {
				ev.profile.removeByFire(ev.name)
			}
			return
		}
	}

	ev.arm()
}

// fire invokes the subscriber synchronously, then records lastFired and
// advances targetTime for recurring events.
func (ev *Event) fire(now time.Time) {
	if ev.fireHandler != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("chronosched: subscriber panicked on fire", "event", ev.name, "panic", r)
				}
			}()
			ev.fireHandler(ev)
		}()
	}

	ev.mu.Lock()
	ev.lastFired = &now
	kind := ev.rule.Kind
	ev.mu.Unlock()

	if ev.profile != nil {
		ev.profile.markDirty()
	}

	if kind != recurrence.None {
		ev.mu.Lock()
		if err := ev.advanceAndRound(now); err != nil {
			slog.Error("chronosched: failed to advance recurrence after fire", "event", ev.name, "error", err)
		}
		ev.recDescription = recurrence.Describe(ev.rule, ev.targetTime)
		ev.mu.Unlock()
	}
}

// Enable arms the event's timer, recomputing its next target so it
// lands in the future. Enabling an already-enabled event is a no-op
// success.
func (ev *Event) Enable() error {
	ev.mu.Lock()
	alreadyEnabled := ev.state == types.Enabled
	if !alreadyEnabled {
		if err := ev.advanceAndRound(time.Now()); err != nil {
			ev.mu.Unlock()
			return fmt.Errorf("%w: %s: %v", ErrConfig, ev.name, err)
		}
		ev.recDescription = recurrence.Describe(ev.rule, ev.targetTime)
		ev.state = types.Enabled
	}
	ev.mu.Unlock()

	if !alreadyEnabled {
		ev.arm()
		if ev.profile != nil {
			ev.profile.markDirty()
		}
	}
	return nil
}

// Disable stops the event's timer. Disabling an already-disabled event
// is a no-op success.
func (ev *Event) Disable() {
	ev.mu.Lock()
	alreadyDisabled := ev.state == types.Disabled
	ev.state = types.Disabled
	ev.mu.Unlock()

	if !alreadyDisabled {
		ev.disarm()
		if ev.profile != nil {
			ev.profile.markDirty()
		}
	}
}

// AddAction appends action to the event's action list unless it's
// already present (exact-match set semantics).
func (ev *Event) AddAction(action string) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	ev.mu.Lock()
	for _, a := range ev.actions {
		if a == action {
			ev.mu.Unlock()
			return
		}
	}
	ev.actions = append(ev.actions, action)
	ev.mu.Unlock()
	ev.markDirty()
}

// RemoveAction removes action from the event's action list, if present.
func (ev *Event) RemoveAction(action string) {
	ev.mu.Lock()
	for i, a := range ev.actions {
		if a == action {
			ev.actions = append(ev.actions[:i], ev.actions[i+1:]...)
			ev.mu.Unlock()
			ev.markDirty()
			return
		}
	}
	ev.mu.Unlock()
}

// ClearActions removes every action from the event's action list.
func (ev *Event) ClearActions() {
	ev.mu.Lock()
	ev.actions = nil
	ev.mu.Unlock()
	ev.markDirty()
}

// SetActions replaces the event's action list wholesale, deduplicating
// by exact match and dropping blank entries.
func (ev *Event) SetActions(actions []string) {
	ev.mu.Lock()
	ev.actions = dedupeActions(actions)
	ev.mu.Unlock()
	ev.markDirty()
}

// GetActions returns a snapshot of the event's action list.
func (ev *Event) GetActions() []string {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make([]string, len(ev.actions))
	copy(out, ev.actions)
	return out
}

// HasAction reports whether action is present by exact match.
func (ev *Event) HasAction(action string) bool {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	for _, a := range ev.actions {
		if a == action {
			return true
		}
	}
	return false
}

// HasActions reports whether the event has any action configured.
func (ev *Event) HasActions() bool {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return len(ev.actions) > 0
}

// ActionCallback is invoked once per configured action when
// ExecuteActions runs. Errors it returns are not observed by the event.
type ActionCallback func(actionName string, ev *Event) error

// ExecuteActions invokes callback once per configured action,
// concurrently, without blocking the caller. Per §4.3, callback errors
// are not observed by the event.
func (ev *Event) ExecuteActions(callback ActionCallback) {
	actions := ev.GetActions()
	for _, a := range actions {
		a := a
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("chronosched: action callback panicked", "event", ev.name, "action", a, "panic", r)
				}
			}()
			if err := callback(a, ev); err != nil {
				slog.Debug("chronosched: action callback returned error", "event", ev.name, "action", a, "error", err)
			}
		}()
	}
}

func (ev *Event) markDirty() {
	if ev.profile != nil {
		ev.profile.markDirty()
	}
}

// dispose permanently stops the event's timer. It is safe to call from
// within the event's own tick.
func (ev *Event) dispose() {
	ev.disarm()
}

// toConfig renders the event's current in-memory state back into its
// on-disk shape, for Profile's save path. id overrides the display
// order (renumbered by the caller, sorted by target time).
func (ev *Event) toConfig(id uint) config.EventCfg {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	cfg := config.EventCfg{
		ID:             id,
		Name:           ev.name,
		Description:    ev.description,
		RecDescription: ev.recDescription,
		Type:           ev.etype.String(),
		State:          ev.state.String(),
		Frequency:      ev.rule.Kind.String(),
		Rate:           ev.rule.Rate,
		AddRate:        ev.rule.AddRate,
		AstroOffset:    ev.astroOffset,
		TargetTime:     config.FormatTimestamp(ev.targetTime),
		Acknowledge:    ev.acknowledge,
		Actions:        append([]string(nil), ev.actions...),
	}
	if ev.lastFired != nil {
		cfg.LastFired = config.FormatTimestamp(*ev.lastFired)
	}
	return cfg
}
