package chronosched

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/colinhoyt/chronosched/config"
	"github.com/colinhoyt/chronosched/types"
)

// saveDebounce is the delay between a profile's first dirty edge in a
// burst and the resulting write (§4.4).
const saveDebounce = 3 * time.Second

// fileMu is the process-wide serialization mutex gating every profile's
// file write, shared by every Profile instance — not one per profile —
// so total write concurrency across the whole process is bounded to one
// writer at a time (§4.4, §9 "Global file mutex").
var fileMu sync.Mutex

// Coordinates anchors a profile's astronomical events to a point on
// Earth.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Profile is a named, persisted container of events (C4). Its name is
// immutable; description and event set mutate behind mu, the dirty flag
// and save timer behind dirtyMu.
type Profile struct {
	name string

	mu           sync.RWMutex
	description  string
	lastModified time.Time
	events       map[string]*Event
	coords       Coordinates
	configPath   string
	fireHandler  func(*Event)

	dirtyMu   sync.Mutex
	dirty     bool
	saveTimer *time.Timer
}

func newProfile(name, description, configPath string, coords Coordinates, fireHandler func(*Event)) *Profile {
	return &Profile{
		name:        name,
		description: description,
		events:      make(map[string]*Event),
		coords:      coords,
		configPath:  configPath,
		fireHandler: fireHandler,
	}
}

// loadProfile reads one profile JSON file, constructs the Profile, and
// adds every event config it contains (§4.5's per-file load step).
// Errors in individual event records do not abort the load — AddEvent
// logs and skips them.
func loadProfile(path string, coords Coordinates, fireHandler func(*Event)) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chronosched: read %s: %w", path, err)
	}

	var record config.ProfileCfg
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}

	name := strings.TrimSpace(record.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: %s: profile name is empty", ErrConfig, path)
	}

	p := newProfile(name, record.Description, path, coords, fireHandler)
	for _, cfg := range record.Events {
		p.AddEvent(cfg, true)
	}
	return p, nil
}

// Name returns the profile's immutable identity.
func (p *Profile) Name() string { return p.name }

// Description returns the profile's free-text description.
func (p *Profile) Description() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.description
}

// LastModified returns the instant of the profile's most recent
// successful save, the zero Time if it has never been saved.
func (p *Profile) LastModified() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastModified
}

// Coordinates returns the geographic point this profile's astronomical
// events are anchored to.
func (p *Profile) Coordinates() Coordinates {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.coords
}

// AddEvent constructs an event from cfg and inserts it under its name.
// When overwrite is true (the documented default), any existing event
// of the same name is removed first, and stays removed even if the new
// event then fails to construct. Construction failures and name
// collisions are logged and reported as false.
func (p *Profile) AddEvent(cfg config.EventCfg, overwrite bool) bool {
	if overwrite {
		p.RemoveEvent(cfg.Name)
	}

	ev, err := newEvent(cfg, p, time.Now())
	if err != nil {
		slog.Error("chronosched: failed to construct event", "profile", p.name, "event", cfg.Name, "error", err)
		return false
	}
	ev.fireHandler = p.relayFire

	p.mu.Lock()
	if _, exists := p.events[ev.name]; exists {
		p.mu.Unlock()
		slog.Error("chronosched: duplicate event name", "profile", p.name, "event", ev.name)
		return false
	}
	p.events[ev.name] = ev
	p.mu.Unlock()

	if ev.State() == types.Enabled {
		ev.arm()
	}
	p.markDirty()
	return true
}

// RemoveEvent removes and disposes the named event. Returns false if
// no such event exists.
func (p *Profile) RemoveEvent(name string) bool {
	p.mu.Lock()
	ev, ok := p.events[name]
	if ok {
		delete(p.events, name)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	ev.dispose()
	p.markDirty()
	return true
}

// removeByFire is the self-removal path an event takes when a kind ==
// None event fires: the event has already stopped its own timer, so
// this only needs to detach it from the map.
func (p *Profile) removeByFire(name string) {
	p.RemoveEvent(name)
}

// GetEvent returns the named event, if present.
func (p *Profile) GetEvent(name string) (*Event, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ev, ok := p.events[name]
	return ev, ok
}

// GetEvents returns a snapshot of every event, sorted ascending by
// target time.
func (p *Profile) GetEvents() []*Event {
	events := p.snapshotEvents()
	sort.Slice(events, func(i, j int) bool {
		return events[i].TargetTime().Before(events[j].TargetTime())
	})
	return events
}

func (p *Profile) snapshotEvents() []*Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Event, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev)
	}
	return out
}

// EnableAllEvents enables every event in the profile, folding the
// per-event results with AND.
func (p *Profile) EnableAllEvents() bool {
	ok := true
	for _, ev := range p.snapshotEvents() {
		if err := ev.Enable(); err != nil {
			slog.Error("chronosched: failed to enable event", "profile", p.name, "event", ev.Name(), "error", err)
			ok = false
		}
	}
	p.markDirty()
	return ok
}

// DisableAllEvents disables every event in the profile.
func (p *Profile) DisableAllEvents() bool {
	for _, ev := range p.snapshotEvents() {
		ev.Disable()
	}
	p.markDirty()
	return true
}

// RemoveAllEvents removes every event in the profile, folding the
// per-event results with AND.
func (p *Profile) RemoveAllEvents() bool {
	ok := true
	for _, ev := range p.snapshotEvents() {
		if !p.RemoveEvent(ev.Name()) {
			ok = false
		}
	}
	return ok
}

// relayFire is installed as every owned event's fireHandler: it
// re-emits the fire as an OnProfileEventFired notification to whichever
// subscriber the Scheduler installed.
func (p *Profile) relayFire(ev *Event) {
	p.mu.RLock()
	handler := p.fireHandler
	p.mu.RUnlock()

	if handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chronosched: profile subscriber panicked", "profile", p.name, "event", ev.Name(), "panic", r)
		}
	}()
	handler(ev)
}

// markDirty arms the save timer if it isn't already pending. Per §4.4,
// repeated dirty edges within one debounce window coalesce into the one
// pending timer rather than restarting it.
func (p *Profile) markDirty() {
	p.dirtyMu.Lock()
	defer p.dirtyMu.Unlock()
	p.dirty = true
	if p.saveTimer == nil {
		p.saveTimer = time.AfterFunc(saveDebounce, p.onSaveTimer)
	}
}

func (p *Profile) onSaveTimer() {
	p.dirtyMu.Lock()
	p.saveTimer = nil
	dirty := p.dirty
	p.dirtyMu.Unlock()

	if !dirty {
		return
	}

	if err := p.save(); err != nil {
		slog.Error("chronosched: failed to save profile", "profile", p.name, "error", err)
		return
	}

	p.dirtyMu.Lock()
	p.dirty = false
	p.dirtyMu.Unlock()
}

// save renders the current event set to JSON and writes it to
// configPath, gated by the process-wide file mutex. Event ids are
// renumbered 1..N by ascending target time (§4.4's "Save content").
func (p *Profile) save() error {
	events := p.GetEvents()

	cfgs := make([]config.EventCfg, len(events))
	for i, ev := range events {
		cfgs[i] = ev.toConfig(uint(i + 1))
	}

	now := time.Now()

	p.mu.RLock()
	description := p.description
	p.mu.RUnlock()

	record := config.ProfileCfg{
		Name:         p.name,
		Description:  description,
		LastModified: config.FormatTimestamp(now),
		Events:       cfgs,
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrConfig, p.name, err)
	}

	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.WriteFile(p.configPath, data, 0o644); err != nil {
		return fmt.Errorf("chronosched: write %s: %w", p.configPath, err)
	}

	p.mu.Lock()
	p.lastModified = now
	p.mu.Unlock()

	return nil
}

// deleteFile removes the profile's backing JSON file, used by
// Scheduler.RemoveProfile. A missing file is not an error.
func (p *Profile) deleteFile() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.Remove(p.configPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chronosched: remove %s: %w", p.configPath, err)
	}
	return nil
}

// Dispose disarms the save timer, flushes a pending dirty save
// synchronously, then disposes and drops every event. Idempotent.
func (p *Profile) Dispose() {
	p.dirtyMu.Lock()
	if p.saveTimer != nil {
		p.saveTimer.Stop()
		p.saveTimer = nil
	}
	dirty := p.dirty
	p.dirtyMu.Unlock()

	if dirty {
		if err := p.save(); err != nil {
			slog.Error("chronosched: failed final save on dispose", "profile", p.name, "error", err)
		} else {
			p.dirtyMu.Lock()
			p.dirty = false
			p.dirtyMu.Unlock()
		}
	}

	p.mu.Lock()
	events := p.events
	p.events = make(map[string]*Event)
	p.mu.Unlock()

	for _, ev := range events {
		ev.dispose()
	}
}
