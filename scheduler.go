// Package chronosched is an in-process recurring-event scheduler: it
// persists named profiles of events, arms one timer per event, and
// invokes a subscriber's callback whenever an event's target time is
// reached. See the recurrence, solar, types, and config subpackages for
// the arithmetic, astronomical resolution, shared value types, and
// on-disk JSON shapes respectively.
package chronosched

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/colinhoyt/chronosched/config"
	"github.com/colinhoyt/chronosched/types"
)

// EventFiredSubscriber is invoked synchronously, on whichever event's
// timer goroutine triggered the fire, once per occurrence.
type EventFiredSubscriber func(*Event)

// Scheduler owns every profile loaded from, or added to, one config
// directory, plus the geographic coordinates astronomical events are
// resolved against (C5).
type Scheduler struct {
	configFolder string
	coords       Coordinates

	mu       sync.RWMutex
	profiles map[string]*Profile

	subMu       sync.Mutex
	subscribers []EventFiredSubscriber
}

// New constructs a Scheduler over configFolder at the given geographic
// coordinates. Call Initialize to load any profiles already on disk.
func New(configFolder string, lat, lon float64) *Scheduler {
	return &Scheduler{
		configFolder: configFolder,
		coords:       Coordinates{Latitude: lat, Longitude: lon},
		profiles:     make(map[string]*Profile),
	}
}

// OnEventFired registers a subscriber invoked for every event fire
// across every profile this scheduler owns. Subscribers must be fast
// and non-throwing; panics are recovered and logged (§4.5, §7
// UserCallbackError).
func (s *Scheduler) OnEventFired(fn EventFiredSubscriber) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Initialize ensures the config directory exists, then loads every file
// matching "*rofile.json" (deliberately matching both "Profile" and
// "profile" spellings per §4.5). Malformed files are logged and
// skipped; the rest of the directory still loads.
func (s *Scheduler) Initialize() error {
	if err := os.MkdirAll(s.configFolder, 0o755); err != nil {
		return fmt.Errorf("chronosched: create config folder %s: %w", s.configFolder, err)
	}

	entries, err := os.ReadDir(s.configFolder)
	if err != nil {
		return fmt.Errorf("chronosched: list config folder %s: %w", s.configFolder, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "rofile.json") {
			continue
		}

		path := filepath.Join(s.configFolder, entry.Name())
		profile, err := loadProfile(path, s.coords, s.relayFire)
		if err != nil {
			slog.Error("chronosched: failed to load profile", "path", path, "error", err)
			continue
		}

		s.mu.Lock()
		if _, exists := s.profiles[profile.Name()]; exists {
			s.mu.Unlock()
			slog.Error("chronosched: duplicate profile name, skipping", "path", path, "profile", profile.Name())
			continue
		}
		s.profiles[profile.Name()] = profile
		s.mu.Unlock()
	}

	return nil
}

// relayFire is installed as every profile's fireHandler and re-emits
// fires to this scheduler's subscribers.
func (s *Scheduler) relayFire(ev *Event) {
	s.subMu.Lock()
	subs := make([]EventFiredSubscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, sub := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("chronosched: OnEventFired subscriber panicked", "event", ev.Name(), "panic", r)
				}
			}()
			sub(ev)
		}()
	}
}

func (s *Scheduler) profilePath(name string) string {
	return filepath.Join(s.configFolder, name+"-Profile.json")
}

// AddProfile constructs an empty profile and inserts it. Returns false
// on a duplicate name without modifying the existing profile.
func (s *Scheduler) AddProfile(name, description string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		slog.Error("chronosched: refusing to add profile with empty name")
		return false
	}

	profile := newProfile(name, description, s.profilePath(name), s.coords, s.relayFire)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[name]; exists {
		return false
	}
	s.profiles[name] = profile
	return true
}

// RemoveProfile disposes and deletes the named profile, including its
// backing JSON file. Returns false if no such profile exists.
func (s *Scheduler) RemoveProfile(name string) bool {
	s.mu.Lock()
	profile, ok := s.profiles[name]
	if ok {
		delete(s.profiles, name)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	profile.Dispose()
	if err := profile.deleteFile(); err != nil {
		slog.Error("chronosched: failed to delete profile file", "profile", name, "error", err)
	}
	return true
}

// GetProfile returns the named profile, if present.
func (s *Scheduler) GetProfile(name string) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[name]
	return p, ok
}

// GetProfiles returns a snapshot of every profile, sorted by name.
func (s *Scheduler) GetProfiles() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// EventSnapshot is a read-only, point-in-time view of one event
// returned by UpcomingEvents.
type EventSnapshot struct {
	ProfileName string
	EventName   string
	TargetTime  time.Time
	Type        types.EventType
	State       types.State
}

// upcomingItem implements go-datastructures' queue.Item, the same way
// the teacher's own Item type wraps types.Item for its schedule/interval
// queues, so EventSnapshot values can be ordered in the UpcomingEvents
// min-heap by target time.
type upcomingItem types.Item

func (i upcomingItem) Compare(other queue.Item) int {
	if i.Priority > other.(upcomingItem).Priority {
		return 1
	} else if i.Priority == other.(upcomingItem).Priority {
		return 0
	}
	return -1
}

// UpcomingEvents returns the next n events due to fire across every
// profile this scheduler owns, ascending by target time. It is purely
// a read — it never mutates profile state and does not interact with
// the dirty/debounce save path.
func (s *Scheduler) UpcomingEvents(n int) []EventSnapshot {
	if n <= 0 {
		return nil
	}

	pq := queue.NewPriorityQueue(n, false)

	for _, profile := range s.GetProfiles() {
		for _, ev := range profile.GetEvents() {
			if ev.State() != types.Enabled {
				continue
			}
			snap := EventSnapshot{
				ProfileName: profile.Name(),
				EventName:   ev.Name(),
				TargetTime:  ev.TargetTime(),
				Type:        ev.etype,
				State:       ev.State(),
			}
			err := pq.Put(upcomingItem{
				Value:    snap,
				Priority: float64(snap.TargetTime.Unix()),
			})
			if err != nil {
				slog.Error("chronosched: failed to enqueue upcoming-event candidate", "event", ev.Name(), "error", err)
			}
		}
	}

	out := make([]EventSnapshot, 0, n)
	for len(out) < n && pq.Len() > 0 {
		items, err := pq.Get(1)
		if err != nil || len(items) == 0 {
			break
		}
		out = append(out, items[0].(upcomingItem).Value.(EventSnapshot))
	}
	return out
}

// Dispose disposes every profile (flushing its pending save), clears the
// profile map, and drops every OnEventFired subscriber. Idempotent.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	profiles := s.profiles
	s.profiles = make(map[string]*Profile)
	s.mu.Unlock()

	for _, p := range profiles {
		p.Dispose()
	}

	s.subMu.Lock()
	s.subscribers = nil
	s.subMu.Unlock()
}

// AddEvent is a convenience wrapper equivalent to
// GetProfile(profileName) followed by Profile.AddEvent, for callers
// that only need to add one event and don't want to juggle the profile
// handle themselves.
func (s *Scheduler) AddEvent(profileName string, cfg config.EventCfg) bool {
	profile, ok := s.GetProfile(profileName)
	if !ok {
		return false
	}
	return profile.AddEvent(cfg, true)
}
