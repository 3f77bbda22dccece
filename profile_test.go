package chronosched

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colinhoyt/chronosched/config"
	"github.com/colinhoyt/chronosched/types"
)

func newTestProfile(t *testing.T) (*Profile, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "Test-Profile.json")
	return newProfile("Test", "a test profile", path, Coordinates{Latitude: 44.8125, Longitude: 20.4612}, nil), path
}

func TestProfile_AddEventRejectsDuplicateWithoutOverwrite(t *testing.T) {
	p, _ := newTestProfile(t)

	cfg := config.EventCfg{
		Name:       "dup",
		State:      "Disabled",
		TargetTime: "2099-01-01T00:00:00+00:00",
	}

	assert.True(t, p.AddEvent(cfg, false))
	assert.False(t, p.AddEvent(cfg, false))

	ev, ok := p.GetEvent("dup")
	require.True(t, ok)
	assert.Equal(t, "dup", ev.Name())
}

func TestProfile_AddEventOverwriteReplaces(t *testing.T) {
	p, _ := newTestProfile(t)

	cfg := config.EventCfg{
		Name:        "replaceable",
		State:       "Disabled",
		Description: "first",
		TargetTime:  "2099-01-01T00:00:00+00:00",
	}
	require.True(t, p.AddEvent(cfg, true))

	cfg.Description = "second"
	require.True(t, p.AddEvent(cfg, true))

	ev, ok := p.GetEvent("replaceable")
	require.True(t, ok)
	assert.Equal(t, "second", ev.Description())
}

func TestProfile_RemoveEvent(t *testing.T) {
	p, _ := newTestProfile(t)
	require.True(t, p.AddEvent(config.EventCfg{
		Name:       "gone",
		State:      "Disabled",
		TargetTime: "2099-01-01T00:00:00+00:00",
	}, true))

	assert.True(t, p.RemoveEvent("gone"))
	assert.False(t, p.RemoveEvent("gone"))
	_, ok := p.GetEvent("gone")
	assert.False(t, ok)
}

func TestProfile_GetEventsSortedByTargetTime(t *testing.T) {
	p, _ := newTestProfile(t)
	require.True(t, p.AddEvent(config.EventCfg{
		Name: "later", State: "Disabled", TargetTime: "2099-06-01T00:00:00+00:00",
	}, true))
	require.True(t, p.AddEvent(config.EventCfg{
		Name: "sooner", State: "Disabled", TargetTime: "2099-01-01T00:00:00+00:00",
	}, true))

	events := p.GetEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "sooner", events[0].Name())
	assert.Equal(t, "later", events[1].Name())
}

func TestProfile_EnableDisableRemoveAll(t *testing.T) {
	p, _ := newTestProfile(t)
	for _, name := range []string{"a", "b", "c"} {
		require.True(t, p.AddEvent(config.EventCfg{
			Name: name, State: "Disabled", TargetTime: "2099-01-01T00:00:00+00:00",
		}, true))
	}

	assert.True(t, p.EnableAllEvents())
	for _, ev := range p.GetEvents() {
		assert.Equal(t, types.Enabled, ev.State())
	}

	assert.True(t, p.DisableAllEvents())
	for _, ev := range p.GetEvents() {
		assert.Equal(t, types.Disabled, ev.State())
	}

	assert.True(t, p.RemoveAllEvents())
	assert.Empty(t, p.GetEvents())
}

func TestProfile_SaveAndLoadRoundTrip(t *testing.T) {
	p, path := newTestProfile(t)
	require.True(t, p.AddEvent(config.EventCfg{
		Name: "z-event", State: "Enabled", TargetTime: "2099-06-01T00:00:00+00:00",
	}, true))
	require.True(t, p.AddEvent(config.EventCfg{
		Name: "a-event", State: "Enabled", TargetTime: "2099-01-01T00:00:00+00:00",
	}, true))

	require.NoError(t, p.save())
	require.FileExists(t, path)

	reloaded, err := loadProfile(path, p.Coordinates(), nil)
	require.NoError(t, err)

	events := reloaded.GetEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "a-event", events[0].Name())
	assert.Equal(t, uint(1), events[0].ID())
	assert.Equal(t, "z-event", events[1].Name())
	assert.Equal(t, uint(2), events[1].ID())
}

func TestProfile_MarkDirtyCoalescesTimer(t *testing.T) {
	p, _ := newTestProfile(t)
	p.markDirty()
	first := p.saveTimer
	p.markDirty()
	assert.Same(t, first, p.saveTimer)
	p.dirtyMu.Lock()
	p.saveTimer.Stop()
	p.saveTimer = nil
	p.dirtyMu.Unlock()
}

func TestProfile_DisposeFlushesPendingSave(t *testing.T) {
	p, path := newTestProfile(t)
	require.True(t, p.AddEvent(config.EventCfg{
		Name: "x", State: "Disabled", TargetTime: "2099-01-01T00:00:00+00:00",
	}, true))

	p.Dispose()
	assert.FileExists(t, path)
	assert.Empty(t, p.GetEvents())
}

func TestProfile_DeleteFileIgnoresMissing(t *testing.T) {
	p, path := newTestProfile(t)
	assert.NoError(t, p.deleteFile())

	require.NoError(t, p.save())
	assert.NoError(t, os.Remove(path))
}

func TestProfile_Coordinates(t *testing.T) {
	p, _ := newTestProfile(t)
	c := p.Coordinates()
	assert.InDelta(t, 44.8125, c.Latitude, 1e-9)
	assert.InDelta(t, 20.4612, c.Longitude, 1e-9)
}

