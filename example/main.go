package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	chronosched "github.com/colinhoyt/chronosched"
	"github.com/colinhoyt/chronosched/config"
	"github.com/colinhoyt/chronosched/recurrence"
	"github.com/golang-cz/devslog"
)

func main() {
	slog.SetDefault(slog.New(devslog.NewHandler(os.Stdout, &devslog.Options{
		HandlerOptions: &slog.HandlerOptions{Level: slog.LevelInfo},
	})))

	sched := chronosched.New("./profiles", 44.8125, 20.4612) // Belgrade

	if err := sched.Initialize(); err != nil {
		slog.Error("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}

	sched.OnEventFired(func(ev *chronosched.Event) {
		slog.Info("event fired", "name", ev.Name(), "recurrence", ev.RecurrenceDescription())
	})

	sched.AddProfile("Evening", "lights and reminders")
	if profile, ok := sched.GetProfile("Evening"); ok {
		profile.AddEvent(config.EventCfg{
			Name:        "porch-light",
			Type:        "AstronomicalEvent",
			State:       "Enabled",
			Frequency:   "EveryNthDay",
			Rate:        1,
			AstroOffset: "Sunset:-10",
		}, true)

		profile.AddEvent(config.EventCfg{
			Name:      "weekday-standup",
			Type:      "AbsoluteEvent",
			State:     "Enabled",
			Frequency: "EveryNthWeek",
			Rate:      1,
			AddRate:   recurrence.WeekdaysMask,
			Time:      "09:00",
			Date:      "01/01/2030",
		}, true)
	}

	for _, snap := range sched.UpcomingEvents(5) {
		slog.Info("upcoming", "profile", snap.ProfileName, "event", snap.EventName, "at", snap.TargetTime)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	sched.Dispose()
}
