package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleKind discriminates a Schedule's firing rule.
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"
	ScheduleEvery ScheduleKind = "every"
	ScheduleCron  ScheduleKind = "cron"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// Schedule is a job's firing rule: a one-shot instant, a fixed repeat
// interval, or a cron expression.
type Schedule struct {
	Kind     ScheduleKind
	At       time.Time
	Every    time.Duration
	Cron     string
	Timezone string
}

// AtSchedule fires exactly once, at t.
func AtSchedule(t time.Time) Schedule {
	return Schedule{Kind: ScheduleAt, At: t}
}

// EverySchedule fires repeatedly every d, starting one interval from now.
func EverySchedule(d time.Duration) Schedule {
	return Schedule{Kind: ScheduleEvery, Every: d}
}

// CronSchedule fires according to expr, evaluated in the named timezone
// (the local zone if tz is empty). expr is validated immediately.
func CronSchedule(expr, tz string) (Schedule, error) {
	if strings.TrimSpace(expr) == "" {
		return Schedule{}, fmt.Errorf("scheduler: cron expression is required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Schedule{}, fmt.Errorf("scheduler: invalid cron expression: %w", err)
	}
	return Schedule{Kind: ScheduleCron, Cron: expr, Timezone: tz}, nil
}

// Next returns the next fire time after now for every- and
// cron-schedules. An at-schedule returns its instant while now has not
// passed it, and false once it has.
func (s Schedule) Next(now time.Time) (time.Time, bool, error) {
	switch s.Kind {
	case ScheduleAt:
		if s.At.IsZero() {
			return time.Time{}, false, fmt.Errorf("scheduler: at-schedule missing timestamp")
		}
		if now.After(s.At) {
			return time.Time{}, false, nil
		}
		return s.At, true, nil

	case ScheduleEvery:
		if s.Every <= 0 {
			return time.Time{}, false, fmt.Errorf("scheduler: every-schedule missing duration")
		}
		return now.Add(s.Every), true, nil

	case ScheduleCron:
		if s.Cron == "" {
			return time.Time{}, false, fmt.Errorf("scheduler: cron-schedule missing expression")
		}
		loc := now.Location()
		if s.Timezone != "" {
			if tz, err := time.LoadLocation(s.Timezone); err == nil {
				loc = tz
			}
		}
		expr, err := cronParser.Parse(s.Cron)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("scheduler: parse cron expression: %w", err)
		}
		next := expr.Next(now.In(loc))
		return next, !next.IsZero(), nil

	default:
		return time.Time{}, false, fmt.Errorf("scheduler: unknown schedule kind %q", s.Kind)
	}
}
