// Package scheduler runs a job whenever a wall-clock trigger matches.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/codefionn/tldrbot/internal/consts"
	"github.com/codefionn/tldrbot/internal/logger"
)

// Clock is the time source of a Scheduler.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the local wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Trigger decides whether the job is due at a given instant.
type Trigger interface {
	Due(now time.Time) bool
	String() string
}

// HourTrigger fires on the first minute of a local hour of the day.
type HourTrigger struct {
	Hour int
}

// NewHourTrigger validates hour (0-23).
func NewHourTrigger(hour int) (HourTrigger, error) {
	if hour < 0 || hour > 23 {
		return HourTrigger{}, fmt.Errorf("hour must be between 0 and 23, got %d", hour)
	}
	return HourTrigger{Hour: hour}, nil
}

func (t HourTrigger) Due(now time.Time) bool {
	now = now.Local()
	return now.Hour() == t.Hour && now.Minute() == 0
}

func (t HourTrigger) String() string {
	return fmt.Sprintf("daily at %02d:00", t.Hour)
}

// CronTrigger fires on every minute matched by a cron expression.
type CronTrigger struct {
	spec string
	expr *cronexpr.Expression
}

// NewCronTrigger parses a cron expression such as "0 9 * * 1-5" or "@daily".
func NewCronTrigger(spec string) (*CronTrigger, error) {
	spec = strings.TrimSpace(spec)
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return &CronTrigger{spec: spec, expr: expr}, nil
}

func (t *CronTrigger) Due(now time.Time) bool {
	minute := now.Truncate(time.Minute)
	return t.expr.Next(minute.Add(-time.Second)).Equal(minute)
}

// Next returns the next matching instant after now.
func (t *CronTrigger) Next(now time.Time) time.Time {
	return t.expr.Next(now)
}

func (t *CronTrigger) String() string {
	return "cron " + t.spec
}

// Job is the work run on every firing.
type Job func(ctx context.Context) error

// Options configures New.
type Options struct {
	Clock Clock

	// PollInterval is the time between checks. Defaults to one minute.
	PollInterval time.Duration

	// Cooldown is the wait after a firing. Defaults to one hour.
	Cooldown time.Duration

	// MaxChecks stops Run after that many checks. Zero means unbounded.
	MaxChecks int

	Logger *slog.Logger
}

// Scheduler checks its trigger once per poll interval and runs the job when
// it is due. There is no guard against clock changes or restarts: a restart
// inside the firing minute fires again.
type Scheduler struct {
	trigger Trigger
	job     Job
	opts    Options
	log     *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler.
func New(trigger Trigger, job Job, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = consts.SchedulePollInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = consts.ScheduleCooldown
	}
	log := opts.Logger
	if log == nil {
		log = logger.Slog(logger.Global().WithPrefix("scheduler"))
	}
	return &Scheduler{
		trigger: trigger,
		job:     job,
		opts:    opts,
		log:     log,
		stop:    make(chan struct{}),
	}
}

// Run blocks until ctx is cancelled, Stop is called or MaxChecks is reached.
// Job errors are logged and do not end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", "trigger", s.trigger.String(), "poll", s.opts.PollInterval)

	for checks := 0; s.opts.MaxChecks <= 0 || checks < s.opts.MaxChecks; checks++ {
		wait := s.opts.PollInterval

		now := s.opts.Clock.Now()
		if s.trigger.Due(now) {
			s.log.Info("trigger fired", "at", now.Format(time.RFC3339))
			if err := s.job(ctx); err != nil {
				s.log.Error("scheduled run failed", "error", err)
			}
			wait = s.opts.Cooldown
		}

		select {
		case <-ctx.Done():
			s.log.Info("scheduler cancelled")
			return ctx.Err()
		case <-s.stop:
			s.log.Info("scheduler stopped")
			return nil
		case <-s.opts.Clock.After(wait):
		}
	}
	return nil
}

// Stop ends Run at its next wait. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
