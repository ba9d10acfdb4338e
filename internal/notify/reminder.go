package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"cycle-journal/internal/cycle"
	"cycle-journal/internal/errors"
)

// DefaultReminderSchedule checks the cycle every morning at 08:00.
const DefaultReminderSchedule = "0 0 8 * * *"

// OutlookSource provides today's cycle outlook.
type OutlookSource interface {
	Today() time.Time
	Outlook(ctx context.Context, today time.Time) (cycle.Outlook, error)
}

// ReminderJob sends the cycle reminder on a cron schedule.
type ReminderJob struct {
	cron     *cron.Cron
	source   OutlookSource
	notifier *Notifier
	days     int
	logger   zerolog.Logger
	baseCtx  context.Context
}

// NewReminderJob registers the reminder. spec takes six fields with seconds
// or a descriptor.
func NewReminderJob(baseCtx context.Context, source OutlookSource, notifier *Notifier, spec string, days int, logger zerolog.Logger) (*ReminderJob, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if spec == "" {
		spec = DefaultReminderSchedule
	}
	j := &ReminderJob{
		cron:     cron.New(cron.WithSeconds()),
		source:   source,
		notifier: notifier,
		days:     days,
		logger:   logger.With().Str("component", "cycle_reminder").Logger(),
		baseCtx:  baseCtx,
	}
	if _, err := j.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(j.baseCtx, time.Minute)
		defer cancel()
		if _, err := j.Check(ctx); err != nil {
			j.logger.Error().Err(err).Msg("Cycle reminder failed")
			if serr := j.notifier.SendError(ctx, err, "cycle reminder"); serr != nil {
				j.logger.Warn().Err(serr).Msg("Failed to report reminder error")
			}
		}
	}); err != nil {
		return nil, fmt.Errorf("%w: notify.reminder_schedule %q: %v", errors.ErrConfigInvalid, spec, err)
	}
	return j, nil
}

// Check sends today's reminder if there is one, and reports whether it did.
func (j *ReminderJob) Check(ctx context.Context) (bool, error) {
	o, err := j.source.Outlook(ctx, j.source.Today())
	if err != nil {
		return false, err
	}
	n, ok := Reminder(o, j.days)
	if !ok {
		j.logger.Debug().Int("cycle_day", o.Position.CycleDay).Msg("No cycle reminder today")
		return false, nil
	}
	if err := j.notifier.Send(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// Start starts the cron loop in the background.
func (j *ReminderJob) Start() {
	j.logger.Info().Msg("Cycle reminder started")
	j.cron.Start()
}

// Stop stops the cron loop and waits for a running check to finish.
func (j *ReminderJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info().Msg("Cycle reminder stopped")
}
