package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"cycle-journal/internal/errors"
)

// DefaultSchedule refreshes accounts every fifteen minutes.
const DefaultSchedule = "@every 15m"

// Scheduler runs SyncAll on a cron schedule while the server is up.
type Scheduler struct {
	cron    *cron.Cron
	syncer  *Syncer
	logger  zerolog.Logger
	timeout time.Duration
	baseCtx context.Context
	entry   cron.EntryID

	mu       sync.Mutex
	running  bool
	last     *SyncReport
	onReport func(context.Context, *SyncReport)
}

// NewScheduler registers the sync job. spec accepts six-field cron
// expressions (with seconds) and descriptors such as "@every 15m". Each
// run is cut off after timeout.
func NewScheduler(baseCtx context.Context, syncer *Syncer, spec string, timeout time.Duration, logger zerolog.Logger) (*Scheduler, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		syncer:  syncer,
		logger:  logger.With().Str("component", "sync_scheduler").Logger(),
		timeout: timeout,
		baseCtx: baseCtx,
	}
	entry, err := s.cron.AddFunc(spec, func() { s.RunNow(s.baseCtx) })
	if err != nil {
		return nil, fmt.Errorf("%w: sync.schedule %q: %v", errors.ErrConfigInvalid, spec, err)
	}
	s.entry = entry
	return s, nil
}

// RunNow runs one sync pass unless one is already in progress, and
// reports whether it ran.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug().Msg("Sync already running, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	report, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled sync failed")
	}

	s.mu.Lock()
	s.running = false
	if report != nil {
		s.last = report
	}
	hook := s.onReport
	s.mu.Unlock()

	if hook != nil && report != nil {
		hook(ctx, report)
	}
	return true
}

// OnReport registers fn to receive the report of every completed run.
func (s *Scheduler) OnReport(fn func(context.Context, *SyncReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReport = fn
}

// Last returns the report of the most recent run, if any.
func (s *Scheduler) Last() *SyncReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Next returns when the job runs next. It is zero until Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Start starts the cron loop in the background.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("Sync scheduler started")
	s.cron.Start()
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Sync scheduler stopped")
}
