// Package scheduler fires full-sync triggers on a cron schedule (§4.7).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/gate"
	"github.com/robfig/cron/v3"
)

// Scheduler fires orchestrator.FullSync(source="schedule") on a cron
// expression. A tick that cannot acquire the gate within the standard
// timeout is skipped with a WARNING; the schedule itself is never blocked.
type Scheduler struct {
	cron       *cron.Cron
	entryID    cron.EntryID
	crontab    string
	fullSyncFn func(ctx context.Context) error
	logger     *slog.Logger
	running    atomic.Bool
}

// FullSyncFunc runs one scheduled full sync, returning any error for
// logging. Implementations are expected to apply their own gate timeout.
type FullSyncFunc func(ctx context.Context) error

// New parses crontab and registers fullSync as the job body. It returns
// an error immediately if crontab is not a valid 5-field expression
// (§4.7: "rejects invalid expressions at startup").
func New(crontab string, fullSync FullSyncFunc, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(crontab); err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", domain.ErrConfigInvalid, crontab, err)
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithParser(parser)),
		crontab:    crontab,
		fullSyncFn: fullSync,
		logger:     logger,
	}

	id, err := s.cron.AddFunc(crontab, s.runTick)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Scheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), gate.DefaultTimeout+5*time.Second)
	defer cancel()

	intent := domain.FullSyncIntent(uuid.New().String(), domain.SourceSchedule, time.Now())
	s.logger.Debug("scheduled full sync firing", "intent_id", intent.ID, "crontab", s.crontab)
	if err := s.fullSyncFn(ctx); err != nil {
		if isGateTimeout(err) {
			s.logger.Warn("scheduled full sync skipped: gate busy", "intent_id", intent.ID, "error", err)
			return
		}
		s.logger.Error("scheduled full sync failed", "intent_id", intent.ID, "error", err)
		return
	}
	s.logger.Info("scheduled full sync completed", "intent_id", intent.ID)
}

func isGateTimeout(err error) bool {
	return err != nil && errors.Is(err, domain.ErrGateTimeout)
}

// Start begins the cron goroutine. It does not block.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", "crontab", s.crontab)
	s.cron.Start()
	s.running.Store(true)
}

// Stop halts future ticks and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	s.running.Store(false)
}

// Running reports whether the scheduler goroutine is active, for the
// /status endpoint (§6).
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// JobsCount reports the number of registered jobs, for the /status
// endpoint's scheduler.jobs_count field.
func (s *Scheduler) JobsCount() int {
	return len(s.cron.Entries())
}
