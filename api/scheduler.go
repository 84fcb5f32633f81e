/*
scheduler.go - Scheduled price-table audit

PURPOSE:
  Price resolution falls back to zero for (store, brand) pairs with no price
  entry, so an unpriced assignment silently bills nothing. This job
  periodically lists assigned pairs with no price and logs one warning per
  gap, so operators notice before the billing report goes out.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field spec or @descriptors)
  - Each run gets a uuid, logged on every line for correlation
  - The last run is kept in memory for GET /api/prices/gaps?cached=1
  - An empty schedule disables the job; RunNow still works

USAGE:
  audit := NewPriceAuditScheduler(store, "@hourly", log)
  if err := audit.Start(); err != nil { ... }
  defer audit.Stop()

SEE ALSO:
  - engine/price.go: MissingPrices
  - handlers.go: PriceGaps endpoint
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/warp/visit-engine/engine"
	"github.com/warp/visit-engine/logger"
)

// AuditSource is what the audit reads.
type AuditSource interface {
	engine.PriceStore
	engine.AssignmentStore
}

// AuditRun is the outcome of one audit.
type AuditRun struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Gaps      []engine.Assignment
	Err       string
}

// PriceAuditScheduler runs the price audit on a cron schedule.
type PriceAuditScheduler struct {
	Source   AuditSource
	Schedule string
	Timeout  time.Duration

	log  zerolog.Logger
	now  func() time.Time
	cron *cron.Cron

	mu   sync.Mutex
	last *AuditRun
}

// NewPriceAuditScheduler creates a new scheduler. Call Start to begin.
func NewPriceAuditScheduler(source AuditSource, schedule string, log zerolog.Logger) *PriceAuditScheduler {
	return &PriceAuditScheduler{
		Source:   source,
		Schedule: schedule,
		Timeout:  30 * time.Second,
		log:      logger.Component(log, "price_audit"),
		now:      time.Now,
	}
}

// Start registers the job and starts the cron runner.
func (s *PriceAuditScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Schedule == "" {
		s.log.Info().Msg("Price audit disabled, not starting")
		return nil
	}
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.Schedule, s.runScheduled); err != nil {
		return fmt.Errorf("price audit schedule %q: %w", s.Schedule, err)
	}
	c.Start()
	s.cron = c

	s.log.Info().Str("schedule", s.Schedule).Time("next_run", s.nextRunLocked()).Msg("Price audit started")
	return nil
}

// Stop stops the cron runner and waits for a running audit to finish.
func (s *PriceAuditScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info().Msg("Price audit stopped")
}

func (s *PriceAuditScheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	if _, err := s.RunNow(ctx); err != nil {
		s.log.Error().Err(err).Msg("Price audit failed")
	}
}

// RunNow runs the audit immediately and records it as the last run.
func (s *PriceAuditScheduler) RunNow(ctx context.Context) (*AuditRun, error) {
	run := &AuditRun{ID: uuid.NewString(), StartedAt: s.now()}
	log := s.log.With().Str("run_id", run.ID).Logger()

	gaps, err := s.audit(ctx)
	run.Duration = time.Since(run.StartedAt)
	if err != nil {
		run.Err = err.Error()
		s.remember(run)
		return run, err
	}
	run.Gaps = gaps

	for _, g := range gaps {
		log.Warn().
			Int64("store_id", int64(g.Store.ID)).
			Str("store", g.Store.Name).
			Int64("brand_id", int64(g.Brand.ID)).
			Str("brand", g.Brand.Name).
			Int("target_frequency", g.TargetFrequency).
			Msg("Assigned pair has no price, visits will bill 0.00")
	}
	log.Info().Int("gaps", len(gaps)).Dur("duration", run.Duration).Msg("Price audit completed")

	s.remember(run)
	return run, nil
}

func (s *PriceAuditScheduler) audit(ctx context.Context) ([]engine.Assignment, error) {
	assignments, err := s.Source.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	entries, err := s.Source.ListPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	idx, err := engine.NewPriceIndex(entries)
	if err != nil {
		return nil, err
	}
	return engine.MissingPrices(assignments, idx), nil
}

func (s *PriceAuditScheduler) remember(run *AuditRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = run
}

// LastRun returns the most recent audit, or nil if none ran yet.
func (s *PriceAuditScheduler) LastRun() *AuditRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns when the next scheduled audit will occur, or the zero time
// when the scheduler is not running.
func (s *PriceAuditScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunLocked()
}

func (s *PriceAuditScheduler) nextRunLocked() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	// Entries are only scheduled once the runner goroutine picks them up.
	if entries[0].Next.IsZero() {
		return entries[0].Schedule.Next(s.now())
	}
	return entries[0].Next
}
