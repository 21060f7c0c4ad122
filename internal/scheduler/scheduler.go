package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"contact-intake-go/config"
	"contact-intake-go/internal/metrics"
	"contact-intake-go/internal/model"
	"contact-intake-go/internal/repository"
)

// Store is the part of the message store the sweeper needs
type Store interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.ContactMessage, error)
	UpdateStatus(ctx context.Context, id string, status model.Status, processedAt time.Time) error
	CountByStatus(ctx context.Context) (map[model.Status]int64, error)
}

// SweepStats describes one sweep
type SweepStats struct {
	At       time.Time `json:"at"`
	Found    int       `json:"found"`
	Marked   int       `json:"marked"`
	Duration string    `json:"duration"`
}

// Scheduler periodically fails messages whose notification never settled
type Scheduler struct {
	cron      *cron.Cron
	entryID   cron.EntryID
	config    *config.SweeperConfig
	store     Store
	metrics   *metrics.Metrics
	now       func() time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
	sweepMu   sync.Mutex
	statsMu   sync.RWMutex
	last      SweepStats
}

// NewScheduler creates a new sweeper scheduler
func NewScheduler(cfg *config.SweeperConfig, store Store, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		config:  cfg,
		store:   store,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the scheduler. A stopped scheduler can be started again.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
		s.cron = cron.New(cron.WithSeconds())
	}

	schedule := fmt.Sprintf("@every %dm", s.config.IntervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Sweeper started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Sweeper stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Sweeper stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// sweep is the cron job
func (s *Scheduler) sweep() {
	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Sweeper not running, skipping cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.runSweep(ctx); err != nil {
		logrus.Errorf("Sweep failed: %v", err)
	}
}

// runSweep marks stale PENDING messages as FAILED and refreshes the status gauge
func (s *Scheduler) runSweep(ctx context.Context) (SweepStats, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	// cron and RunOnce may overlap
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	began := time.Now()
	start := s.now()
	stats := SweepStats{At: start}
	cutoff := start.Add(-s.config.StaleAfter)

	stale, err := s.store.ListStalePending(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to list stale messages: %w", err)
	}
	stats.Found = len(stale)

	for _, msg := range stale {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		err := s.store.UpdateStatus(ctx, msg.ID, model.StatusFailed, s.now())
		if errors.Is(err, repository.ErrInvalidTransition) {
			logrus.Debugf("Message %s settled before the sweep, skipping", msg.ID)
			continue
		}
		if err != nil {
			logrus.Errorf("Failed to mark stale message %s as failed: %v", msg.ID, err)
			continue
		}

		stats.Marked++
		logrus.Warnf("Message %s pending since %s marked as failed", msg.ID, msg.CreatedAt.Format(time.RFC3339))
	}

	if s.metrics != nil {
		s.metrics.StaleMessages.Add(float64(stats.Marked))
		counts, err := s.store.CountByStatus(ctx)
		if err != nil {
			logrus.Errorf("Failed to refresh message counts: %v", err)
		} else {
			s.metrics.SetStatusCounts(counts)
		}
	}

	stats.Duration = time.Since(began).String()
	s.statsMu.Lock()
	s.last = stats
	s.statsMu.Unlock()

	logrus.Infof("Sweep completed: %d stale, %d marked failed", stats.Found, stats.Marked)
	return stats, nil
}

// RunOnce runs a sweep immediately (for manual triggering)
func (s *Scheduler) RunOnce(ctx context.Context) (SweepStats, error) {
	logrus.Info("Running sweep once")
	return s.runSweep(ctx)
}

// LastSweep returns the stats of the most recent completed sweep
func (s *Scheduler) LastSweep() SweepStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.last
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last scheduled run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for running sweeps to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
