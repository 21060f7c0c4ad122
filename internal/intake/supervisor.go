package intake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"contact-intake-go/internal/metrics"
)

// Supervisor runs detached background tasks and lets shutdown wait for them.
// maxInFlight is a soft bound: a task started above it still runs, but the
// saturation is logged and counted.
type Supervisor struct {
	wg       sync.WaitGroup
	sem      chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.RWMutex
	closed   bool
	inFlight int64
	metrics  *metrics.Metrics
}

// NewSupervisor creates a supervisor with the given soft concurrency bound
func NewSupervisor(maxInFlight int, m *metrics.Metrics) *Supervisor {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		sem:     make(chan struct{}, maxInFlight),
		ctx:     ctx,
		cancel:  cancel,
		metrics: m,
	}
}

// Go starts task in its own goroutine. The task context is independent of any
// request and is only cancelled when Shutdown gives up waiting.
// It returns false when the supervisor is already shut down.
func (s *Supervisor) Go(task func(ctx context.Context)) bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	s.wg.Add(1)
	s.mu.RUnlock()

	acquired := false
	select {
	case s.sem <- struct{}{}:
		acquired = true
	default:
		logrus.Warnf("Background task limit of %d reached, running task anyway", cap(s.sem))
		if s.metrics != nil {
			s.metrics.Saturations.Inc()
		}
	}

	atomic.AddInt64(&s.inFlight, 1)
	if s.metrics != nil {
		s.metrics.InFlight.Inc()
	}

	go func() {
		defer s.wg.Done()
		defer func() {
			if acquired {
				<-s.sem
			}
			atomic.AddInt64(&s.inFlight, -1)
			if s.metrics != nil {
				s.metrics.InFlight.Dec()
			}
		}()
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("Background task panicked: %v", r)
			}
		}()

		task(s.ctx)
	}()
	return true
}

// InFlight returns the number of running tasks
func (s *Supervisor) InFlight() int {
	return int(atomic.LoadInt64(&s.inFlight))
}

// Shutdown stops accepting tasks and waits for running ones. If ctx ends
// first, running tasks are cancelled and ctx.Err() is returned.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		logrus.Info("All background tasks completed")
		return nil
	case <-ctx.Done():
		s.cancel()
		logrus.Warnf("Shutdown deadline reached with %d background tasks running", s.InFlight())
		return ctx.Err()
	}
}
