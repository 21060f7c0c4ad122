package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contact-intake-go/config"
	"contact-intake-go/internal/metrics"
	"contact-intake-go/internal/model"
	"contact-intake-go/internal/repository"
)

type fakeStore struct {
	mu       sync.Mutex
	messages map[string]*model.ContactMessage
	cutoffs  []time.Time
	listErr  error
}

func newFakeStore(msgs ...model.ContactMessage) *fakeStore {
	s := &fakeStore{messages: make(map[string]*model.ContactMessage)}
	for i := range msgs {
		m := msgs[i]
		s.messages[m.ID] = &m
	}
	return s
}

func (s *fakeStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, before)
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.ContactMessage
	for _, m := range s.messages {
		if m.Status == model.StatusPending && m.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status model.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok || m.Status != model.StatusPending {
		return fmt.Errorf("%w: %s", repository.ErrInvalidTransition, id)
	}
	m.Status = status
	m.ProcessedAt = &at
	return nil
}

func (s *fakeStore) CountByStatus(ctx context.Context) (map[model.Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[model.Status]int64{}
	for _, m := range s.messages {
		counts[m.Status]++
	}
	return counts, nil
}

func (s *fakeStore) status(id string) model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id].Status
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(store Store) (*Scheduler, *metrics.Metrics) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	cfg := &config.SweeperConfig{IntervalMinutes: 60, StaleAfter: time.Hour, BatchSize: 10}
	s := NewScheduler(cfg, store, m)
	s.now = func() time.Time { return now }
	return s, m
}

func TestSchedulerRestart(t *testing.T) {
	sched, _ := newTestScheduler(newFakeStore())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	assert.Error(t, sched.Start())

	require.NoError(t, sched.Stop())
	assert.False(t, sched.IsRunning())
	assert.True(t, sched.GetNextRun().IsZero())

	require.NoError(t, sched.Start())
	assert.True(t, sched.IsRunning())
	// context should be active again
	assert.NoError(t, sched.ctx.Err())
	require.NoError(t, sched.Stop())
}

func TestRunOnce_MarksStalePendingAsFailed(t *testing.T) {
	store := newFakeStore(
		model.ContactMessage{ID: "old", Status: model.StatusPending, CreatedAt: now.Add(-3 * time.Hour)},
		model.ContactMessage{ID: "fresh", Status: model.StatusPending, CreatedAt: now.Add(-5 * time.Minute)},
		model.ContactMessage{ID: "sent", Status: model.StatusSent, CreatedAt: now.Add(-5 * time.Hour)},
		model.ContactMessage{ID: "spam", Status: model.StatusSpam, CreatedAt: now.Add(-5 * time.Hour)},
	)
	sched, m := newTestScheduler(store)

	stats, err := sched.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.Marked)
	assert.Equal(t, []time.Time{now.Add(-time.Hour)}, store.cutoffs)

	assert.Equal(t, model.StatusFailed, store.status("old"))
	assert.Equal(t, model.StatusPending, store.status("fresh"))
	assert.Equal(t, model.StatusSent, store.status("sent"))
	assert.Equal(t, model.StatusSpam, store.status("spam"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleMessages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesByStatus.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesByStatus.WithLabelValues("PENDING")))
	assert.Equal(t, stats, sched.LastSweep())
}

func TestRunOnce_SkipsMessagesSettledConcurrently(t *testing.T) {
	store := newFakeStore(model.ContactMessage{ID: "old", Status: model.StatusPending, CreatedAt: now.Add(-2 * time.Hour)})
	sched, _ := newTestScheduler(&racingStore{fakeStore: store})

	stats, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 0, stats.Marked)
	assert.Equal(t, model.StatusSent, store.status("old"))
}

// racingStore settles every message as SENT right after it is listed
type racingStore struct {
	*fakeStore
}

func (r *racingStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]model.ContactMessage, error) {
	out, err := r.fakeStore.ListStalePending(ctx, before, limit)
	for _, m := range out {
		_ = r.fakeStore.UpdateStatus(ctx, m.ID, model.StatusSent, now)
	}
	return out, err
}

func TestRunOnce_ListError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db down")
	sched, _ := newTestScheduler(store)

	_, err := sched.RunOnce(context.Background())
	assert.Error(t, err)
	assert.True(t, sched.LastSweep().At.IsZero())
}
