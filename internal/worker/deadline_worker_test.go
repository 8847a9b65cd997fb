package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweepStore struct {
	mu       sync.Mutex
	due      []uuid.UUID
	stuck    []uuid.UUID
	listErr  error
	markErr  error
	markMiss bool

	dueCalls  int
	gotLimit  int
	gotCutoff time.Time
	failed    []uuid.UUID
}

func (s *fakeSweepStore) ListDue(_ context.Context, _ time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dueCalls++
	s.gotLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.due, nil
}

func (s *fakeSweepStore) ListStuckSubmitting(_ context.Context, cutoff time.Time, _ int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotCutoff = cutoff
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.stuck, nil
}

func (s *fakeSweepStore) MarkFailed(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	s.failed = append(s.failed, id)
	return !s.markMiss, nil
}

type fakeExpirer struct {
	mu      sync.Mutex
	err     error
	expired []uuid.UUID
}

func (e *fakeExpirer) ExpireSession(_ context.Context, sessionID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expired = append(e.expired, sessionID)
	return e.err
}

func (e *fakeExpirer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.expired)
}

func sweepTestConfig() *config.Config {
	return &config.Config{
		DeadlineSweepInterval: time.Second,
		GradingBudget:         90 * time.Second,
		SubmittingGrace:       30 * time.Second,
	}
}

func TestSweepDueExpiresEachDueSession(t *testing.T) {
	due := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	store := &fakeSweepStore{due: due}
	expirer := &fakeExpirer{}
	w := NewDeadlineWorker(store, expirer, sweepTestConfig(), zerolog.Nop())

	w.sweepDue(context.Background())

	assert.Equal(t, due, expirer.expired)
	assert.Equal(t, SweepBatchSize, store.gotLimit)
}

func TestSweepDueContinuesPastExpiryError(t *testing.T) {
	store := &fakeSweepStore{due: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}
	expirer := &fakeExpirer{err: errors.New("redis down")}
	w := NewDeadlineWorker(store, expirer, sweepTestConfig(), zerolog.Nop())

	// One bad session must not shield the rest of the batch.
	w.sweepDue(context.Background())

	assert.Equal(t, 3, expirer.count())
}

func TestSweepDueListErrorSkipsTick(t *testing.T) {
	store := &fakeSweepStore{listErr: errors.New("pg down")}
	expirer := &fakeExpirer{}
	w := NewDeadlineWorker(store, expirer, sweepTestConfig(), zerolog.Nop())

	w.sweepDue(context.Background())

	assert.Equal(t, 0, expirer.count())
}

func TestSweepStuckFailsOutStrandedSessions(t *testing.T) {
	stuck := []uuid.UUID{uuid.New(), uuid.New()}
	store := &fakeSweepStore{stuck: stuck}
	w := NewDeadlineWorker(store, &fakeExpirer{}, sweepTestConfig(), zerolog.Nop())

	w.sweepStuck(context.Background())

	assert.Equal(t, stuck, store.failed)

	// Cutoff is budget+grace in the past: anything older cannot be a live
	// grading run.
	wantCutoff := time.Now().UTC().Add(-120 * time.Second)
	assert.WithinDuration(t, wantCutoff, store.gotCutoff, time.Second)
}

func TestSweepStuckToleratesLostRace(t *testing.T) {
	store := &fakeSweepStore{stuck: []uuid.UUID{uuid.New(), uuid.New()}, markMiss: true}
	w := NewDeadlineWorker(store, &fakeExpirer{}, sweepTestConfig(), zerolog.Nop())

	// A grading run finishing between list and mark makes the CAS miss.
	// Both sessions are still visited.
	w.sweepStuck(context.Background())

	assert.Len(t, store.failed, 2)
}

func TestSweepStuckMarkErrorSkipsToNext(t *testing.T) {
	store := &fakeSweepStore{stuck: []uuid.UUID{uuid.New()}, markErr: errors.New("pg down")}
	w := NewDeadlineWorker(store, &fakeExpirer{}, sweepTestConfig(), zerolog.Nop())

	w.sweepStuck(context.Background())

	assert.Empty(t, store.failed)
}

func TestDeadlineWorkerTicksUntilCancelled(t *testing.T) {
	cfg := sweepTestConfig()
	cfg.DeadlineSweepInterval = 10 * time.Millisecond

	store := &fakeSweepStore{}
	w := NewDeadlineWorker(store, &fakeExpirer{}, cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.dueCalls >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
