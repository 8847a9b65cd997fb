package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

type fakeAnswerStore struct {
	mu    sync.Mutex
	got   []*model.QuestionInstance
	calls int
	err   error
}

func (s *fakeAnswerStore) UpsertAnswer(_ context.Context, e *model.QuestionInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, e)
	return nil
}

func (s *fakeAnswerStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *fakeAnswerStore) last() *model.QuestionInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[len(s.got)-1]
}

func queueJob(t *testing.T, rdb *redis.Client, job model.AnswerPersistJob) {
	t.Helper()

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, rdb.RPush(context.Background(), config.WorkerKey.PersistAnswersQueue, raw).Err())
}

func queueLen(t *testing.T, rdb *redis.Client) int64 {
	t.Helper()

	n, err := rdb.LLen(context.Background(), config.WorkerKey.PersistAnswersQueue).Result()
	require.NoError(t, err)
	return n
}

func TestAnswerWorkerPersistsQueuedJob(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	job := model.AnswerPersistJob{
		SessionID:        uuid.New(),
		QuestionID:       uuid.New(),
		Answer:           "B",
		FirstViewedAt:    time.Now().UTC().Add(-time.Minute),
		LastModifiedAt:   time.Now().UTC(),
		TimeSpentSeconds: 42,
	}
	queueJob(t, rdb, job)

	require.Eventually(t, func() bool { return store.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	got := store.last()
	assert.Equal(t, job.SessionID, got.SessionID)
	assert.Equal(t, job.QuestionID, got.QuestionID)
	require.NotNil(t, got.SubmittedAnswer)
	assert.Equal(t, "B", *got.SubmittedAnswer)
	assert.Equal(t, 42, got.TimeSpentSeconds)
	assert.EqualValues(t, 0, queueLen(t, rdb))
}

func TestAnswerWorkerKeepsViewOnlyAnswerUnset(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	// A view-only touch carries timestamps but no answer text. The durable
	// row must keep submitted_answer NULL, not write an empty string.
	job := model.AnswerPersistJob{
		SessionID:      uuid.New(),
		QuestionID:     uuid.New(),
		FirstViewedAt:  time.Now().UTC(),
		LastModifiedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	require.NoError(t, err)

	require.NoError(t, w.persistJob(context.Background(), raw))

	require.Equal(t, 1, store.count())
	assert.Nil(t, store.last().SubmittedAnswer)
}

func TestAnswerWorkerDropsMalformedItem(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	// Malformed payloads return nil so the caller never requeues them.
	err := w.persistJob(context.Background(), []byte("{not json"))

	assert.NoError(t, err)
	assert.Equal(t, 0, store.calls)
}

func TestAnswerWorkerDrainFlushesBacklogInOrder(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		queueJob(t, rdb, model.AnswerPersistJob{
			SessionID:      uuid.New(),
			QuestionID:     id,
			Answer:         "x",
			FirstViewedAt:  time.Now().UTC(),
			LastModifiedAt: time.Now().UTC(),
		})
	}

	w.drain(context.Background())

	require.Equal(t, 3, store.count())
	for i, id := range ids {
		assert.Equal(t, id, store.got[i].QuestionID)
	}
	assert.EqualValues(t, 0, queueLen(t, rdb))
}

func TestAnswerWorkerDrainRequeuesWhenStoreFails(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := &fakeAnswerStore{err: errors.New("connection refused")}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	queueJob(t, rdb, model.AnswerPersistJob{
		SessionID:      uuid.New(),
		QuestionID:     uuid.New(),
		Answer:         "x",
		FirstViewedAt:  time.Now().UTC(),
		LastModifiedAt: time.Now().UTC(),
	})

	w.drain(context.Background())

	// One attempt, then back on the queue for the next worker run.
	assert.Equal(t, 1, store.calls)
	assert.EqualValues(t, 1, queueLen(t, rdb))
}

func TestAnswerWorkerDrainsOnShutdown(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := &fakeAnswerStore{}
	w := NewAnswerWorker(store, rdb, zerolog.Nop())

	for i := 0; i < 3; i++ {
		queueJob(t, rdb, model.AnswerPersistJob{
			SessionID:      uuid.New(),
			QuestionID:     uuid.New(),
			Answer:         "x",
			FirstViewedAt:  time.Now().UTC(),
			LastModifiedAt: time.Now().UTC(),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Start sees the cancelled context immediately and must still flush the
	// backlog before returning.
	w.Start(ctx)

	assert.Equal(t, 3, store.count())
	assert.EqualValues(t, 0, queueLen(t, rdb))
}
