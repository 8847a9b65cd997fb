package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance and a redis client for testing.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

// fakeQuestionStore serves a fixed pool and records the exclusion lists it
// was asked to honor.
type fakeQuestionStore struct {
	pool       []model.QuestionSpec
	statsCalls int
	sampleErr  error
}

func newFakeQuestionStore(n int) *fakeQuestionStore {
	s := &fakeQuestionStore{}
	for i := 0; i < n; i++ {
		s.pool = append(s.pool, model.QuestionSpec{
			ID:            uuid.New(),
			DocumentScope: "handbook",
			QuestionType:  model.QuestionTypeMultipleChoice,
			Difficulty:    model.DifficultyMedium,
			QuestionText:  "q",
			CorrectAnswer: "A",
			Approved:      true,
		})
	}
	return s
}

func (s *fakeQuestionStore) Sample(_ context.Context, _ string, count int, _ model.Difficulty, excludeIDs []uuid.UUID) ([]model.QuestionSpec, error) {
	if s.sampleErr != nil {
		return nil, s.sampleErr
	}
	excluded := make(map[uuid.UUID]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var out []model.QuestionSpec
	for _, q := range s.pool {
		if excluded[q.ID] {
			continue
		}
		out = append(out, q)
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func (s *fakeQuestionStore) CountAvailable(_ context.Context, _ string, _ model.Difficulty) (int, error) {
	return len(s.pool), nil
}

func (s *fakeQuestionStore) ScopeStats(_ context.Context, scope string) (*model.ScopeStats, error) {
	s.statsCalls++
	return &model.ScopeStats{
		DocumentScope: scope,
		Total:         len(s.pool),
		ByType:        map[model.QuestionType]int{model.QuestionTypeMultipleChoice: len(s.pool)},
		ByDifficulty:  map[model.Difficulty]int{model.DifficultyMedium: len(s.pool)},
	}, nil
}

func TestSampleForSession(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := newFakeQuestionStore(10)
	svc := NewPoolService(store, rdb, zerolog.Nop())

	specs, err := svc.SampleForSession(context.Background(), "handbook", 5, "", nil)
	require.NoError(t, err)
	assert.Len(t, specs, 5)

	seen := map[uuid.UUID]bool{}
	for _, q := range specs {
		assert.False(t, seen[q.ID], "duplicate question in sample")
		seen[q.ID] = true
	}
}

func TestSampleRedrawsWhenExclusionLeavesShort(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := newFakeQuestionStore(6)
	svc := NewPoolService(store, rdb, zerolog.Nop())

	// Excluding 3 of 6 leaves only 3 candidates for a count of 5; the
	// exclusion list must yield rather than the sample coming up short.
	exclude := []uuid.UUID{store.pool[0].ID, store.pool[1].ID, store.pool[2].ID}
	specs, err := svc.SampleForSession(context.Background(), "handbook", 5, "", exclude)
	require.NoError(t, err)
	assert.Len(t, specs, 5)
}

func TestSampleExhaustedPool(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := newFakeQuestionStore(3)
	svc := NewPoolService(store, rdb, zerolog.Nop())

	_, err := svc.SampleForSession(context.Background(), "handbook", 5, "", nil)
	require.Error(t, err)

	var exhausted *PoolExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 5, exhausted.Requested)
	assert.Equal(t, 3, exhausted.Available)
}

func TestSampleStoreError(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := newFakeQuestionStore(3)
	store.sampleErr = errors.New("connection refused")
	svc := NewPoolService(store, rdb, zerolog.Nop())

	_, err := svc.SampleForSession(context.Background(), "handbook", 2, "", nil)
	assert.Error(t, err)
}

func TestScopeStatsCached(t *testing.T) {
	_, rdb := setupTestRedis(t)
	store := newFakeQuestionStore(4)
	svc := NewPoolService(store, rdb, zerolog.Nop())

	first, err := svc.GetScopeStats(context.Background(), "handbook")
	require.NoError(t, err)
	assert.Equal(t, 4, first.Total)
	assert.Equal(t, 1, store.statsCalls)

	// Second read comes from Redis, not the store.
	second, err := svc.GetScopeStats(context.Background(), "handbook")
	require.NoError(t, err)
	assert.Equal(t, 4, second.Total)
	assert.Equal(t, 1, store.statsCalls)
}

func TestScopeStatsCorruptCacheFallsThrough(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	store := newFakeQuestionStore(4)
	svc := NewPoolService(store, rdb, zerolog.Nop())

	// Poison the cache entry; the service should fall back to the store.
	_, err := svc.GetScopeStats(context.Background(), "handbook")
	require.NoError(t, err)
	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.NoError(t, mr.Set(keys[0], "{not json"))

	stats, err := svc.GetScopeStats(context.Background(), "handbook")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, store.statsCalls)
}
