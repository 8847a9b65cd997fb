package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// scopeStatsTTL bounds how stale the cached pool stats may get.
const scopeStatsTTL = 30 * time.Second

// PoolExhaustedError reports that the approved pool cannot satisfy the
// requested sample size. No session is created when this is returned.
type PoolExhaustedError struct {
	Requested int
	Available int
}

func (e *PoolExhaustedError) Error() string {
	return fmt.Sprintf("question pool exhausted: requested %d, available %d", e.Requested, e.Available)
}

// QuestionStore is the read surface of the externally curated pool.
type QuestionStore interface {
	Sample(ctx context.Context, scope string, count int, difficulty model.Difficulty, excludeIDs []uuid.UUID) ([]model.QuestionSpec, error)
	CountAvailable(ctx context.Context, scope string, difficulty model.Difficulty) (int, error)
	ScopeStats(ctx context.Context, scope string) (*model.ScopeStats, error)
}

// PoolService samples the approved question pool for new sessions and
// serves scope statistics.
type PoolService struct {
	questions QuestionStore
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewPoolService creates a new PoolService.
func NewPoolService(questions QuestionStore, rdb *redis.Client, log zerolog.Logger) *PoolService {
	return &PoolService{
		questions: questions,
		rdb:       rdb,
		log:       log.With().Str("component", "pool_service").Logger(),
	}
}

// SampleForSession draws exactly count distinct approved specs, freshly
// shuffled. The exclusion list is best-effort: when honoring it would leave
// the sample short, the draw runs again without it. A pool that cannot
// cover count even unexcluded returns PoolExhaustedError; a partial exam is
// never served.
func (s *PoolService) SampleForSession(ctx context.Context, scope string, count int, difficulty model.Difficulty, excludeIDs []uuid.UUID) ([]model.QuestionSpec, error) {
	specs, err := s.questions.Sample(ctx, scope, count, difficulty, excludeIDs)
	if err != nil {
		return nil, fmt.Errorf("sample pool: %w", err)
	}

	if len(specs) < count && len(excludeIDs) > 0 {
		s.log.Debug().
			Str("scope", scope).
			Int("short", count-len(specs)).
			Msg("Exclusion list left sample short, redrawing without it")
		specs, err = s.questions.Sample(ctx, scope, count, difficulty, nil)
		if err != nil {
			return nil, fmt.Errorf("sample pool without exclusions: %w", err)
		}
	}

	if len(specs) < count {
		available, err := s.questions.CountAvailable(ctx, scope, difficulty)
		if err != nil {
			available = len(specs)
		}
		return nil, &PoolExhaustedError{Requested: count, Available: available}
	}

	return specs, nil
}

// GetScopeStats returns approved-question counts for a scope, cached
// briefly in Redis so clients sizing a session do not hammer the pool.
func (s *PoolService) GetScopeStats(ctx context.Context, scope string) (*model.ScopeStats, error) {
	key := config.CacheKey.ScopeStatsKey(scope)

	if raw, err := s.rdb.Get(ctx, key).Result(); err == nil {
		var stats model.ScopeStats
		if err := json.Unmarshal([]byte(raw), &stats); err == nil {
			return &stats, nil
		}
		// Corrupt cache entry; fall through to the source of truth.
	}

	stats, err := s.questions.ScopeStats(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("scope stats: %w", err)
	}

	if raw, err := json.Marshal(stats); err == nil {
		if err := s.rdb.Set(ctx, key, raw, scopeStatsTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("scope", scope).Msg("Failed to cache scope stats")
		}
	}

	return stats, nil
}
