package worker

import (
	"context"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SweepBatchSize caps how many sessions one tick will touch. A backlog
// larger than this just takes a few more ticks to clear.
const SweepBatchSize = 100

// SweepStore lists the sessions a sweep tick cares about. Satisfied by
// repository.SessionRepository.
type SweepStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListStuckSubmitting(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

// SessionExpirer runs the guarded auto-submit. Satisfied by
// service.SessionService.
type SessionExpirer interface {
	ExpireSession(ctx context.Context, sessionID uuid.UUID) error
}

// DeadlineWorker is the scheduled half of expiry enforcement: the read path
// expires sessions opportunistically, this sweep catches the ones nobody is
// reading. It also fails out grading runs that died mid-flight and left a
// session sitting in SUBMITTING.
type DeadlineWorker struct {
	store   SweepStore
	expirer SessionExpirer
	log     zerolog.Logger

	interval   time.Duration
	stuckAfter time.Duration
}

// NewDeadlineWorker creates a new DeadlineWorker.
func NewDeadlineWorker(store SweepStore, expirer SessionExpirer, cfg *config.Config, log zerolog.Logger) *DeadlineWorker {
	return &DeadlineWorker{
		store:   store,
		expirer: expirer,
		log:     log.With().Str("component", "deadline_worker").Logger(),
		// A run older than budget+grace cannot still be alive: the grading
		// budget bounds the run and grace covers the finalize writes.
		interval:   cfg.DeadlineSweepInterval,
		stuckAfter: cfg.GradingBudget + cfg.SubmittingGrace,
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (w *DeadlineWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.sweepDue(ctx)
			w.sweepStuck(ctx)
		}
	}
}

// sweepDue auto-submits ACTIVE sessions whose deadline has passed. The
// expiry itself is compare-and-set guarded, so racing a concurrent manual
// submit or another sweep is harmless.
func (w *DeadlineWorker) sweepDue(ctx context.Context) {
	due, err := w.store.ListDue(ctx, time.Now().UTC(), SweepBatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("List due sessions failed")
		}
		return
	}

	for _, id := range due {
		if err := w.expirer.ExpireSession(ctx, id); err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Sweep expiry failed")
		}
	}
}

// sweepStuck fails out sessions stranded in SUBMITTING by a crashed grading
// run. They are never re-graded: the answers are safe, but the run that
// owned the transition is gone and results must stay all-or-nothing.
func (w *DeadlineWorker) sweepStuck(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.stuckAfter)
	stuck, err := w.store.ListStuckSubmitting(ctx, cutoff, SweepBatchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("List stuck sessions failed")
		}
		return
	}

	for _, id := range stuck {
		failed, err := w.store.MarkFailed(ctx, id)
		if err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Mark failed errored")
			continue
		}
		if failed {
			w.log.Warn().Str("session_id", id.String()).Msg("Failed out session stuck in grading")
		}
	}
}
