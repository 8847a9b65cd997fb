package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AnswerStore is the durable side of the answer mirror. Satisfied by
// repository.SessionRepository.
type AnswerStore interface {
	UpsertAnswer(ctx context.Context, e *model.QuestionInstance) error
}

// AnswerWorker consumes persist_answers_queue and mirrors ledger entries
// into PostgreSQL. Losing an item is tolerable: the finalize path merges
// straight from the Redis ledger, so the durable mirror only has to win
// eventually.
type AnswerWorker struct {
	store AnswerStore
	rdb   *redis.Client
	log   zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(store AnswerStore, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	// BLPop blocks until an item is available or timeout (1 second).
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	if err := w.persistJob(ctx, []byte(result[1])); err != nil {
		w.log.Error().Err(err).Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

func (w *AnswerWorker) persistJob(ctx context.Context, raw []byte) error {
	var job model.AnswerPersistJob
	if err := json.Unmarshal(raw, &job); err != nil {
		// Malformed items are dropped, not retried: requeueing them would
		// wedge the queue forever.
		w.log.Error().Err(err).Msg("Unmarshal error, dropping item")
		return nil
	}

	inst := &model.QuestionInstance{
		SessionID:        job.SessionID,
		QuestionID:       job.QuestionID,
		FirstViewedAt:    &job.FirstViewedAt,
		LastModifiedAt:   &job.LastModifiedAt,
		TimeSpentSeconds: job.TimeSpentSeconds,
	}
	if job.Answer != "" {
		inst.SubmittedAnswer = &job.Answer
	}

	return w.store.UpsertAnswer(ctx, inst)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AnswerWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		if err := w.persistJob(ctx, []byte(result)); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
