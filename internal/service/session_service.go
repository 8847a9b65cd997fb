package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/docexam/docexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	ErrNotOwner           = errors.New("session does not belong to the caller")
	ErrSessionNotActive   = errors.New("session is no longer accepting answers")
	ErrQuestionNotInSet   = errors.New("question is not part of this session")
	ErrSessionNotFinished = errors.New("session has not finished")
	ErrGradingInProgress  = errors.New("grading is still in progress")
	ErrSessionFailed      = errors.New("session failed during result persistence")
)

const (
	sessionMetaTTL   = 24 * time.Hour
	sessionResultTTL = 24 * time.Hour

	// submitPollInterval paces the wait loop of a submit that lost the
	// transition race and is watching for the winner's terminal state.
	submitPollInterval = 500 * time.Millisecond
)

// SessionStore is the durable record of sessions and their question
// instances. Satisfied by repository.SessionRepository.
type SessionStore interface {
	Create(ctx context.Context, s *model.ExamSession, questionIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error)
	GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]model.SessionQuestion, error)
	HasQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error)
	FinalizeResult(ctx context.Context, result *model.GradeResult, questions []model.SessionQuestion) error
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.SessionSummary, int64, error)
	RecentQuestionIDs(ctx context.Context, ownerID int, scope string, sessionWindow int) ([]uuid.UUID, error)
}

// SessionMeta is the hot-path session header cached in Redis. Live polling
// (WebSocket ticks) reads this instead of PostgreSQL; every state-changing
// path refreshes it best-effort.
type SessionMeta struct {
	Status   model.SessionStatus `json:"status"`
	Deadline time.Time           `json:"deadline"`
	OwnerID  int                 `json:"owner_id"`
}

// answerEntry is the JSON value stored per question in the session's live
// answer ledger hash. The ledger only ever moves forward, so at merge time
// it is at least as fresh as the durable instance row.
type answerEntry struct {
	Answer           string    `json:"answer"`
	FirstViewedAt    time.Time `json:"first_viewed_at"`
	LastModifiedAt   time.Time `json:"last_modified_at"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// SessionService drives the session lifecycle: creation, the live answer
// ledger, and the single guarded transition into grading. Expiry is enforced
// here twice over: opportunistically on every read and by the deadline
// sweeper, both funneling into the same compare-and-set.
type SessionService struct {
	store   SessionStore
	pool    *PoolService
	grading *GradingService
	rdb     *redis.Client
	cfg     *config.Config
	log     zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	store SessionStore,
	pool *PoolService,
	grading *GradingService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		store:   store,
		pool:    pool,
		grading: grading,
		rdb:     rdb,
		cfg:     cfg,
		log:     log.With().Str("component", "session_service").Logger(),
	}
}

// CreateSession samples the pool, stamps the deadline once, and persists the
// session already ACTIVE with its ordered question set. Questions seen in
// the owner's recent sessions in the same scope are excluded best-effort.
func (s *SessionService) CreateSession(ctx context.Context, ownerID int, req *model.CreateSessionRequest) (*model.ExamSession, []model.QuestionForTaker, error) {
	exclude, err := s.store.RecentQuestionIDs(ctx, ownerID, req.DocumentScope, s.cfg.RecentExclusionSessions)
	if err != nil {
		// Exclusion is a freshness nicety, never a reason to refuse a session.
		s.log.Warn().Err(err).Msg("Recent question lookup failed, sampling without exclusions")
		exclude = nil
	}

	specs, err := s.pool.SampleForSession(ctx, req.DocumentScope, req.QuestionCount, model.Difficulty(req.DifficultyFilter), exclude)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	session := &model.ExamSession{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		DocumentScope:   req.DocumentScope,
		Status:          model.SessionStatusActive,
		QuestionCount:   req.QuestionCount,
		DurationSeconds: req.DurationSeconds,
		StartedAt:       now,
		Deadline:        now.Add(time.Duration(req.DurationSeconds) * time.Second),
	}

	questionIDs := make([]uuid.UUID, len(specs))
	takers := make([]model.QuestionForTaker, len(specs))
	for i := range specs {
		questionIDs[i] = specs[i].ID
		takers[i] = specs[i].ForTaker(i)
	}

	if err := s.store.Create(ctx, session, questionIDs); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheMeta(ctx, session)

	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("scope", session.DocumentScope).
		Int("questions", len(questionIDs)).
		Time("deadline", session.Deadline).
		Msg("Session created")

	return session, takers, nil
}

// GetSessionState returns the live view: authoritative remaining time, the
// answer-stripped questions, and every answer recorded so far. A session
// found past its deadline is expired here, on this read, before responding.
func (s *SessionService) GetSessionState(ctx context.Context, sessionID uuid.UUID, ownerID int) (*model.SessionState, error) {
	sess, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if sess.Status == model.SessionStatusActive && sess.Expired(now) {
		if err := s.ExpireSession(ctx, sessionID); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Opportunistic expiry failed")
		}
		if sess, err = s.store.GetByID(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	questions, err := s.store.GetQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	s.mergeLedger(ctx, sessionID, questions)

	takers := make([]model.QuestionForTaker, len(questions))
	answers := make(map[string]string)
	for i := range questions {
		takers[i] = questions[i].Spec.ForTaker(questions[i].Instance.Position)
		if a := questions[i].Instance.SubmittedAnswer; a != nil {
			answers[questions[i].Instance.QuestionID.String()] = *a
		}
	}

	return &model.SessionState{
		SessionID:        sess.ID,
		Status:           sess.Status,
		DocumentScope:    sess.DocumentScope,
		StartedAt:        sess.StartedAt,
		Deadline:         sess.Deadline,
		RemainingSeconds: sess.RemainingSeconds(now),
		Questions:        takers,
		Answers:          answers,
	}, nil
}

// SubmitAnswer upserts one answer into the live ledger and queues it for
// durable persistence. The status is checked before and re-checked after the
// ledger write: an answer racing the deadline may land in Redis, but the
// caller still learns the session already stopped accepting answers.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID uuid.UUID, ownerID int, questionID uuid.UUID, answer string) error {
	sess, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if sess.Status == model.SessionStatusActive && sess.Expired(now) {
		if err := s.ExpireSession(ctx, sessionID); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Opportunistic expiry failed")
		}
		return ErrSessionNotActive
	}
	if sess.Status != model.SessionStatusActive {
		return ErrSessionNotActive
	}

	ok, err := s.store.HasQuestion(ctx, sessionID, questionID)
	if err != nil {
		return fmt.Errorf("check question membership: %w", err)
	}
	if !ok {
		return ErrQuestionNotInSet
	}

	if err := s.writeLedger(ctx, sessionID, questionID, &answer, now); err != nil {
		return err
	}

	// Re-check after the write. If the session left ACTIVE underneath us the
	// grading merge may already have run without this answer; the caller must
	// not believe it counted.
	sess, err = s.store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.SessionStatusActive {
		return ErrSessionNotActive
	}
	return nil
}

// MarkViewed records that a question was first displayed, without touching
// any recorded answer. Feeds the per-question time accounting.
func (s *SessionService) MarkViewed(ctx context.Context, sessionID uuid.UUID, ownerID int, questionID uuid.UUID) error {
	meta, err := s.GetLiveMeta(ctx, sessionID)
	if err != nil {
		return err
	}
	if meta.OwnerID != ownerID {
		return ErrNotOwner
	}
	now := time.Now().UTC()
	if meta.Status != model.SessionStatusActive || !now.Before(meta.Deadline) {
		return ErrSessionNotActive
	}

	ok, err := s.store.HasQuestion(ctx, sessionID, questionID)
	if err != nil {
		return fmt.Errorf("check question membership: %w", err)
	}
	if !ok {
		return ErrQuestionNotInSet
	}

	return s.writeLedger(ctx, sessionID, questionID, nil, now)
}

// SubmitSession finishes the session. Exactly one caller wins the
// ACTIVE -> SUBMITTING transition and runs grading; every other caller, and
// every retry, converges on the same terminal result. Submitting after the
// deadline is not an error, the completion reason just records the timeout.
func (s *SessionService) SubmitSession(ctx context.Context, sessionID uuid.UUID, ownerID int) (*model.GradeResult, error) {
	sess, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case model.SessionStatusActive:
		reason := model.CompletionManualSubmit
		if sess.Expired(time.Now().UTC()) {
			reason = model.CompletionTimeoutAutoSubmit
		}
		won, err := s.store.CompareAndSetStatus(ctx, sessionID, model.SessionStatusActive, model.SessionStatusSubmitting)
		if err != nil {
			return nil, fmt.Errorf("begin submit: %w", err)
		}
		if won {
			return s.finalize(ctx, sess, reason)
		}
		// Lost to a concurrent submit or the deadline sweep; ride along.
		return s.waitForTerminal(ctx, sessionID)

	case model.SessionStatusSubmitting:
		return s.waitForTerminal(ctx, sessionID)

	case model.SessionStatusCompleted:
		return s.loadResult(ctx, sess)

	case model.SessionStatusFailed:
		return nil, ErrSessionFailed

	default:
		return nil, fmt.Errorf("session in unexpected status %s", sess.Status)
	}
}

// ExpireSession force-finishes a session whose deadline has passed. Safe to
// call from any path at any time: it no-ops on sessions that are still
// running, already grading, or already terminal.
func (s *SessionService) ExpireSession(ctx context.Context, sessionID uuid.UUID) error {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.SessionStatusActive {
		return nil
	}
	if !sess.Expired(time.Now().UTC()) {
		return nil
	}

	won, err := s.store.CompareAndSetStatus(ctx, sessionID, model.SessionStatusActive, model.SessionStatusSubmitting)
	if err != nil {
		return fmt.Errorf("begin expiry: %w", err)
	}
	if !won {
		return nil
	}

	s.log.Info().Str("session_id", sessionID.String()).Msg("Deadline passed, auto-submitting")
	_, err = s.finalize(ctx, sess, model.CompletionTimeoutAutoSubmit)
	return err
}

// GetResult returns the graded outcome with answer keys and explanations.
// Only terminal sessions have one; reading an expired-but-unswept session
// triggers the expiry first, so the very first read past the deadline
// already sees the session finishing.
func (s *SessionService) GetResult(ctx context.Context, sessionID uuid.UUID, ownerID int) (*model.GradeResult, error) {
	sess, err := s.authorize(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}

	if sess.Status == model.SessionStatusActive && sess.Expired(time.Now().UTC()) {
		if err := s.ExpireSession(ctx, sessionID); err != nil {
			s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Opportunistic expiry failed")
		}
		if sess, err = s.store.GetByID(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	switch sess.Status {
	case model.SessionStatusCompleted:
		return s.loadResult(ctx, sess)
	case model.SessionStatusFailed:
		return nil, ErrSessionFailed
	case model.SessionStatusSubmitting:
		return nil, ErrGradingInProgress
	default:
		return nil, ErrSessionNotFinished
	}
}

// ListSessions returns the owner's session history, newest first.
func (s *SessionService) ListSessions(ctx context.Context, ownerID, page, perPage int) ([]model.SessionSummary, int64, error) {
	return s.store.ListByOwner(ctx, ownerID, page, perPage)
}

// GetLiveMeta returns the cached session header for hot polling paths.
func (s *SessionService) GetLiveMeta(ctx context.Context, sessionID uuid.UUID) (*SessionMeta, error) {
	key := config.CacheKey.SessionMetaKey(sessionID.String())
	val, err := s.rdb.Get(ctx, key).Result()

	if err == nil {
		meta := &SessionMeta{}
		if jsonErr := json.Unmarshal([]byte(val), meta); jsonErr == nil {
			return meta, nil
		}
		// Corrupt cache entry; fall through to the source of truth.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis error getting session meta: %w", err)
	}

	// Cache miss (evicted or never written). Fall back to PostgreSQL and
	// self-heal so the next poll is fast again.
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.cacheMeta(ctx, sess)
	return &SessionMeta{Status: sess.Status, Deadline: sess.Deadline, OwnerID: sess.OwnerID}, nil
}

// ─── Finalize Pipeline ───────────────────────────────────────────

// finalize runs once per session, by whichever caller won the CAS: merge the
// ledger, grade, and commit the terminal state. It deliberately detaches from
// the caller's context so a dropped connection cannot strand the session in
// SUBMITTING.
func (s *SessionService) finalize(ctx context.Context, sess *model.ExamSession, baseReason model.CompletionReason) (*model.GradeResult, error) {
	runCtx := context.WithoutCancel(ctx)
	s.invalidateMeta(runCtx, sess.ID)

	questions, err := s.store.GetQuestions(runCtx, sess.ID)
	if err != nil {
		return s.failSession(runCtx, sess.ID, fmt.Errorf("load questions: %w", err))
	}
	s.mergeLedger(runCtx, sess.ID, questions)

	result := s.grading.Grade(runCtx, *sess, questions, baseReason)

	if err := s.store.FinalizeResult(runCtx, result, questions); err != nil {
		return s.failSession(runCtx, sess.ID, fmt.Errorf("persist result: %w", err))
	}

	s.cacheResult(runCtx, result)
	s.rdb.Del(runCtx, config.CacheKey.SessionAnswersKey(sess.ID.String()))

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Float64("score", result.ScorePercent).
		Str("reason", string(result.CompletionReason)).
		Msg("Session completed")

	return result, nil
}

// failSession moves a SUBMITTING session to FAILED after a finalize error.
// The grading work is discarded; results are all-or-nothing.
func (s *SessionService) failSession(ctx context.Context, sessionID uuid.UUID, cause error) (*model.GradeResult, error) {
	s.log.Error().Err(cause).Str("session_id", sessionID.String()).Msg("Finalize failed, failing session")
	if _, err := s.store.MarkFailed(ctx, sessionID); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Could not mark session failed")
	}
	s.invalidateMeta(ctx, sessionID)
	return nil, ErrSessionFailed
}

// waitForTerminal polls a session that somebody else is grading until it
// reaches a terminal state. Bounded by the grading budget plus grace; a
// session still grading past that is the sweeper's problem, not ours.
func (s *SessionService) waitForTerminal(ctx context.Context, sessionID uuid.UUID) (*model.GradeResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.GradingBudget+s.cfg.SubmittingGrace)
	defer cancel()

	for {
		sess, err := s.store.GetByID(waitCtx, sessionID)
		if err != nil {
			return nil, err
		}
		switch sess.Status {
		case model.SessionStatusCompleted:
			return s.loadResult(waitCtx, sess)
		case model.SessionStatusFailed:
			return nil, ErrSessionFailed
		}

		if !sleepCtx(waitCtx, submitPollInterval) {
			return nil, ErrGradingInProgress
		}
	}
}

// ─── Ledger ──────────────────────────────────────────────────────

// writeLedger upserts one ledger entry and queues the durable mirror write.
// A nil answer is a view marker: it stamps first_viewed_at and advances the
// time accounting without touching the recorded answer.
func (s *SessionService) writeLedger(ctx context.Context, sessionID, questionID uuid.UUID, answer *string, now time.Time) error {
	key := config.CacheKey.SessionAnswersKey(sessionID.String())
	field := questionID.String()

	entry := answerEntry{FirstViewedAt: now, LastModifiedAt: now}
	if prev, err := s.rdb.HGet(ctx, key, field).Result(); err == nil {
		var old answerEntry
		if json.Unmarshal([]byte(prev), &old) == nil {
			entry = old
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("read ledger: %w", err)
	}

	if entry.FirstViewedAt.IsZero() {
		entry.FirstViewedAt = now
	}
	entry.LastModifiedAt = now
	if answer != nil {
		entry.Answer = *answer
	}
	// Time spent only ratchets up: the span from first view to the latest
	// touch, floored at whatever was already recorded.
	if spent := int(now.Sub(entry.FirstViewedAt).Seconds()); spent > entry.TimeSpentSeconds {
		entry.TimeSpentSeconds = spent
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	if err := s.rdb.HSet(ctx, key, field, raw).Err(); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}

	job, err := json.Marshal(model.AnswerPersistJob{
		SessionID:        sessionID,
		QuestionID:       questionID,
		Answer:           entry.Answer,
		FirstViewedAt:    entry.FirstViewedAt,
		LastModifiedAt:   entry.LastModifiedAt,
		TimeSpentSeconds: entry.TimeSpentSeconds,
	})
	if err != nil {
		return fmt.Errorf("encode persist job: %w", err)
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, job).Err(); err != nil {
		// The ledger write already landed; the finalize merge will still see
		// this answer even if the queue push was lost.
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Persist queue push failed")
	}
	return nil
}

// mergeLedger overlays the live ledger onto the durable instances. The
// ledger is written before the queue, so for any question present in both
// it is the fresher record.
func (s *SessionService) mergeLedger(ctx context.Context, sessionID uuid.UUID, questions []model.SessionQuestion) {
	entries, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Result()
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Ledger read failed, using durable answers only")
		return
	}
	if len(entries) == 0 {
		return
	}

	for i := range questions {
		inst := &questions[i].Instance
		raw, ok := entries[inst.QuestionID.String()]
		if !ok {
			continue
		}
		var entry answerEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			s.log.Error().Err(err).Str("question_id", inst.QuestionID.String()).Msg("Corrupt ledger entry skipped")
			continue
		}

		if entry.Answer != "" {
			inst.SubmittedAnswer = &entry.Answer
		}
		first := entry.FirstViewedAt
		last := entry.LastModifiedAt
		inst.FirstViewedAt = &first
		inst.LastModifiedAt = &last
		if entry.TimeSpentSeconds > inst.TimeSpentSeconds {
			inst.TimeSpentSeconds = entry.TimeSpentSeconds
		}
	}
}

// ─── Result Cache ────────────────────────────────────────────────

// loadResult returns the terminal result, from cache when possible and
// rebuilt from PostgreSQL (then re-cached) when not.
func (s *SessionService) loadResult(ctx context.Context, sess *model.ExamSession) (*model.GradeResult, error) {
	key := config.CacheKey.SessionResultKey(sess.ID.String())
	if val, err := s.rdb.Get(ctx, key).Result(); err == nil {
		result := &model.GradeResult{}
		if jsonErr := json.Unmarshal([]byte(val), result); jsonErr == nil {
			return result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Result cache read failed, rebuilding from database")
	}

	questions, err := s.store.GetQuestions(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("rebuild result: %w", err)
	}

	result := &model.GradeResult{
		SessionID:   sess.ID,
		TotalCount:  sess.QuestionCount,
		PerQuestion: make([]model.QuestionResult, 0, len(questions)),
	}
	if sess.ScorePercent != nil {
		result.ScorePercent = *sess.ScorePercent
	}
	if sess.CorrectCount != nil {
		result.CorrectCount = *sess.CorrectCount
	}
	if sess.CompletionReason != nil {
		result.CompletionReason = *sess.CompletionReason
	}
	if sess.FinishedAt != nil {
		result.FinishedAt = *sess.FinishedAt
	}
	for i := range questions {
		result.PerQuestion = append(result.PerQuestion, buildQuestionResult(&questions[i]))
	}

	s.cacheResult(ctx, result)
	return result, nil
}

func (s *SessionService) cacheResult(ctx context.Context, result *model.GradeResult) {
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	key := config.CacheKey.SessionResultKey(result.SessionID.String())
	if err := s.rdb.Set(ctx, key, raw, sessionResultTTL).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", result.SessionID.String()).Msg("Result cache write failed")
	}
	s.invalidateMeta(ctx, result.SessionID)
}

// ─── Meta Cache ──────────────────────────────────────────────────

func (s *SessionService) cacheMeta(ctx context.Context, sess *model.ExamSession) {
	raw, err := json.Marshal(SessionMeta{Status: sess.Status, Deadline: sess.Deadline, OwnerID: sess.OwnerID})
	if err != nil {
		return
	}
	key := config.CacheKey.SessionMetaKey(sess.ID.String())
	if err := s.rdb.Set(ctx, key, raw, sessionMetaTTL).Err(); err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Meta cache write failed")
	}
}

// invalidateMeta drops the cached header after a transition so pollers
// re-read the source of truth.
func (s *SessionService) invalidateMeta(ctx context.Context, sessionID uuid.UUID) {
	s.rdb.Del(ctx, config.CacheKey.SessionMetaKey(sessionID.String()))
}

// ─── Helpers ─────────────────────────────────────────────────────

// authorize fetches the session and enforces ownership.
func (s *SessionService) authorize(ctx context.Context, sessionID uuid.UUID, ownerID int) (*model.ExamSession, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return sess, nil
}
