package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docexam/docexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSessionNotFound is returned when a session id matches no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository owns the durable exam_sessions / session_questions
// records. Every state transition is written here; the Redis ledger is only
// a hot mirror of the answer columns.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts the session row and its ordered question instances in one
// transaction. The session arrives already ACTIVE with its deadline stamped;
// a crash mid-transaction leaves no partial session behind.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession, questionIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO exam_sessions
		   (id, owner_id, document_scope, status, question_count, duration_seconds, started_at, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.OwnerID, s.DocumentScope, s.Status, s.QuestionCount, s.DurationSeconds, s.StartedAt, s.Deadline)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, qid := range questionIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO session_questions (session_id, question_id, position)
			 VALUES ($1, $2, $3)`,
			s.ID, qid, i)
		if err != nil {
			return fmt.Errorf("insert session question: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

// GetByID retrieves the session header.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, document_scope, status, question_count, duration_seconds,
		        started_at, deadline, finished_at, score_percent, correct_count,
		        completion_reason, grading_started_at
		 FROM exam_sessions
		 WHERE id = $1`, id,
	).Scan(&s.ID, &s.OwnerID, &s.DocumentScope, &s.Status, &s.QuestionCount, &s.DurationSeconds,
		&s.StartedAt, &s.Deadline, &s.FinishedAt, &s.ScorePercent, &s.CorrectCount,
		&s.CompletionReason, &s.GradingStartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// CompareAndSetStatus atomically moves status from one value to another.
// Returns true when this caller won the transition; false when the row was
// no longer in the expected state (another signal got there first).
// Moving into SUBMITTING stamps grading_started_at so crash recovery can
// spot runs that never finished.
func (r *SessionRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error) {
	query := `UPDATE exam_sessions
	          SET status = $1
	          WHERE id = $2 AND status = $3`
	if to == model.SessionStatusSubmitting {
		query = `UPDATE exam_sessions
		         SET status = $1, grading_started_at = now()
		         WHERE id = $2 AND status = $3`
	}
	ct, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("cas to %s: %w", to, err)
	}
	return ct.RowsAffected() == 1, nil
}

// GetQuestions retrieves the ordered instances joined with their immutable
// specs. Used by grading and the result view.
func (r *SessionRepository) GetQuestions(ctx context.Context, sessionID uuid.UUID) ([]model.SessionQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sq.session_id, sq.question_id, sq.position, sq.submitted_answer,
		        sq.first_viewed_at, sq.last_modified_at, sq.time_spent_seconds,
		        sq.graded, sq.correct, sq.grade_detail, sq.similarity, sq.key_point_coverage,
		        q.document_scope, q.question_type, q.difficulty, q.question_text,
		        q.options, q.correct_answer, q.model_answer, q.key_points, q.explanation, q.approved
		 FROM session_questions sq
		 JOIN question_specs q ON q.id = sq.question_id
		 WHERE sq.session_id = $1
		 ORDER BY sq.position ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionQuestion
	for rows.Next() {
		var sq model.SessionQuestion
		var detail *string
		if err := rows.Scan(
			&sq.Instance.SessionID, &sq.Instance.QuestionID, &sq.Instance.Position, &sq.Instance.SubmittedAnswer,
			&sq.Instance.FirstViewedAt, &sq.Instance.LastModifiedAt, &sq.Instance.TimeSpentSeconds,
			&sq.Instance.Graded, &sq.Instance.Correct, &detail, &sq.Instance.Similarity, &sq.Instance.KeyPointCoverage,
			&sq.Spec.DocumentScope, &sq.Spec.QuestionType, &sq.Spec.Difficulty, &sq.Spec.QuestionText,
			&sq.Spec.Options, &sq.Spec.CorrectAnswer, &sq.Spec.ModelAnswer, &sq.Spec.KeyPoints, &sq.Spec.Explanation, &sq.Spec.Approved,
		); err != nil {
			return nil, err
		}
		if detail != nil {
			sq.Instance.GradeDetail = *detail
		}
		sq.Spec.ID = sq.Instance.QuestionID
		out = append(out, sq)
	}
	return out, rows.Err()
}

// HasQuestion reports whether the question belongs to the session's drawn
// set. Answers for anything else are rejected before touching the ledger.
func (r *SessionRepository) HasQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM session_questions
		   WHERE session_id = $1 AND question_id = $2
		 )`, sessionID, questionID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// UpsertAnswer mirrors one ledger entry into the durable instance row. Used
// by the persistence worker and by the finalize path; creation already put
// the row there, so this only ever updates.
func (r *SessionRepository) UpsertAnswer(ctx context.Context, e *model.QuestionInstance) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE session_questions
		 SET submitted_answer = $3,
		     first_viewed_at = COALESCE(first_viewed_at, $4),
		     last_modified_at = $5,
		     time_spent_seconds = GREATEST(time_spent_seconds, $6)
		 WHERE session_id = $1 AND question_id = $2`,
		e.SessionID, e.QuestionID, e.SubmittedAnswer,
		e.FirstViewedAt, e.LastModifiedAt, e.TimeSpentSeconds)
	return err
}

// FinalizeResult commits the terminal state in one transaction: the final
// answers, every grading outcome, the session rollup, and the
// SUBMITTING -> COMPLETED move. The status guard inside the same transaction
// keeps a duplicate finalize (which the CAS already makes unreachable) from
// ever double-writing.
func (r *SessionRepository) FinalizeResult(ctx context.Context, result *model.GradeResult, questions []model.SessionQuestion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin finalize: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $2, finished_at = $3, score_percent = $4,
		     correct_count = $5, completion_reason = $6
		 WHERE id = $1 AND status = $7`,
		result.SessionID, model.SessionStatusCompleted, result.FinishedAt,
		result.ScorePercent, result.CorrectCount, result.CompletionReason,
		model.SessionStatusSubmitting)
	if err != nil {
		return fmt.Errorf("finalize session row: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("finalize session row: %w", ErrSessionNotFound)
	}

	for i := range questions {
		inst := &questions[i].Instance
		_, err = tx.Exec(ctx,
			`UPDATE session_questions
			 SET submitted_answer = $3, first_viewed_at = $4, last_modified_at = $5,
			     time_spent_seconds = $6, graded = $7, correct = $8,
			     grade_detail = $9, similarity = $10, key_point_coverage = $11
			 WHERE session_id = $1 AND question_id = $2`,
			inst.SessionID, inst.QuestionID, inst.SubmittedAnswer,
			inst.FirstViewedAt, inst.LastModifiedAt, inst.TimeSpentSeconds,
			inst.Graded, inst.Correct, inst.GradeDetail, inst.Similarity, inst.KeyPointCoverage)
		if err != nil {
			return fmt.Errorf("finalize question %s: %w", inst.QuestionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit finalize: %w", err)
	}
	return nil
}

// MarkFailed moves SUBMITTING -> FAILED. Used when the result cannot be
// persisted; never touches sessions that already reached a terminal state.
func (r *SessionRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET status = $1, finished_at = now()
		 WHERE id = $2 AND status = $3`,
		model.SessionStatusFailed, id, model.SessionStatusSubmitting)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// ListDue returns ids of ACTIVE sessions whose deadline has passed. The
// sweep feeds each one into the same CAS-guarded expiry as the read path.
func (r *SessionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_sessions
		 WHERE status = $1 AND deadline <= $2
		 ORDER BY deadline ASC
		 LIMIT $3`, model.SessionStatusActive, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// ListStuckSubmitting returns ids of sessions sitting in SUBMITTING since
// before the cutoff. These are grading runs that died mid-flight; the
// sweeper fails them out rather than re-grading.
func (r *SessionRepository) ListStuckSubmitting(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM exam_sessions
		 WHERE status = $1 AND grading_started_at < $2
		 ORDER BY grading_started_at ASC
		 LIMIT $3`, model.SessionStatusSubmitting, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

// CountByStatus returns how many sessions sit in the given status. Feeds
// the ops metrics stream.
func (r *SessionRepository) CountByStatus(ctx context.Context, status model.SessionStatus) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE status = $1`, status,
	).Scan(&n)
	return n, err
}

// ListByOwner retrieves an owner's sessions newest-first with pagination.
func (r *SessionRepository) ListByOwner(ctx context.Context, ownerID, page, perPage int) ([]model.SessionSummary, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT id, document_scope, status, question_count, started_at,
		        finished_at, score_percent, completion_reason
		 FROM exam_sessions
		 WHERE owner_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.SessionSummary
	for rows.Next() {
		var s model.SessionSummary
		if err := rows.Scan(&s.ID, &s.DocumentScope, &s.Status, &s.QuestionCount,
			&s.StartedAt, &s.FinishedAt, &s.ScorePercent, &s.CompletionReason); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// RecentQuestionIDs returns the question ids used by the owner's most
// recent sessions in a scope, for best-effort exclusion at sampling time.
func (r *SessionRepository) RecentQuestionIDs(ctx context.Context, ownerID int, scope string, sessionWindow int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT sq.question_id
		 FROM session_questions sq
		 JOIN exam_sessions s ON s.id = sq.session_id
		 WHERE s.owner_id = $1 AND s.document_scope = $2
		   AND s.id IN (
		     SELECT id FROM exam_sessions
		     WHERE owner_id = $1 AND document_scope = $2
		     ORDER BY started_at DESC
		     LIMIT $3
		   )`, ownerID, scope, sessionWindow)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
