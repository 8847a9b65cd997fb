package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. Transitions only move
// forward: CREATED -> ACTIVE -> SUBMITTING -> {COMPLETED, FAILED}. The
// single ACTIVE -> SUBMITTING step is guarded by a compare-and-set on this
// field; nothing ever moves a session back to ACTIVE.
type SessionStatus string

const (
	SessionStatusCreated    SessionStatus = "CREATED"
	SessionStatusActive     SessionStatus = "ACTIVE"
	SessionStatusSubmitting SessionStatus = "SUBMITTING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusFailed     SessionStatus = "FAILED"
)

// Terminal reports whether the status accepts no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// ExamSession is one timed attempt at an assessment. Deadline is stamped
// exactly once when the session activates and is never recomputed; it is
// the only authority on expiry.
type ExamSession struct {
	ID               uuid.UUID         `json:"id"`
	OwnerID          int               `json:"owner_id"`
	DocumentScope    string            `json:"document_scope"`
	Status           SessionStatus     `json:"status"`
	QuestionCount    int               `json:"question_count"`
	DurationSeconds  int               `json:"duration_seconds"`
	StartedAt        time.Time         `json:"started_at"`
	Deadline         time.Time         `json:"deadline"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
	ScorePercent     *float64          `json:"score_percent,omitempty"`
	CorrectCount     *int              `json:"correct_count,omitempty"`
	CompletionReason *CompletionReason `json:"completion_reason,omitempty"`
	GradingStartedAt *time.Time        `json:"grading_started_at,omitempty"`
}

// RemainingSeconds derives the time left from the stored deadline, floored
// at zero so a client polling after expiry never sees a negative countdown.
func (s *ExamSession) RemainingSeconds(now time.Time) int {
	remaining := s.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// Expired reports whether the deadline has passed at the given instant.
func (s *ExamSession) Expired(now time.Time) bool {
	return !now.Before(s.Deadline)
}

// QuestionInstance is the per-session, per-question ledger entry: the
// latest answer, view/modify timestamps, accumulated time, and the grading
// outcome once the session terminates.
type QuestionInstance struct {
	SessionID        uuid.UUID  `json:"session_id"`
	QuestionID       uuid.UUID  `json:"question_id"`
	Position         int        `json:"position"`
	SubmittedAnswer  *string    `json:"submitted_answer,omitempty"`
	FirstViewedAt    *time.Time `json:"first_viewed_at,omitempty"`
	LastModifiedAt   *time.Time `json:"last_modified_at,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
	Graded           bool       `json:"graded"`
	Correct          bool       `json:"correct"`
	GradeDetail      string     `json:"grade_detail,omitempty"`
	Similarity       *float64   `json:"similarity,omitempty"`
	KeyPointCoverage *float64   `json:"key_point_coverage,omitempty"`
}

// SessionQuestion joins an instance with its immutable spec. Used by the
// grading pipeline and the result view; never sent to a live session.
type SessionQuestion struct {
	Instance QuestionInstance
	Spec     QuestionSpec
}

// AnswerPersistJob is one queued mirror write from the live ledger to the
// durable instance row. Produced on every ledger touch, consumed by the
// answer persistence worker.
type AnswerPersistJob struct {
	SessionID        uuid.UUID `json:"session_id"`
	QuestionID       uuid.UUID `json:"question_id"`
	Answer           string    `json:"answer"`
	FirstViewedAt    time.Time `json:"first_viewed_at"`
	LastModifiedAt   time.Time `json:"last_modified_at"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// CreateSessionRequest is the payload for opening a new session. Validated
// once here; the stored session is immutable afterwards.
type CreateSessionRequest struct {
	DocumentScope    string `json:"document_scope" binding:"required,min=1,max=255"`
	QuestionCount    int    `json:"question_count" binding:"required,min=1,max=100"`
	DurationSeconds  int    `json:"duration_seconds" binding:"required,min=30,max=14400"`
	DifficultyFilter string `json:"difficulty_filter" binding:"omitempty,oneof=easy medium hard"`
}

// SubmitAnswerRequest is the payload for upserting one answer.
type SubmitAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"required,max=10000"`
}

// SessionState is the live view returned to the taker: authoritative
// remaining time, the answer-stripped questions, and the answers recorded
// so far.
type SessionState struct {
	SessionID        uuid.UUID          `json:"session_id"`
	Status           SessionStatus      `json:"status"`
	DocumentScope    string             `json:"document_scope"`
	StartedAt        time.Time          `json:"started_at"`
	Deadline         time.Time          `json:"deadline"`
	RemainingSeconds int                `json:"remaining_seconds"`
	Questions        []QuestionForTaker `json:"questions"`
	Answers          map[string]string  `json:"answers"`
}

// SessionSummary is one row of an owner's session history.
type SessionSummary struct {
	ID               uuid.UUID         `json:"id"`
	DocumentScope    string            `json:"document_scope"`
	Status           SessionStatus     `json:"status"`
	QuestionCount    int               `json:"question_count"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
	ScorePercent     *float64          `json:"score_percent,omitempty"`
	CompletionReason *CompletionReason `json:"completion_reason,omitempty"`
}
