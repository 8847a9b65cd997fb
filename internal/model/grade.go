package model

import (
	"time"

	"github.com/google/uuid"
)

// CompletionReason records how a session reached COMPLETED.
type CompletionReason string

const (
	// CompletionManualSubmit: the taker submitted before the deadline.
	CompletionManualSubmit CompletionReason = "manual_submit"
	// CompletionTimeoutAutoSubmit: the deadline fired and the session
	// auto-submitted with whatever answers were in the ledger.
	CompletionTimeoutAutoSubmit CompletionReason = "timeout_auto_submit"
	// CompletionForcedDegrade: at least one question could not be graded
	// within the retry budget; the score excludes it and is not fully
	// trustworthy.
	CompletionForcedDegrade CompletionReason = "forced_degrade"
)

// Grade detail markers stored per question.
const (
	GradeDetailExactMatch   = "exact_match"
	GradeDetailMismatch     = "mismatch"
	GradeDetailUnanswered   = "unanswered"
	GradeDetailSemanticPass = "semantic_pass"
	GradeDetailSemanticFail = "semantic_fail"
	GradeDetailUngraded     = "ungraded"
)

// SemanticScore is the semantic grading collaborator's verdict for one
// free-text answer. Both values are clamped to [0,1].
type SemanticScore struct {
	Similarity       float64 `json:"similarity"`
	KeyPointCoverage float64 `json:"key_point_coverage"`
}

// GradeResult is the session-level rollup produced exactly once, when the
// session leaves SUBMITTING.
type GradeResult struct {
	SessionID        uuid.UUID        `json:"session_id"`
	ScorePercent     float64          `json:"score_percent"`
	CorrectCount     int              `json:"correct_count"`
	TotalCount       int              `json:"total_count"`
	CompletionReason CompletionReason `json:"completion_reason"`
	FinishedAt       time.Time        `json:"finished_at"`
	PerQuestion      []QuestionResult `json:"per_question"`
}

// QuestionResult is the graded outcome of one question, including the
// answer key and explanation. Only ever returned for terminal sessions.
type QuestionResult struct {
	QuestionID       uuid.UUID    `json:"question_id"`
	Position         int          `json:"position"`
	QuestionType     QuestionType `json:"question_type"`
	QuestionText     string       `json:"question_text"`
	SubmittedAnswer  *string      `json:"submitted_answer,omitempty"`
	CorrectAnswer    string       `json:"correct_answer,omitempty"`
	ModelAnswer      string       `json:"model_answer,omitempty"`
	KeyPoints        []string     `json:"key_points,omitempty"`
	Explanation      string       `json:"explanation,omitempty"`
	Graded           bool         `json:"graded"`
	Correct          bool         `json:"correct"`
	GradeDetail      string       `json:"grade_detail"`
	Similarity       *float64     `json:"similarity,omitempty"`
	KeyPointCoverage *float64     `json:"key_point_coverage,omitempty"`
	TimeSpentSeconds int          `json:"time_spent_seconds"`
}
