package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds. Grading dispatches
// on this value with an exhaustive switch; adding a kind is a compile-time
// extension point.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFreeText       QuestionType = "FREE_TEXT"
)

// Difficulty levels as stored in the pool.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// QuestionSpec is one approved question from the externally curated pool.
// The engine never mutates specs; curation happens out-of-band.
type QuestionSpec struct {
	ID            uuid.UUID       `json:"id"`
	DocumentScope string          `json:"document_scope"`
	QuestionType  QuestionType    `json:"question_type"`
	Difficulty    Difficulty      `json:"difficulty"`
	QuestionText  string          `json:"question_text"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
	ModelAnswer   string          `json:"model_answer,omitempty"`
	KeyPoints     []string        `json:"key_points,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	Approved      bool            `json:"approved"`
}

// QuestionForTaker is a question stripped of the answer key, safe to send
// to the exam taker while the session is live.
type QuestionForTaker struct {
	ID           uuid.UUID       `json:"id"`
	Position     int             `json:"position"`
	QuestionType QuestionType    `json:"question_type"`
	Difficulty   Difficulty      `json:"difficulty"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options,omitempty"`
}

// ForTaker strips the answer key from a spec.
func (q *QuestionSpec) ForTaker(position int) QuestionForTaker {
	return QuestionForTaker{
		ID:           q.ID,
		Position:     position,
		QuestionType: q.QuestionType,
		Difficulty:   q.Difficulty,
		QuestionText: q.QuestionText,
		Options:      q.Options,
	}
}

// ScopeStats summarizes how many approved questions a document scope holds,
// broken down by type and difficulty.
type ScopeStats struct {
	DocumentScope string               `json:"document_scope"`
	Total         int                  `json:"total"`
	ByType        map[QuestionType]int `json:"by_type"`
	ByDifficulty  map[Difficulty]int   `json:"by_difficulty"`
}
