package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingSeconds(t *testing.T) {
	now := time.Now().UTC()
	s := &ExamSession{
		StartedAt: now,
		Deadline:  now.Add(90 * time.Second),
	}

	assert.Equal(t, 90, s.RemainingSeconds(now))
	assert.Equal(t, 30, s.RemainingSeconds(now.Add(60*time.Second)))

	// Floored at zero, never negative
	assert.Equal(t, 0, s.RemainingSeconds(now.Add(90*time.Second)))
	assert.Equal(t, 0, s.RemainingSeconds(now.Add(5*time.Minute)))
}

func TestExpiredBoundary(t *testing.T) {
	now := time.Now().UTC()
	s := &ExamSession{Deadline: now.Add(time.Minute)}

	assert.False(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(time.Minute-time.Nanosecond)))

	// The deadline instant itself is already expired
	assert.True(t, s.Expired(now.Add(time.Minute)))
	assert.True(t, s.Expired(now.Add(2*time.Minute)))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, SessionStatusCreated.Terminal())
	assert.False(t, SessionStatusActive.Terminal())
	assert.False(t, SessionStatusSubmitting.Terminal())
	assert.True(t, SessionStatusCompleted.Terminal())
	assert.True(t, SessionStatusFailed.Terminal())
}

func TestForTakerStripsAnswerKey(t *testing.T) {
	spec := &QuestionSpec{
		QuestionType:  QuestionTypeMultipleChoice,
		Difficulty:    DifficultyHard,
		QuestionText:  "Which port does the collector listen on?",
		Options:       []byte(`["4317","4318","9090"]`),
		CorrectAnswer: "4317",
		ModelAnswer:   "should not survive",
		Explanation:   "should not survive",
	}

	taker := spec.ForTaker(3)

	assert.Equal(t, 3, taker.Position)
	assert.Equal(t, spec.QuestionText, taker.QuestionText)
	assert.Equal(t, spec.Options, taker.Options)

	// The wire form is what the taker sees; the key must not be in it.
	// The raw option text may coincide with the correct answer, so the
	// check is on the key fields, not the value.
	raw, err := json.Marshal(taker)
	assert.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answer")
	assert.NotContains(t, string(raw), "should not survive")
}
