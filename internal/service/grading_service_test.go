package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGrader returns canned scores, optionally failing the first N calls to
// exercise the retry policy.
type fakeGrader struct {
	score     model.SemanticScore
	failFirst int
	calls     int
}

func (g *fakeGrader) Score(_ context.Context, _, _ string, _ []string) (model.SemanticScore, error) {
	g.calls++
	if g.calls <= g.failFirst {
		return model.SemanticScore{}, errors.New("upstream unavailable")
	}
	return g.score, nil
}

func gradingTestConfig() *config.Config {
	return &config.Config{
		GraderMaxAttempts:   3,
		GraderBackoffBase:   time.Millisecond,
		GradingBudget:       5 * time.Second,
		SimilarityThreshold: 0.60,
		KeyPointThreshold:   0.50,
	}
}

func objectiveQuestion(qtype model.QuestionType, correctAnswer string, submitted *string) model.SessionQuestion {
	return model.SessionQuestion{
		Instance: model.QuestionInstance{
			SessionID:       uuid.New(),
			QuestionID:      uuid.New(),
			SubmittedAnswer: submitted,
		},
		Spec: model.QuestionSpec{
			QuestionType:  qtype,
			CorrectAnswer: correctAnswer,
		},
	}
}

func freeTextQuestion(submitted *string) model.SessionQuestion {
	return model.SessionQuestion{
		Instance: model.QuestionInstance{
			SessionID:       uuid.New(),
			QuestionID:      uuid.New(),
			SubmittedAnswer: submitted,
		},
		Spec: model.QuestionSpec{
			QuestionType: model.QuestionTypeFreeText,
			ModelAnswer:  "The deadline is stamped once at activation.",
			KeyPoints:    []string{"stamped once", "never recomputed"},
		},
	}
}

func strPtr(s string) *string { return &s }

func TestGradeObjectiveAnswers(t *testing.T) {
	svc := NewGradingService(&fakeGrader{}, gradingTestConfig(), zerolog.Nop())
	session := model.ExamSession{ID: uuid.New()}

	questions := []model.SessionQuestion{
		objectiveQuestion(model.QuestionTypeMultipleChoice, "B", strPtr("B")),
		// Comparison ignores case and surrounding whitespace
		objectiveQuestion(model.QuestionTypeTrueFalse, "true", strPtr("  TRUE ")),
		objectiveQuestion(model.QuestionTypeMultipleChoice, "C", strPtr("A")),
	}

	result := svc.Grade(context.Background(), session, questions, model.CompletionManualSubmit)

	require.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 2, result.CorrectCount)
	assert.InDelta(t, 66.67, result.ScorePercent, 0.01)
	assert.Equal(t, model.CompletionManualSubmit, result.CompletionReason)

	assert.Equal(t, model.GradeDetailExactMatch, result.PerQuestion[0].GradeDetail)
	assert.Equal(t, model.GradeDetailExactMatch, result.PerQuestion[1].GradeDetail)
	assert.Equal(t, model.GradeDetailMismatch, result.PerQuestion[2].GradeDetail)
}

func TestGradeUnansweredCountsAsWrong(t *testing.T) {
	svc := NewGradingService(&fakeGrader{}, gradingTestConfig(), zerolog.Nop())
	session := model.ExamSession{ID: uuid.New()}

	questions := []model.SessionQuestion{
		objectiveQuestion(model.QuestionTypeMultipleChoice, "B", nil),
		// Whitespace-only answers are treated as unanswered
		objectiveQuestion(model.QuestionTypeMultipleChoice, "B", strPtr("   ")),
		freeTextQuestion(nil),
	}

	result := svc.Grade(context.Background(), session, questions, model.CompletionTimeoutAutoSubmit)

	assert.Equal(t, 0, result.CorrectCount)
	assert.Equal(t, 0.0, result.ScorePercent)
	// Unanswered is a graded outcome, not a degraded one
	assert.Equal(t, model.CompletionTimeoutAutoSubmit, result.CompletionReason)
	for _, qr := range result.PerQuestion {
		assert.True(t, qr.Graded)
		assert.False(t, qr.Correct)
		assert.Equal(t, model.GradeDetailUnanswered, qr.GradeDetail)
	}
}

func TestGradeFreeTextSimilarityPass(t *testing.T) {
	grader := &fakeGrader{score: model.SemanticScore{Similarity: 0.62, KeyPointCoverage: 0.10}}
	svc := NewGradingService(grader, gradingTestConfig(), zerolog.Nop())

	questions := []model.SessionQuestion{freeTextQuestion(strPtr("stamped at activation, fixed"))}
	result := svc.Grade(context.Background(), model.ExamSession{ID: uuid.New()}, questions, model.CompletionManualSubmit)

	require.Equal(t, 1, result.CorrectCount)
	qr := result.PerQuestion[0]
	assert.True(t, qr.Graded)
	assert.Equal(t, model.GradeDetailSemanticPass, qr.GradeDetail)
	require.NotNil(t, qr.Similarity)
	assert.Equal(t, 0.62, *qr.Similarity)
}

func TestGradeFreeTextKeyPointPass(t *testing.T) {
	// Similarity below threshold, coverage above: still correct. Either
	// signal clearing its bar is enough.
	grader := &fakeGrader{score: model.SemanticScore{Similarity: 0.20, KeyPointCoverage: 0.55}}
	svc := NewGradingService(grader, gradingTestConfig(), zerolog.Nop())

	questions := []model.SessionQuestion{freeTextQuestion(strPtr("once, never recomputed"))}
	result := svc.Grade(context.Background(), model.ExamSession{ID: uuid.New()}, questions, model.CompletionManualSubmit)

	assert.Equal(t, 1, result.CorrectCount)
	assert.Equal(t, model.GradeDetailSemanticPass, result.PerQuestion[0].GradeDetail)
}

func TestGradeFreeTextFail(t *testing.T) {
	grader := &fakeGrader{score: model.SemanticScore{Similarity: 0.10, KeyPointCoverage: 0.10}}
	svc := NewGradingService(grader, gradingTestConfig(), zerolog.Nop())

	questions := []model.SessionQuestion{freeTextQuestion(strPtr("something unrelated"))}
	result := svc.Grade(context.Background(), model.ExamSession{ID: uuid.New()}, questions, model.CompletionManualSubmit)

	assert.Equal(t, 0, result.CorrectCount)
	qr := result.PerQuestion[0]
	assert.True(t, qr.Graded)
	assert.False(t, qr.Correct)
	assert.Equal(t, model.GradeDetailSemanticFail, qr.GradeDetail)
}

func TestGradeRetriesThenSucceeds(t *testing.T) {
	grader := &fakeGrader{
		score:     model.SemanticScore{Similarity: 0.80},
		failFirst: 2,
	}
	svc := NewGradingService(grader, gradingTestConfig(), zerolog.Nop())

	questions := []model.SessionQuestion{freeTextQuestion(strPtr("correct on the third try"))}
	result := svc.Grade(context.Background(), model.ExamSession{ID: uuid.New()}, questions, model.CompletionManualSubmit)

	assert.Equal(t, 3, grader.calls)
	assert.Equal(t, 1, result.CorrectCount)
	assert.Equal(t, model.CompletionManualSubmit, result.CompletionReason)
}

func TestGradeExhaustedRetriesDegrade(t *testing.T) {
	grader := &fakeGrader{failFirst: 100}
	svc := NewGradingService(grader, gradingTestConfig(), zerolog.Nop())

	session := model.ExamSession{ID: uuid.New()}
	questions := []model.SessionQuestion{
		objectiveQuestion(model.QuestionTypeMultipleChoice, "B", strPtr("B")),
		freeTextQuestion(strPtr("cannot be scored right now")),
	}

	result := svc.Grade(context.Background(), session, questions, model.CompletionManualSubmit)

	// Grading never blocks completion; the bad question degrades and the
	// reason records that the score is partial.
	assert.Equal(t, 3, grader.calls)
	assert.Equal(t, 1, result.CorrectCount)
	assert.Equal(t, model.CompletionForcedDegrade, result.CompletionReason)

	degraded := result.PerQuestion[1]
	assert.False(t, degraded.Graded)
	assert.False(t, degraded.Correct)
	assert.Equal(t, model.GradeDetailUngraded, degraded.GradeDetail)
}

func TestGradeBudgetCapsRun(t *testing.T) {
	cfg := gradingTestConfig()
	cfg.GradingBudget = 50 * time.Millisecond
	cfg.GraderBackoffBase = time.Minute // would sleep far past the budget

	grader := &fakeGrader{failFirst: 100}
	svc := NewGradingService(grader, cfg, zerolog.Nop())

	questions := []model.SessionQuestion{freeTextQuestion(strPtr("slow day"))}

	start := time.Now()
	result := svc.Grade(context.Background(), model.ExamSession{ID: uuid.New()}, questions, model.CompletionManualSubmit)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 5*time.Second, "budget must cut the backoff short")
	assert.Equal(t, model.CompletionForcedDegrade, result.CompletionReason)
	assert.False(t, result.PerQuestion[0].Graded)
}

func TestGradeEmptySession(t *testing.T) {
	svc := NewGradingService(&fakeGrader{}, gradingTestConfig(), zerolog.Nop())
	result := svc.Grade(context.Background(), model.ExamSession{ID: uuid.New()}, nil, model.CompletionManualSubmit)

	assert.Equal(t, 0, result.TotalCount)
	assert.Equal(t, 0.0, result.ScorePercent)
}
