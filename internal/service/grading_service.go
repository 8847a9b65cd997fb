package service

import (
	"context"
	"strings"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/rs/zerolog"
)

// SemanticGrader scores one free-text answer against its reference
// material. One call is one attempt; this service owns the retry policy.
type SemanticGrader interface {
	Score(ctx context.Context, submitted, modelAnswer string, keyPoints []string) (model.SemanticScore, error)
}

// GradingService turns a finished session's ledger into a GradeResult. It
// runs exactly once per session, after the session has already committed to
// SUBMITTING, and it cannot fail: a collaborator that stays down degrades
// the affected questions instead of blocking completion.
type GradingService struct {
	grader SemanticGrader
	log    zerolog.Logger

	maxAttempts  int
	backoffBase  time.Duration
	budget       time.Duration
	simThreshold float64
	kpThreshold  float64
}

// NewGradingService creates a new GradingService.
func NewGradingService(grader SemanticGrader, cfg *config.Config, log zerolog.Logger) *GradingService {
	return &GradingService{
		grader:       grader,
		log:          log.With().Str("component", "grading_service").Logger(),
		maxAttempts:  cfg.GraderMaxAttempts,
		backoffBase:  cfg.GraderBackoffBase,
		budget:       cfg.GradingBudget,
		simThreshold: cfg.SimilarityThreshold,
		kpThreshold:  cfg.KeyPointThreshold,
	}
}

// Grade scores every question in place and returns the session rollup.
// baseReason says how the session ended (manual or timeout); it is upgraded
// to forced_degrade when any question stays ungraded. The whole run is
// capped by the grading budget, so a stalled collaborator can delay
// completion by at most that much.
func (g *GradingService) Grade(ctx context.Context, session model.ExamSession, questions []model.SessionQuestion, baseReason model.CompletionReason) *model.GradeResult {
	runCtx, cancel := context.WithTimeout(ctx, g.budget)
	defer cancel()

	correct := 0
	degraded := 0

	for i := range questions {
		g.gradeOne(runCtx, &questions[i])
		inst := &questions[i].Instance
		if inst.Correct {
			correct++
		}
		if !inst.Graded {
			degraded++
		}
	}

	total := len(questions)
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}

	reason := baseReason
	if degraded > 0 {
		reason = model.CompletionForcedDegrade
		g.log.Warn().
			Str("session_id", session.ID.String()).
			Int("ungraded", degraded).
			Msg("Completing session with degraded grading")
	}

	perQuestion := make([]model.QuestionResult, 0, total)
	for i := range questions {
		perQuestion = append(perQuestion, buildQuestionResult(&questions[i]))
	}

	return &model.GradeResult{
		SessionID:        session.ID,
		ScorePercent:     score,
		CorrectCount:     correct,
		TotalCount:       total,
		CompletionReason: reason,
		FinishedAt:       time.Now().UTC(),
		PerQuestion:      perQuestion,
	}
}

// buildQuestionResult assembles the reviewable outcome for one question,
// answer key and explanation included. Nothing outside the result path ever
// sees these fields.
func buildQuestionResult(sq *model.SessionQuestion) model.QuestionResult {
	return model.QuestionResult{
		QuestionID:       sq.Instance.QuestionID,
		Position:         sq.Instance.Position,
		QuestionType:     sq.Spec.QuestionType,
		QuestionText:     sq.Spec.QuestionText,
		SubmittedAnswer:  sq.Instance.SubmittedAnswer,
		CorrectAnswer:    sq.Spec.CorrectAnswer,
		ModelAnswer:      sq.Spec.ModelAnswer,
		KeyPoints:        sq.Spec.KeyPoints,
		Explanation:      sq.Spec.Explanation,
		Graded:           sq.Instance.Graded,
		Correct:          sq.Instance.Correct,
		GradeDetail:      sq.Instance.GradeDetail,
		Similarity:       sq.Instance.Similarity,
		KeyPointCoverage: sq.Instance.KeyPointCoverage,
		TimeSpentSeconds: sq.Instance.TimeSpentSeconds,
	}
}

// gradeOne scores a single question. The switch over question types is
// exhaustive; an unknown type is treated like a failed collaborator and
// degrades rather than guessing.
func (g *GradingService) gradeOne(ctx context.Context, sq *model.SessionQuestion) {
	inst := &sq.Instance

	if inst.SubmittedAnswer == nil || strings.TrimSpace(*inst.SubmittedAnswer) == "" {
		inst.Graded = true
		inst.Correct = false
		inst.GradeDetail = model.GradeDetailUnanswered
		return
	}
	answer := strings.TrimSpace(*inst.SubmittedAnswer)

	switch sq.Spec.QuestionType {
	case model.QuestionTypeMultipleChoice, model.QuestionTypeTrueFalse:
		inst.Graded = true
		inst.Correct = strings.EqualFold(answer, strings.TrimSpace(sq.Spec.CorrectAnswer))
		if inst.Correct {
			inst.GradeDetail = model.GradeDetailExactMatch
		} else {
			inst.GradeDetail = model.GradeDetailMismatch
		}

	case model.QuestionTypeFreeText:
		score, ok := g.scoreWithRetry(ctx, answer, sq.Spec.ModelAnswer, sq.Spec.KeyPoints)
		if !ok {
			inst.Graded = false
			inst.Correct = false
			inst.GradeDetail = model.GradeDetailUngraded
			return
		}
		inst.Graded = true
		inst.Similarity = &score.Similarity
		inst.KeyPointCoverage = &score.KeyPointCoverage
		inst.Correct = score.Similarity >= g.simThreshold || score.KeyPointCoverage >= g.kpThreshold
		if inst.Correct {
			inst.GradeDetail = model.GradeDetailSemanticPass
		} else {
			inst.GradeDetail = model.GradeDetailSemanticFail
		}

	default:
		g.log.Error().
			Str("question_id", inst.QuestionID.String()).
			Str("type", string(sq.Spec.QuestionType)).
			Msg("Unknown question type, degrading")
		inst.Graded = false
		inst.Correct = false
		inst.GradeDetail = model.GradeDetailUngraded
	}
}

// scoreWithRetry calls the collaborator up to maxAttempts times with a
// doubling backoff. Retries stop early when the run budget expires; the
// caller degrades the question in that case.
func (g *GradingService) scoreWithRetry(ctx context.Context, submitted, modelAnswer string, keyPoints []string) (model.SemanticScore, bool) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		score, err := g.grader.Score(ctx, submitted, modelAnswer, keyPoints)
		if err == nil {
			return score, true
		}

		g.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("Semantic grading attempt failed")

		if ctx.Err() != nil {
			break
		}
		if attempt < g.maxAttempts {
			if !sleepCtx(ctx, g.backoffBase*(1<<(attempt-1))) {
				break
			}
		}
	}
	return model.SemanticScore{}, false
}

// sleepCtx sleeps for d unless the context ends first. Returns false when
// interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
