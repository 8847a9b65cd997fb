package repository

import (
	"context"
	"fmt"

	"github.com/docexam/docexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestionRepository reads the externally curated question pool. Only
// approved specs are ever visible to the sampler; writes exist solely for
// the seeding utility.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Sample draws count distinct approved specs for a scope, freshly shuffled
// per call. excludeIDs is best-effort: excluded rows are skipped while
// enough others exist. Difficulty filters when non-empty. The caller
// compares len(result) against count; this method never errors on a short
// pool.
func (r *QuestionRepository) Sample(ctx context.Context, scope string, count int, difficulty model.Difficulty, excludeIDs []uuid.UUID) ([]model.QuestionSpec, error) {
	query := `SELECT id, document_scope, question_type, difficulty, question_text,
	                 options, correct_answer, model_answer, key_points, explanation, approved
	          FROM question_specs
	          WHERE document_scope = $1 AND approved = TRUE`
	args := []any{scope}

	if difficulty != "" {
		args = append(args, difficulty)
		query += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}
	if len(excludeIDs) > 0 {
		args = append(args, excludeIDs)
		query += fmt.Sprintf(" AND NOT (id = ANY($%d))", len(args))
	}

	args = append(args, count)
	query += fmt.Sprintf(" ORDER BY random() LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []model.QuestionSpec
	for rows.Next() {
		var q model.QuestionSpec
		if err := rows.Scan(&q.ID, &q.DocumentScope, &q.QuestionType, &q.Difficulty, &q.QuestionText,
			&q.Options, &q.CorrectAnswer, &q.ModelAnswer, &q.KeyPoints, &q.Explanation, &q.Approved); err != nil {
			return nil, err
		}
		specs = append(specs, q)
	}
	return specs, rows.Err()
}

// CountAvailable counts approved specs matching the scope and optional
// difficulty, ignoring exclusions. Reported back inside pool-exhaustion
// errors.
func (r *QuestionRepository) CountAvailable(ctx context.Context, scope string, difficulty model.Difficulty) (int, error) {
	query := `SELECT COUNT(*) FROM question_specs WHERE document_scope = $1 AND approved = TRUE`
	args := []any{scope}
	if difficulty != "" {
		args = append(args, difficulty)
		query += fmt.Sprintf(" AND difficulty = $%d", len(args))
	}

	var n int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ScopeStats aggregates approved-question counts for a scope by type and
// difficulty.
func (r *QuestionRepository) ScopeStats(ctx context.Context, scope string) (*model.ScopeStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_type, difficulty, COUNT(*)
		 FROM question_specs
		 WHERE document_scope = $1 AND approved = TRUE
		 GROUP BY question_type, difficulty`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &model.ScopeStats{
		DocumentScope: scope,
		ByType:        make(map[model.QuestionType]int),
		ByDifficulty:  make(map[model.Difficulty]int),
	}
	for rows.Next() {
		var qt model.QuestionType
		var d model.Difficulty
		var n int
		if err := rows.Scan(&qt, &d, &n); err != nil {
			return nil, err
		}
		stats.ByType[qt] += n
		stats.ByDifficulty[d] += n
		stats.Total += n
	}
	return stats, rows.Err()
}

// Create inserts a spec. Only the seeding utility calls this; the service
// surface has no write path into the pool.
func (r *QuestionRepository) Create(ctx context.Context, q *model.QuestionSpec) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO question_specs
		   (id, document_scope, question_type, difficulty, question_text,
		    options, correct_answer, model_answer, key_points, explanation, approved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		q.ID, q.DocumentScope, q.QuestionType, q.Difficulty, q.QuestionText,
		q.Options, q.CorrectAnswer, q.ModelAnswer, q.KeyPoints, q.Explanation, q.Approved,
	).Scan(&q.ID)
}
