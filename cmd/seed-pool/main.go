package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/database"
	"github.com/docexam/docexam-backend/internal/logger"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/docexam/docexam-backend/internal/repository"
	"github.com/google/uuid"
)

func main() {
	filePath := flag.String("file", "seed/questions.json", "Path to JSON file containing question specs")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	questionRepo := repository.NewQuestionRepository(pool)

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read seed file")
	}

	var specs []model.QuestionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		log.Fatal().Err(err).Msg("Seed file is not a JSON array of question specs")
	}

	fmt.Printf("=== Seeding %d Question Specs ===\n", len(specs))

	successCount := 0
	for i := range specs {
		spec := &specs[i]
		if spec.ID == uuid.Nil {
			spec.ID = uuid.New()
		}
		if spec.KeyPoints == nil {
			spec.KeyPoints = []string{}
		}

		if err := validateSpec(spec); err != nil {
			fmt.Printf("Skipping spec %d (%s): %v\n", i+1, spec.ID, err)
			continue
		}

		if err := questionRepo.Create(ctx, spec); err != nil {
			fmt.Printf("Error inserting spec %d (%s): %v\n", i+1, spec.ID, err)
			continue
		}
		successCount++
		if successCount%50 == 0 {
			fmt.Printf("Inserted %d specs...\n", successCount)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d question specs.\n", successCount, len(specs))
}

// validateSpec rejects specs that would be unanswerable or ungradable once
// sampled into a session.
func validateSpec(q *model.QuestionSpec) error {
	if strings.TrimSpace(q.DocumentScope) == "" {
		return fmt.Errorf("document_scope is required")
	}
	if strings.TrimSpace(q.QuestionText) == "" {
		return fmt.Errorf("question_text is required")
	}

	switch q.Difficulty {
	case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
	default:
		return fmt.Errorf("unknown difficulty %q", q.Difficulty)
	}

	switch q.QuestionType {
	case model.QuestionTypeMultipleChoice:
		var options []json.RawMessage
		if len(q.Options) == 0 || json.Unmarshal(q.Options, &options) != nil || len(options) < 2 {
			return fmt.Errorf("multiple choice requires an options array with at least 2 entries")
		}
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return fmt.Errorf("multiple choice requires correct_answer")
		}
	case model.QuestionTypeTrueFalse:
		switch strings.ToLower(strings.TrimSpace(q.CorrectAnswer)) {
		case "true", "false":
		default:
			return fmt.Errorf("true/false requires correct_answer of true or false")
		}
	case model.QuestionTypeFreeText:
		if strings.TrimSpace(q.ModelAnswer) == "" {
			return fmt.Errorf("free text requires model_answer")
		}
	default:
		return fmt.Errorf("unknown question_type %q", q.QuestionType)
	}

	return nil
}
