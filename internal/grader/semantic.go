package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/docexam/docexam-backend/internal/model"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// Client scores free-text answers against a model answer and key points
// through an OpenAI-compatible chat endpoint. One call is one attempt;
// retry policy belongs to the caller.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a semantic grading client. An empty base URL targets the
// OpenAI API; any compatible endpoint (a local Ollama, a proxy) works via
// GRADER_BASE_URL.
func New(cfg *config.Config, log zerolog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.GraderAPIKey)
	if cfg.GraderBaseURL != "" {
		apiCfg.BaseURL = cfg.GraderBaseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   cfg.GraderModel,
		timeout: cfg.GraderCallTimeout,
		log:     log.With().Str("component", "grader").Logger(),
	}
}

// scorePayload is the JSON shape the model is instructed to return.
type scorePayload struct {
	Similarity       float64 `json:"similarity"`
	KeyPointCoverage float64 `json:"key_point_coverage"`
}

// Score evaluates one submitted answer. Both returned values are clamped
// to [0,1] regardless of what the model emits.
func (c *Client) Score(ctx context.Context, submitted, modelAnswer string, keyPoints []string) (model.SemanticScore, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildScorePrompt(modelAnswer, keyPoints)},
			{Role: openai.ChatMessageRoleUser, Content: submitted},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return model.SemanticScore{}, fmt.Errorf("semantic grading call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.SemanticScore{}, fmt.Errorf("semantic grader returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	c.log.Debug().Str("raw", raw).Msg("Semantic grader response")

	var p scorePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return model.SemanticScore{}, fmt.Errorf("parse semantic grader response: %w (raw: %s)", err, raw)
	}

	return model.SemanticScore{
		Similarity:       clamp01(p.Similarity),
		KeyPointCoverage: clamp01(p.KeyPointCoverage),
	}, nil
}

func buildScorePrompt(modelAnswer string, keyPoints []string) string {
	var sb strings.Builder
	sb.WriteString("You are an exam grading assistant. Compare the student's answer (the user message) against the reference material below.\n\n")
	sb.WriteString("MODEL ANSWER:\n" + modelAnswer + "\n\n")

	if len(keyPoints) > 0 {
		sb.WriteString("KEY POINTS the answer should cover:\n")
		for i, kp := range keyPoints {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, kp))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("- similarity: how semantically close the student's answer is to the model answer, from 0.0 (unrelated) to 1.0 (equivalent).\n")
	sb.WriteString("- key_point_coverage: the fraction of the key points the student's answer addresses, from 0.0 to 1.0. Use 0.0 when no key points are listed.\n")
	sb.WriteString("- Judge meaning, not wording. Ignore spelling and grammar.\n")
	sb.WriteString("\nRespond ONLY with a JSON object:\n")
	sb.WriteString(`{"similarity": <0.0-1.0>, "key_point_coverage": <0.0-1.0>}`)
	sb.WriteString("\n")

	return sb.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
