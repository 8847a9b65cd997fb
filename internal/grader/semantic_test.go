package grader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docexam/docexam-backend/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompletionServer stands in for an OpenAI-compatible endpoint. The
// handler decides what the "model" says.
func fakeCompletionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func graderTestConfig(baseURL string) *config.Config {
	return &config.Config{
		GraderBaseURL:     baseURL,
		GraderAPIKey:      "test-key",
		GraderModel:       "test-model",
		GraderCallTimeout: 2 * time.Second,
	}
}

func TestScoreParsesVerdict(t *testing.T) {
	srv := fakeCompletionServer(t, `{"similarity": 0.82, "key_point_coverage": 0.5}`, http.StatusOK)
	c := New(graderTestConfig(srv.URL), zerolog.Nop())

	score, err := c.Score(context.Background(), "the deadline never moves", "Deadline is stamped once.", []string{"stamped once"})
	require.NoError(t, err)
	assert.Equal(t, 0.82, score.Similarity)
	assert.Equal(t, 0.5, score.KeyPointCoverage)
}

func TestScoreClampsOutOfRangeValues(t *testing.T) {
	srv := fakeCompletionServer(t, `{"similarity": 1.7, "key_point_coverage": -0.3}`, http.StatusOK)
	c := New(graderTestConfig(srv.URL), zerolog.Nop())

	score, err := c.Score(context.Background(), "answer", "model answer", nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.Similarity)
	assert.Equal(t, 0.0, score.KeyPointCoverage)
}

func TestScoreRejectsNonJSONReply(t *testing.T) {
	srv := fakeCompletionServer(t, `I think the answer is pretty good!`, http.StatusOK)
	c := New(graderTestConfig(srv.URL), zerolog.Nop())

	_, err := c.Score(context.Background(), "answer", "model answer", nil)
	assert.Error(t, err)
}

func TestScoreSurfacesUpstreamError(t *testing.T) {
	srv := fakeCompletionServer(t, "", http.StatusInternalServerError)
	c := New(graderTestConfig(srv.URL), zerolog.Nop())

	_, err := c.Score(context.Background(), "answer", "model answer", nil)
	assert.Error(t, err)
}

func TestScoreHonorsCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	cfg := graderTestConfig(srv.URL)
	cfg.GraderCallTimeout = 50 * time.Millisecond
	c := New(cfg, zerolog.Nop())

	start := time.Now()
	_, err := c.Score(context.Background(), "answer", "model answer", nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
