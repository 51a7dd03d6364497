package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/storynest/storynest-backend/internal/logger"
	"github.com/storynest/storynest-backend/internal/types"
)

// StoryResult is the broad (whole-story) generator output.
type StoryResult struct {
	Title      string               `json:"title"`
	Chapters   []types.StoryChapter `json:"chapters"`
	Vocabulary []VocabularyItem     `json:"vocabulary"`
}

type VocabularyItem struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
}

// ContentGenerator is the external story/activity generator. Both calls
// are fallible remote calls; callers must treat errors as expected.
type ContentGenerator interface {
	GenerateStory(ctx context.Context, student *types.Student, theme string, chapterCount int) (*StoryResult, error)
	GenerateActivity(ctx context.Context, student *types.Student, theme string, dayIndex int, activityType string) (map[string]any, error)
}

type openAIGenerator struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewOpenAIGenerator(log *logger.Logger) (ContentGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	timeoutSec := 90
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &openAIGenerator{
		log:        log.With("service", "OpenAIGenerator"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

func (g *openAIGenerator) GenerateStory(ctx context.Context, student *types.Student, theme string, chapterCount int) (*StoryResult, error) {
	if student == nil {
		return nil, fmt.Errorf("student required")
	}
	system := "You write short illustrated-reader stories for children. " +
		"Respond with JSON only: {title, chapters:[{index,title,text}], vocabulary:[{word,definition}]}."
	user := fmt.Sprintf(
		"Write a story for a %d-year-old reader (level %q) on the theme %q, split into exactly %d chapters of 120-200 words each. Include 5 vocabulary words drawn from the story.",
		student.Age, student.ReadingLevel, theme, chapterCount,
	)
	raw, err := g.completeJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var out StoryResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode story payload: %w", err)
	}
	if out.Title == "" || len(out.Chapters) != chapterCount {
		return nil, fmt.Errorf("story payload incomplete: %d chapters", len(out.Chapters))
	}
	return &out, nil
}

func (g *openAIGenerator) GenerateActivity(ctx context.Context, student *types.Student, theme string, dayIndex int, activityType string) (map[string]any, error) {
	if student == nil {
		return nil, fmt.Errorf("student required")
	}
	if !types.IsActivityType(activityType) {
		return nil, fmt.Errorf("unknown activity type %q", activityType)
	}
	system := "You design reading-comprehension activities for children. Respond with a single JSON object."
	user := fmt.Sprintf(
		"Create a %q activity for day %d of a story themed %q, for a %d-year-old. The object must include a \"prompt\" string and the fields that activity type needs (options, items, pairs...).",
		activityType, dayIndex, theme, student.Age,
	)
	raw, err := g.completeJSON(ctx, system, user)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode activity payload: %w", err)
	}
	if _, ok := out["prompt"]; !ok {
		return nil, fmt.Errorf("activity payload missing prompt")
	}
	return out, nil
}

type generatorHTTPError struct {
	StatusCode int
	Body       string
}

func (e *generatorHTTPError) Error() string {
	return fmt.Sprintf("generator http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func (g *openAIGenerator) completeJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	body := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"response_format": map[string]string{"type": "json_object"},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<attempt) * 500 * time.Millisecond
			backoff += time.Duration(rand.Intn(250)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		raw, err := g.doOnce(ctx, payload)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if httpErr, ok := err.(*generatorHTTPError); ok && !isRetryableHTTP(httpErr.StatusCode) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.Warn("generator call failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("generator exhausted retries: %w", lastErr)
}

func (g *openAIGenerator) doOnce(ctx context.Context, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &generatorHTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 500)}
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode completion envelope: %w", err)
	}
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty completion")
	}
	return json.RawMessage(envelope.Choices[0].Message.Content), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
