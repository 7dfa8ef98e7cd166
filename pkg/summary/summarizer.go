// Package summary turns finished meeting transcripts into stored summaries.
// Jobs arrive through the summary queue; the worker fetches the transcript,
// runs the summarizer, and writes the result onto the meeting.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
)

// Summarizer condenses a transcript into a short prose summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

const summaryPrompt = "Summarize the following meeting transcript. " +
	"Cover the topics discussed, decisions made, and any follow-ups. " +
	"Keep it under 300 words."

// OpenAISummarizer summarizes transcripts through the chat completions API.
type OpenAISummarizer struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

// OpenAIConfig configures the summarizer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAISummarizer creates a chat-completions-backed summarizer.
func NewOpenAISummarizer(cfg OpenAIConfig) *OpenAISummarizer {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAISummarizer{
		apiKey:  cfg.APIKey,
		model:   model,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Summarize sends the transcript to the model and returns its summary.
func (s *OpenAISummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("summarizer api key is not configured: %w", nxerrors.ErrDependency)
	}
	if transcript == "" {
		return "", fmt.Errorf("transcript is empty: %w", nxerrors.ErrValidation)
	}

	reqBody, err := json.Marshal(map[string]interface{}{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": summaryPrompt},
			{"role": "user", "content": transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal summarize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to build summarize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summarize request failed: %w: %v", nxerrors.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("summarizer returned %d: %s: %w",
			resp.StatusCode, string(snippet), nxerrors.ErrDependency)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode summarizer response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("summarizer returned no content: %w", nxerrors.ErrDependency)
	}

	return parsed.Choices[0].Message.Content, nil
}
