package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"annadata-backend/internal/models"
)

const (
	providerOpenRouter = "openrouter"

	// FallbackReply is returned when the model answers with nothing usable.
	FallbackReply = "माफ़ कीजिए, मैं इस सवाल का सही जवाब नहीं दे पा रहा हूँ। कृपया दूसरा सवाल पूछें।"

	systemPrompt = "You are a helpful AI assistant for Indian agriculture, designed to support farmers. " +
		"Your main goal is to provide clear, practical, and easy-to-understand advice about " +
		"farming, crops, soil, irrigation, fertilizers, pest control, weather updates, and government schemes. " +
		"Avoid unnecessary technical jargon; explain things simply, as if speaking to rural farmers. " +
		"Always reply in the SAME language as the user's message. " +
		"If the user writes in Hindi, reply in Hindi. " +
		"If the user writes in English, reply in English. " +
		"If the user mixes languages (Hinglish), reply in the same style. " +
		"Keep answers concise, friendly, and supportive, so farmers can take direct action from your guidance."
)

var errCompletionKeyMissing = &ConfigError{Message: "Server misconfigured: API key missing"}

var boldPattern = regexp.MustCompile(`(?s)\*\*(.+?)\*\*`)

// CompletionClient talks to an OpenAI-compatible chat-completions endpoint (OpenRouter).
type CompletionClient struct {
	apiKey   string
	baseURL  string
	model    string
	appURL   string
	appTitle string
	http     *http.Client
}

func NewCompletionClient(apiKey, baseURL, model, appURL, appTitle string, timeout time.Duration) *CompletionClient {
	return &CompletionClient{
		apiKey:   apiKey,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		model:    model,
		appURL:   appURL,
		appTitle: appTitle,
		http:     &http.Client{Timeout: timeout},
	}
}

// BuildConversation prepends the farming-assistant system prompt to the user's text.
func BuildConversation(userText string) []models.ChatMessage {
	return []models.ChatMessage{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: userText},
	}
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Configured reports whether an API key is set.
func (c *CompletionClient) Configured() bool { return c.apiKey != "" }

// Complete sends one chat-completion request and returns the cleaned first choice.
func (c *CompletionClient) Complete(ctx context.Context, messages []models.ChatMessage, model string) (*models.ChatReply, error) {
	if !c.Configured() {
		return nil, errCompletionKeyMissing
	}
	if len(messages) == 0 {
		return nil, requiredField("messages", "At least one message is required")
	}
	if model == "" {
		model = c.model
	}

	body, err := json.Marshal(models.CompletionRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, &InternalError{Err: fmt.Errorf("marshal completion request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &InternalError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.appURL != "" {
		req.Header.Set("HTTP-Referer", c.appURL)
	}
	if c.appTitle != "" {
		req.Header.Set("X-Title", c.appTitle)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Service: providerOpenRouter, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &UpstreamError{
			Service:    providerOpenRouter,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(msg))),
		}
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &UpstreamError{Service: providerOpenRouter, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return nil, &UpstreamError{Service: providerOpenRouter, Err: errors.New("no choices returned")}
	}

	text := cleanReply(result.Choices[0].Message.Content)
	if text == "" {
		return &models.ChatReply{Text: FallbackReply, Empty: true}, nil
	}
	return &models.ChatReply{Text: text}, nil
}

// cleanReply removes **bold** markers and surrounding whitespace.
func cleanReply(content string) string {
	content = boldPattern.ReplaceAllString(content, "$1")
	return strings.TrimSpace(content)
}
