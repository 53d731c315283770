package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	openaiapi "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint, Groq
// by default.
type OpenAIClient struct {
	api    *openaiapi.Client
	hasKey bool
}

// NewOpenAIClient returns a client for baseURL. An empty token is accepted so
// the service can start; Complete then fails with ErrMissingCredential.
func NewOpenAIClient(token, baseURL string) *OpenAIClient {
	cfg := openaiapi.DefaultConfig(token)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		api:    openaiapi.NewClientWithConfig(cfg),
		hasKey: token != "",
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if !c.hasKey {
		return "", ErrMissingCredential
	}
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}

	resp, err := c.api.CreateChatCompletion(ctx, openaiapi.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toAPIMessages(req.Messages),
	})
	if err != nil {
		return "", classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	content := resp.Choices[0].Message.Content
	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("completion received")
	return content, nil
}

func toAPIMessages(turns []chat.Turn) []openaiapi.ChatCompletionMessage {
	res := make([]openaiapi.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		role := openaiapi.ChatMessageRoleUser
		if t.Role == chat.RoleAssistant {
			role = openaiapi.ChatMessageRoleAssistant
		}
		res = append(res, openaiapi.ChatCompletionMessage{
			Role:    role,
			Content: t.Content,
		})
	}
	return res
}

func classifyError(err error) error {
	status := 0

	var apiErr *openaiapi.APIError
	var reqErr *openaiapi.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}
