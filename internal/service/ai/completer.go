package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/chat-assistant/internal/config"
	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

var (
	ErrMissingCredential = errors.New("provider credential is not configured")
	ErrUnauthorized      = errors.New("provider rejected the credential")
	ErrProvider          = errors.New("provider request failed")
	ErrEmptyCompletion   = errors.New("provider returned an empty completion")
	ErrNoMessages        = errors.New("completion request has no messages")
)

// CompletionRequest is what a Completer sends upstream.
type CompletionRequest struct {
	Model    string
	Messages []chat.Turn
}

// Completer performs one blocking completion round-trip.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// NewCompleter builds the Completer for the configured provider.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderGroq, "":
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	case config.ProviderArk:
		if !cfg.Ark.Enabled() {
			// Keep serving; every call reports the missing credential.
			return missingCredential{}, nil
		}
		chatModel, err := cfg.Ark.NewChatModel(ctx, cfg.DefaultModel())
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChainCompleter(ctx, chatModel)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

type missingCredential struct{}

func (missingCredential) Complete(context.Context, CompletionRequest) (string, error) {
	return "", ErrMissingCredential
}
