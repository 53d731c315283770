package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

// ChainCompleter runs completions through an eino chain. It backs the Ark
// provider but works with any eino chat model.
type ChainCompleter struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainCompleter compiles history + query into a prompt for chatModel.
func NewChainCompleter(ctx context.Context, chatModel model.BaseChatModel) (*ChainCompleter, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &ChainCompleter{chain: runnable}, nil
}

func (c *ChainCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if len(req.Messages) == 0 {
		return "", ErrNoMessages
	}

	last := req.Messages[len(req.Messages)-1]
	input := map[string]any{
		"history": buildHistoryMessages(req.Messages[:len(req.Messages)-1]),
		"query":   last.Content,
	}

	var opts []compose.Option
	if req.Model != "" {
		opts = append(opts, compose.WithChatModelOption(model.WithModel(req.Model)))
	}

	response, err := c.chain.Invoke(ctx, input, opts...)
	if err != nil {
		return "", classifyChainError(err)
	}
	if response == nil || response.Content == "" {
		return "", ErrEmptyCompletion
	}

	log.Debug().Str("model", req.Model).Int("length", len(response.Content)).Msg("chain completion received")
	return response.Content, nil
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(t.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(t.Content, nil))
		}
	}
	return history
}

// Ark surfaces auth failures only as text in the error message.
func classifyChainError(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"401", "403", "unauthorized", "authenticationerror", "invalid api key"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}
