package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/chat-assistant/internal/config"
	"github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/internal/model/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/ai"
	chatservice "github.com/zhouzirui/chat-assistant/internal/service/chat"
)

var (
	ErrTurnInFlight = errors.New("a turn is already in flight for this session")
	ErrUnknownModel = errors.New("model is not in the allow-list")
)

// Executor runs one chat round per Submit: record the user turn, ask the
// provider, record the reply.
type Executor struct {
	sessions    *chatservice.Service
	completer   ai.Completer
	models      catalog.Store
	contextMode string
	now         func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewExecutor wires the executor. contextMode is config.ContextLatest or
// config.ContextFull.
func NewExecutor(sessions *chatservice.Service, completer ai.Completer, models catalog.Store, contextMode string) *Executor {
	if contextMode == "" {
		contextMode = config.ContextLatest
	}
	return &Executor{
		sessions:    sessions,
		completer:   completer,
		models:      models,
		contextMode: contextMode,
		now:         func() time.Time { return time.Now().UTC() },
		inFlight:    make(map[string]struct{}),
	}
}

// Submit appends userText to the session, blocks on the provider and appends
// the reply. It always returns the session transcript as it stands afterwards.
// Blank input is a no-op. On provider failure the user turn stays without a
// reply and the classified error is returned.
func (e *Executor) Submit(ctx context.Context, sessionID, userText, modelID string) ([]chat.Turn, error) {
	history, err := e.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(userText) == "" {
		return history.All(), nil
	}

	selected, err := e.resolveModel(modelID)
	if err != nil {
		return history.All(), err
	}

	if !e.acquire(sessionID) {
		return history.All(), ErrTurnInFlight
	}
	defer e.release(sessionID)

	history.Append(chat.Turn{Role: chat.RoleUser, Content: userText, CreatedAt: e.now()})

	logger := log.With().Str("session_id", sessionID).Str("model", selected.ID).Logger()
	started := time.Now()

	reply, err := e.completer.Complete(ctx, ai.CompletionRequest{
		Model:    selected.ID,
		Messages: e.providerContext(history),
	})
	if err != nil {
		logger.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("turn failed")
		return history.All(), fmt.Errorf("complete turn: %w", err)
	}

	history.Append(chat.Turn{Role: chat.RoleAssistant, Content: reply, CreatedAt: e.now()})

	turns := history.All()
	logger.Info().Int("turns", len(turns)).Dur("elapsed", time.Since(started)).Msg("turn completed")
	return turns, nil
}

// Busy reports whether a turn is outstanding for the session.
func (e *Executor) Busy(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.inFlight[sessionID]
	return ok
}

func (e *Executor) resolveModel(modelID string) (catalog.Model, error) {
	if modelID == "" {
		if m, ok := e.models.Default(); ok {
			return m, nil
		}
		return catalog.Model{}, ErrUnknownModel
	}
	m, ok := e.models.FindByID(modelID)
	if !ok {
		return catalog.Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	return m, nil
}

// providerContext picks what goes upstream. In latest mode only the user turn
// just appended is sent and earlier turns are not context.
func (e *Executor) providerContext(history *chatservice.History) []chat.Turn {
	turns := history.All()
	if e.contextMode == config.ContextFull {
		return turns
	}
	return turns[len(turns)-1:]
}

func (e *Executor) acquire(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[sessionID]; busy {
		return false
	}
	e.inFlight[sessionID] = struct{}{}
	return true
}

func (e *Executor) release(sessionID string) {
	e.mu.Lock()
	delete(e.inFlight, sessionID)
	e.mu.Unlock()
}
