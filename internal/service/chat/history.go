package chat

import (
	"sync"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

// History is the append-only transcript of one session.
type History struct {
	mu    sync.RWMutex
	turns []chat.Turn
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{turns: make([]chat.Turn, 0, 16)}
}

// Append adds a turn to the end of the transcript.
func (h *History) Append(turn chat.Turn) {
	h.mu.Lock()
	h.turns = append(h.turns, turn)
	h.mu.Unlock()
}

// All returns a copy of the transcript in insertion order.
func (h *History) All() []chat.Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	copied := make([]chat.Turn, len(h.turns))
	copy(copied, h.turns)
	return copied
}

// Len reports the number of turns recorded so far.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
