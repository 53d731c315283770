package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

func TestHistoryPreservesInsertionOrder(t *testing.T) {
	h := NewHistory()
	h.Append(chat.UserTurn("one"))
	h.Append(chat.AssistantTurn("two"))
	h.Append(chat.UserTurn("three"))

	got := h.All()
	assert.Len(t, got, 3)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "two", got[1].Content)
	assert.Equal(t, "three", got[2].Content)
	assert.Equal(t, 3, h.Len())
}

func TestHistoryAllIsIdempotent(t *testing.T) {
	h := NewHistory()
	h.Append(chat.UserTurn("Hello"))
	h.Append(chat.AssistantTurn("Hi there!"))

	assert.Equal(t, h.All(), h.All())
}

func TestHistoryAllReturnsCopy(t *testing.T) {
	h := NewHistory()
	h.Append(chat.UserTurn("Hello"))

	view := h.All()
	view[0].Content = "tampered"

	assert.Equal(t, "Hello", h.All()[0].Content)
}
