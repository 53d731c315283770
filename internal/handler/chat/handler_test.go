package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-assistant/internal/config"
	"github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/internal/model/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/ai"
	chatservice "github.com/zhouzirui/chat-assistant/internal/service/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/turn"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, ai.CompletionRequest) (string, error) {
	return s.reply, s.err
}

func setupRouter(completer ai.Completer) (*chi.Mux, *chatservice.Service) {
	chatSvc := chatservice.NewService(time.Hour)
	executor := turn.NewExecutor(chatSvc, completer, catalog.NewMemoryStore(catalog.Seed()), config.ContextLatest)

	r := chi.NewRouter()
	New(chatSvc, executor).RegisterRoutes(r)
	return r, chatSvc
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func createSession(t *testing.T, r http.Handler) chat.Session {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/session", nil)
	require.Equal(t, http.StatusCreated, resp.Code)

	var session chat.Session
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	require.NotEmpty(t, session.ID)
	return session
}

func TestSubmitSuccess(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "Hi there!"})
	session := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/session/"+session.ID+"/messages",
		map[string]string{"content": "Hello", "model": "gemma2-9b-it"})
	require.Equal(t, http.StatusOK, resp.Code)

	var body submitResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, chat.RoleUser, body.Messages[0].Role)
	assert.Equal(t, "Hello", body.Messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, body.Messages[1].Role)
	assert.Equal(t, "Hi there!", body.Messages[1].Content)

	list := do(t, r, http.MethodGet, "/session/"+session.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var turns []chat.Turn
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &turns))
	assert.Len(t, turns, 2)
}

func TestSubmitEmptyIsNoOp(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "unused"})
	session := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": ""})
	require.Equal(t, http.StatusOK, resp.Code)

	var body submitResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Messages)
}

func TestSubmitProviderFailure(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{err: errors.New("upstream timeout")})
	session := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "Hello"})
	require.Equal(t, http.StatusBadGateway, resp.Code)

	var body submitResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "Hello", body.Messages[0].Content)
	assert.NotEmpty(t, body.Error)
	assert.NotContains(t, body.Error, "upstream timeout")
}

func TestSubmitMissingCredential(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{err: ai.ErrMissingCredential})
	session := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/session/"+session.ID+"/messages", map[string]string{"content": "Hello"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestSubmitUnknownModel(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "x"})
	session := createSession(t, r)

	resp := do(t, r, http.MethodPost, "/session/"+session.ID+"/messages",
		map[string]string{"content": "Hello", "model": "gpt-4"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSubmitInvalidBody(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "x"})
	session := createSession(t, r)

	req := httptest.NewRequest(http.MethodPost, "/session/"+session.ID+"/messages", bytes.NewReader([]byte(`{`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnknownSession(t *testing.T) {
	r, _ := setupRouter(&stubCompleter{reply: "x"})

	resp := do(t, r, http.MethodPost, "/session/missing/messages", map[string]string{"content": "Hello"})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, r, http.MethodGet, "/session/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEndSession(t *testing.T) {
	r, chatSvc := setupRouter(&stubCompleter{reply: "x"})
	session := createSession(t, r)

	resp := do(t, r, http.MethodDelete, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	_, err := chatSvc.GetSession(context.Background(), session.ID)
	assert.ErrorIs(t, err, chatservice.ErrSessionNotFound)

	resp = do(t, r, http.MethodDelete, "/session/"+session.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(turn.ErrTurnInFlight))
	assert.Equal(t, http.StatusBadGateway, StatusFor(ai.ErrUnauthorized))
	assert.Equal(t, http.StatusNotFound, StatusFor(chatservice.ErrSessionNotFound))
}
