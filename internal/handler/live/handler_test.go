package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
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

type frame struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
}

func startServer(t *testing.T, completer ai.Completer) (*httptest.Server, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService(time.Hour)
	executor := turn.NewExecutor(chatSvc, completer, catalog.NewMemoryStore(catalog.Seed()), config.ContextLatest)

	r := chi.NewRouter()
	New(chatSvc, executor).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, chatSvc
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func readTurns(t *testing.T, f frame) []chat.Turn {
	t.Helper()
	require.Equal(t, "transcript", f.Type)
	var turns []chat.Turn
	require.NoError(t, json.Unmarshal(f.Data, &turns))
	return turns
}

func TestLiveSubmitRoundTrip(t *testing.T) {
	srv, chatSvc := startServer(t, &stubCompleter{reply: "Hi there!"})
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, session.ID)
	assert.Empty(t, readTurns(t, readFrame(t, conn)))

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "submit",
		"data": map[string]string{"text": "Hello", "model": "gemma2-9b-it"},
	}))

	assert.Equal(t, "busy", readFrame(t, conn).Type)

	turns := readTurns(t, readFrame(t, conn))
	require.Len(t, turns, 2)
	assert.Equal(t, "Hello", turns[0].Content)
	assert.Equal(t, "Hi there!", turns[1].Content)
}

func TestLiveSubmitFailureSendsErrorThenTranscript(t *testing.T) {
	srv, chatSvc := startServer(t, &stubCompleter{err: errors.New("boom")})
	session, err := chatSvc.CreateSession(context.Background())
	require.NoError(t, err)

	conn := dial(t, srv, session.ID)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "submit",
		"data": map[string]string{"text": "Hello"},
	}))

	assert.Equal(t, "busy", readFrame(t, conn).Type)

	errFrame := readFrame(t, conn)
	require.Equal(t, "error", errFrame.Type)
	var data errorData
	require.NoError(t, json.Unmarshal(errFrame.Data, &data))
	assert.Equal(t, http.StatusBadGateway, data.Code)

	turns := readTurns(t, readFrame(t, conn))
	require.Len(t, turns, 1)
	assert.Equal(t, chat.RoleUser, turns[0].Role)
}

func TestLiveUnknownFrameType(t *testing.T) {
	srv, chatSvc := startServer(t, &stubCompleter{reply: "x"})
	session, _ := chatSvc.CreateSession(context.Background())

	conn := dial(t, srv, session.ID)
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	assert.Equal(t, "error", readFrame(t, conn).Type)
}

func TestLiveUnknownSessionIsRejected(t *testing.T) {
	srv, _ := startServer(t, &stubCompleter{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
