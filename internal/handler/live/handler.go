package live

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	chatHandler "github.com/zhouzirui/chat-assistant/internal/handler/chat"
	chatService "github.com/zhouzirui/chat-assistant/internal/service/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/turn"
	"github.com/zhouzirui/chat-assistant/pkg/utils"
)

const writeWait = 10 * time.Second

// Handler serves the per-session websocket. Each connection handles one
// inbound frame at a time, so a client never has two turns outstanding.
type Handler struct {
	chatSvc  *chatService.Service
	executor *turn.Executor
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(chatSvc *chatService.Service, executor *turn.Executor) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		executor: executor,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type submitData struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type errorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := hlog.FromRequest(r).With().Str("session_id", sessionID).Logger()
	logger.Debug().Msg("websocket connected")

	if err := h.sendTranscript(r, conn, sessionID); err != nil {
		return
	}

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		if err := h.dispatch(r, conn, &logger, sessionID, msg); err != nil {
			logger.Debug().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (h *Handler) dispatch(r *http.Request, conn *websocket.Conn, logger *zerolog.Logger, sessionID string, msg inboundMessage) error {
	switch msg.Type {
	case "history":
		return h.sendTranscript(r, conn, sessionID)
	case "submit":
		var data submitData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return h.write(conn, sessionID, "error", errorData{Message: "invalid submit payload", Code: http.StatusBadRequest})
		}
		return h.submit(r, conn, logger, sessionID, data)
	default:
		return h.write(conn, sessionID, "error", errorData{Message: "unknown message type", Code: http.StatusBadRequest})
	}
}

func (h *Handler) submit(r *http.Request, conn *websocket.Conn, logger *zerolog.Logger, sessionID string, data submitData) error {
	if err := h.write(conn, sessionID, "busy", nil); err != nil {
		return err
	}

	turns, err := h.executor.Submit(r.Context(), sessionID, data.Text, data.Model)
	if err != nil {
		logger.Warn().Err(err).Msg("submit failed")
		if werr := h.write(conn, sessionID, "error", errorData{
			Message: chatHandler.PublicMessage(err),
			Code:    chatHandler.StatusFor(err),
		}); werr != nil {
			return werr
		}
		if errors.Is(err, chatService.ErrSessionNotFound) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(writeWait))
			return err
		}
	}

	return h.write(conn, sessionID, "transcript", turns)
}

func (h *Handler) sendTranscript(r *http.Request, conn *websocket.Conn, sessionID string) error {
	turns, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		return h.write(conn, sessionID, "error", errorData{
			Message: chatHandler.PublicMessage(err),
			Code:    chatHandler.StatusFor(err),
		})
	}
	return h.write(conn, sessionID, "transcript", turns)
}

func (h *Handler) write(conn *websocket.Conn, sessionID, kind string, data interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}
