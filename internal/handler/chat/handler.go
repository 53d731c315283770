package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/ai"
	chatService "github.com/zhouzirui/chat-assistant/internal/service/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/turn"
	"github.com/zhouzirui/chat-assistant/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	chatSvc  *chatService.Service
	executor *turn.Executor
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, executor *turn.Executor) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		executor: executor,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Delete("/", h.handleEndSession)
		r.Get("/messages", h.handleListMessages)
		r.Post("/messages", h.handleSubmit)
	})
}

type submitResponse struct {
	Messages []chat.Turn `json:"messages"`
	Error    string      `json:"error,omitempty"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	turns, err := h.chatSvc.LoadTranscript(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	turns, err := h.executor.Submit(r.Context(), sessionID, payload.Content, payload.Model)
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			hlog.FromRequest(r).Error().Err(err).Str("session_id", sessionID).Msg("submit failed")
		}
		if turns == nil {
			utils.RespondError(w, status, err.Error())
			return
		}
		utils.RespondJSON(w, status, submitResponse{Messages: turns, Error: PublicMessage(err)})
		return
	}

	utils.RespondJSON(w, http.StatusOK, submitResponse{Messages: turns})
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, turn.ErrUnknownModel):
		return http.StatusBadRequest
	case errors.Is(err, turn.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, ai.ErrMissingCredential):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// PublicMessage is the text shown to users for a failed submit. Provider
// details stay in the logs.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return "This conversation has ended. Start a new one."
	case errors.Is(err, turn.ErrUnknownModel):
		return "The selected model is not available."
	case errors.Is(err, turn.ErrTurnInFlight):
		return "Still waiting for the previous reply."
	default:
		return "The assistant could not answer right now. Please try again."
	}
}
