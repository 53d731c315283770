package web

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/chat-assistant/internal/handler/chat"
	"github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/internal/render"
	chatService "github.com/zhouzirui/chat-assistant/internal/service/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/turn"
)

// CookieName binds a browser to its session.
const CookieName = "chat_session"

// Handler serves the server-rendered chat page.
type Handler struct {
	chatSvc  *chatService.Service
	executor *turn.Executor
	models   catalog.Store
	renderer *render.Renderer
}

// New 创建页面处理器
func New(chatSvc *chatService.Service, executor *turn.Executor, models catalog.Store, renderer *render.Renderer) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		executor: executor,
		models:   models,
		renderer: renderer,
	}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Post("/send", h.handleSend)
	r.Post("/reset", h.handleReset)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.resolveSession(w, r)
	if err != nil {
		http.Error(w, "could not start a session", http.StatusInternalServerError)
		return
	}

	turns, err := h.chatSvc.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "could not load the conversation", http.StatusInternalServerError)
		return
	}

	data := render.PageData{
		Turns:    turns,
		Models:   h.models.List(),
		Selected: h.selectedModel(r.URL.Query().Get("model")),
		Flash:    h.chatSvc.TakeFlash(r.Context(), sessionID),
		Busy:     h.executor.Busy(sessionID),
	}

	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render page")
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	sessionID, err := h.resolveSession(w, r)
	if err != nil {
		http.Error(w, "could not start a session", http.StatusInternalServerError)
		return
	}

	model := h.selectedModel(r.PostFormValue("model"))
	if _, err := h.executor.Submit(r.Context(), sessionID, r.PostFormValue("message"), model); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session_id", sessionID).Msg("submit failed")
		if !errors.Is(err, chatService.ErrSessionNotFound) {
			_ = h.chatSvc.SetFlash(r.Context(), sessionID, chat.PublicMessage(err))
		}
	}

	http.Redirect(w, r, "/?model="+url.QueryEscape(model), http.StatusSeeOther)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		_ = h.chatSvc.EndSession(r.Context(), cookie.Value)
	}

	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		http.Error(w, "could not start a session", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, session.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// resolveSession returns the cookie's session, starting a fresh one when the
// cookie is absent or its session has ended.
func (h *Handler) resolveSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if _, err := h.chatSvc.GetSession(r.Context(), cookie.Value); err == nil {
			return cookie.Value, nil
		}
	}

	session, err := h.chatSvc.CreateSession(r.Context())
	if err != nil {
		return "", err
	}
	setSessionCookie(w, session.ID)
	return session.ID, nil
}

func (h *Handler) selectedModel(requested string) string {
	if m, ok := h.models.FindByID(requested); ok {
		return m.ID
	}
	if requested != "" {
		// Let Submit reject it so the user sees why.
		return requested
	}
	if m, ok := h.models.Default(); ok {
		return m.ID
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
