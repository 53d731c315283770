package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/chat-assistant/internal/handler/catalog"
	"github.com/zhouzirui/chat-assistant/internal/handler/chat"
	"github.com/zhouzirui/chat-assistant/internal/handler/live"
	"github.com/zhouzirui/chat-assistant/internal/handler/web"
	middlewarePkg "github.com/zhouzirui/chat-assistant/internal/middleware"
	catalogModel "github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/internal/render"
	chatService "github.com/zhouzirui/chat-assistant/internal/service/chat"
	"github.com/zhouzirui/chat-assistant/internal/service/turn"
	"github.com/zhouzirui/chat-assistant/pkg/utils"
)

// Deps groups what the router hands to individual handlers.
type Deps struct {
	Logger   zerolog.Logger
	Models   catalogModel.Store
	Chat     *chatService.Service
	Executor *turn.Executor
	Renderer *render.Renderer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.AccessLog(deps.Logger))
	r.Use(middleware.Recoverer)

	// Server-rendered chat page
	web.New(deps.Chat, deps.Executor, deps.Models, deps.Renderer).RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middlewarePkg.CORS)

		catalog.New(deps.Models).RegisterRoutes(api)
		chat.New(deps.Chat, deps.Executor).RegisterRoutes(api)
		live.New(deps.Chat, deps.Executor).RegisterRoutes(api)
	})

	return r
}
