package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/chat-assistant/internal/model/catalog"
	"github.com/zhouzirui/chat-assistant/pkg/utils"
)

// Handler 模型目录的HTTP处理器
type Handler struct {
	models catalog.Store
}

// New 创建模型目录处理器
func New(models catalog.Store) *Handler {
	return &Handler{models: models}
}

// RegisterRoutes 注册模型相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
}

func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.models.List())
}
