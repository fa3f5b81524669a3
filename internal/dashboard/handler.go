package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/guard"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/tabs"
)

type Handler struct {
	Backend Backend
}

func NewHandler(backend Backend) *Handler {
	return &Handler{Backend: backend}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.show)
}

func (h *Handler) show(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := tabs.Mount(tab, "dashboard", newPage)

	_ = page.Load(c.Request.Context(), h.Backend, tab.Auth)

	respond.Page(c, http.StatusOK, "dashboard.html", page.View(guard.User(c)))
}
