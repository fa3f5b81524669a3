package reports

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

const pageKey = "reports"

type Handler struct {
	Backend Backend
}

func NewHandler(backend Backend) *Handler {
	return &Handler{Backend: backend}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports", h.show)
}

func (h *Handler) show(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := tabs.Mount(tab, pageKey, newPage)
	if err := page.Load(c.Request.Context(), h.Backend, tab.Auth); err != nil {
		telemetry.Info("reports.load_failed", map[string]any{"tab_id": tab.ID, "error": err.Error()})
	}
	respond.Page(c, http.StatusOK, "reports.html", page.View())
}
