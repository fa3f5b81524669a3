package jobs

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/resource"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

const pageKey = "jobs"

type Handler struct {
	Backend  Backend
	PageSize int
}

func NewHandler(backend Backend, pageSize int) *Handler {
	return &Handler{Backend: backend, PageSize: pageSize}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs", h.list)
	rg.POST("/jobs", h.create)
	rg.POST("/jobs/:id/delete", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := tabs.Mount(tab, pageKey, newPage(h.PageSize))
	_ = page.Load(c.Request.Context(), h.Backend, tab.Auth)
	respond.Page(c, http.StatusOK, "jobs.html", page.View(pageNumber(c)))
}

func (h *Handler) create(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := h.mounted(c, tab)

	var draft Draft
	_ = c.ShouldBind(&draft)

	status := http.StatusOK
	err := page.Create(c.Request.Context(), h.Backend, tab.Auth, draft)
	switch {
	case errors.Is(err, ErrIncomplete):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, resource.ErrBusy), errors.Is(err, resource.ErrUnmounted):
	case err != nil:
		telemetry.Warn("jobs.create_failed", map[string]any{"tab_id": tab.ID, "error": err.Error()})
	}
	respond.Page(c, status, "jobs.html", page.View(pageNumber(c)))
}

func (h *Handler) delete(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := h.mounted(c, tab)

	if err := page.Delete(c.Request.Context(), h.Backend, tab.Auth, c.Param("id")); err != nil {
		telemetry.Warn("jobs.delete_failed", map[string]any{"tab_id": tab.ID, "error": err.Error()})
	}
	respond.Page(c, http.StatusOK, "jobs.html", page.View(pageNumber(c)))
}

// mounted returns the jobs page, loading the list when the page is fresh.
func (h *Handler) mounted(c *gin.Context, tab *tabs.Tab) *Page {
	page := tabs.Mounted(tab, pageKey, newPage(h.PageSize))
	if page.jobs.State() == resource.Pending {
		_ = page.Load(c.Request.Context(), h.Backend, tab.Auth)
	}
	return page
}

func pageNumber(c *gin.Context) int {
	raw := c.Query("page")
	if raw == "" {
		raw = c.PostForm("page")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return n
}
