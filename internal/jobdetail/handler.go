package jobdetail

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/resource"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

type Handler struct {
	Backend       Backend
	PracticeLimit int
}

func NewHandler(backend Backend, practiceLimit int) *Handler {
	return &Handler{Backend: backend, PracticeLimit: practiceLimit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/jobs/:id", h.show)
	rg.POST("/jobs/:id/ats", h.runATS)
	rg.POST("/jobs/:id/questions", h.generate)
	rg.POST("/jobs/:id/practice/:qid", h.practice)
	rg.POST("/jobs/:id/answers", h.submit)
}

type answerForm struct {
	QuestionID string `form:"questionId"`
	Answer     string `form:"answer"`
}

func (h *Handler) show(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := tabs.Mount(tab, pageKey(c), h.factory(c, tab))
	_ = page.Load(c.Request.Context())
	respond.Page(c, http.StatusOK, "job.html", page.View())
}

func (h *Handler) runATS(c *gin.Context) {
	page := h.mounted(c)
	h.finish(c, page, "jobdetail.ats_failed", page.RunATS(c.Request.Context()))
}

func (h *Handler) generate(c *gin.Context) {
	page := h.mounted(c)
	mode := GenerateMode(c.PostForm("mode"))
	if mode != GenerateOne {
		mode = GenerateAll
	}
	h.finish(c, page, "jobdetail.generate_failed", page.Generate(c.Request.Context(), mode))
}

func (h *Handler) practice(c *gin.Context) {
	page := h.mounted(c)
	status := http.StatusOK
	if err := page.Practice(c.Param("qid")); err != nil {
		status = http.StatusNotFound
	}
	respond.Page(c, status, "job.html", page.View())
}

func (h *Handler) submit(c *gin.Context) {
	page := h.mounted(c)
	var form answerForm
	_ = c.ShouldBind(&form)
	h.finish(c, page, "jobdetail.submit_failed", page.Submit(c.Request.Context(), form.QuestionID, form.Answer))
}

// finish renders the page after an action. Guard rejections are part of the
// view, so only backend failures are logged.
func (h *Handler) finish(c *gin.Context, page *Page, event string, err error) {
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, ErrPracticeLimit):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrEmptyAnswer):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnknownQuestion):
		status = http.StatusNotFound
	case errors.Is(err, ErrAlreadyComputed), errors.Is(err, resource.ErrBusy), errors.Is(err, resource.ErrUnmounted):
	default:
		tab := tabs.FromContext(c)
		telemetry.Warn(event, map[string]any{"tab_id": tab.ID, "job_id": c.Param("id"), "error": err.Error()})
	}
	respond.Page(c, status, "job.html", page.View())
}

// mounted returns the page for this job, loading it when the tab shows
// something else.
func (h *Handler) mounted(c *gin.Context) *Page {
	tab := tabs.FromContext(c)
	page := tabs.Mounted(tab, pageKey(c), h.factory(c, tab))
	if page.job.State() == resource.Pending {
		_ = page.Load(c.Request.Context())
	}
	return page
}

func (h *Handler) factory(c *gin.Context, tab *tabs.Tab) func(*resource.Scope) *Page {
	return newPage(c.Param("id"), h.PracticeLimit, h.Backend, tab.Auth)
}

func pageKey(c *gin.Context) string { return "job:" + c.Param("id") }
