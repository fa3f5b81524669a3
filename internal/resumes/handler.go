package resumes

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/resource"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

const (
	pageKey = "resume"
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 64 << 10
)

type Handler struct {
	Backend  Backend
	MaxBytes int64
}

func NewHandler(backend Backend, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Handler{Backend: backend, MaxBytes: maxBytes}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resume", h.list)
	rg.POST("/resume", h.upload)
}

func (h *Handler) list(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := tabs.Mount(tab, pageKey, NewPage)
	_ = page.Load(c.Request.Context(), h.Backend, tab.Auth)
	respond.Page(c, http.StatusOK, "resume.html", page.View())
}

func (h *Handler) upload(c *gin.Context) {
	tab := tabs.FromContext(c)
	page := tabs.Mounted(tab, pageKey, NewPage)
	if page.resumes.State() == resource.Pending {
		_ = page.Load(c.Request.Context(), h.Backend, tab.Auth)
	}

	file, err := h.readFile(c)
	if err != nil {
		page.Reject(err)
		respond.Page(c, uploadStatus(err), "resume.html", page.View())
		return
	}

	err = page.Upload(c.Request.Context(), h.Backend, tab.Auth, file)
	switch {
	case err == nil, errors.Is(err, ErrNoFile), errors.Is(err, ErrNotPDF), errors.Is(err, resource.ErrBusy):
	default:
		telemetry.Warn("resumes.upload_failed", map[string]any{"tab_id": tab.ID, "file": file.Name, "error": err.Error()})
	}
	respond.Page(c, uploadStatus(err), "resume.html", page.View())
}

// readFile reads the resume part, enforcing the size limit on the file itself.
func (h *Handler) readFile(c *gin.Context) (File, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxBytes+multipartOverhead)

	header, err := c.FormFile(api.ResumeField)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return File{}, ErrTooLarge
		}
		return File{}, ErrNoFile
	}
	if header.Size > h.MaxBytes {
		return File{}, ErrTooLarge
	}

	f, err := header.Open()
	if err != nil {
		return File{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.MaxBytes+1))
	if err != nil {
		return File{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.MaxBytes {
		return File{}, ErrTooLarge
	}
	return File{Name: uploadName(header.Filename), Data: data}, nil
}

func uploadStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNoFile), errors.Is(err, ErrNotPDF):
		return http.StatusUnprocessableEntity
	case errors.Is(err, authstate.ErrNotAuthenticated):
		return http.StatusUnauthorized
	default:
		return http.StatusOK
	}
}
