package account

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/resource"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/tabs"
)

// Handler serves the landing page and the sign-in, sign-up and sign-out flows.
type Handler struct {
	Wait time.Duration
}

func NewHandler(wait time.Duration) *Handler {
	return &Handler{Wait: wait}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.home)
	rg.GET("/login", h.loginForm)
	rg.POST("/login", h.login)
	rg.GET("/register", h.registerForm)
	rg.POST("/register", h.register)
	rg.POST("/logout", h.logout)
}

func (h *Handler) home(c *gin.Context) {
	tab := tabs.FromContext(c)
	view := tabs.Mount(tab, "home", func(*resource.Scope) *HomeView {
		return &HomeView{Features: features}
	})
	if snap := tab.Auth.Check(c.Request.Context(), h.Wait); snap.Status == authstate.Authenticated {
		view.Authenticated = true
		view.Email = snap.User.Email
	}
	respond.Page(c, http.StatusOK, "home.html", view)
}

func (h *Handler) loginForm(c *gin.Context) {
	view := tabs.Mount(tabs.FromContext(c), "login", newLoginView)
	respond.Page(c, http.StatusOK, "login.html", view)
}

func (h *Handler) login(c *gin.Context) {
	tab := tabs.FromContext(c)
	view := tabs.Mounted(tab, "login", newLoginView)
	view.Error = ""

	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		view.Email, view.Error = strings.TrimSpace(form.Email), loginFailed
		respond.Page(c, http.StatusBadRequest, "login.html", view)
		return
	}
	view.Email = strings.TrimSpace(form.Email)

	if _, err := tab.Auth.Login(c.Request.Context(), view.Email, form.Password); err != nil {
		view.Error = failureMessage(err, loginFailed)
		respond.Page(c, http.StatusUnauthorized, "login.html", view)
		return
	}
	respond.SeeOther(c, "/dashboard")
}

func (h *Handler) registerForm(c *gin.Context) {
	view := tabs.Mount(tabs.FromContext(c), "register", newRegisterView)
	respond.Page(c, http.StatusOK, "register.html", view)
}

func (h *Handler) register(c *gin.Context) {
	tab := tabs.FromContext(c)
	view := tabs.Mounted(tab, "register", newRegisterView)
	view.Error = ""

	var form credentialsForm
	if err := c.ShouldBind(&form); err != nil {
		view.Email, view.Error = strings.TrimSpace(form.Email), registrationFailed
		respond.Page(c, http.StatusBadRequest, "register.html", view)
		return
	}
	view.Email = strings.TrimSpace(form.Email)

	if err := tab.Auth.Register(c.Request.Context(), view.Email, form.Password); err != nil {
		view.Error = failureMessage(err, registrationFailed)
		respond.Page(c, http.StatusUnprocessableEntity, "register.html", view)
		return
	}
	respond.SeeOther(c, "/login")
}

func (h *Handler) logout(c *gin.Context) {
	tab := tabs.FromContext(c)
	tab.Unmount()
	tab.Auth.Logout(c.Request.Context())
	respond.SeeOther(c, "/login")
}

func newLoginView(*resource.Scope) *FormView {
	return &FormView{Title: "Login", Action: "/login"}
}

func newRegisterView(*resource.Scope) *FormView {
	return &FormView{Title: "Register", Action: "/register"}
}
