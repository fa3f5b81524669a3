// Package guard decides whether a protected page may render for a tab.
package guard

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/shared/server/respond"
	"jobcoach-web/internal/tabs"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// UserIDKey and userKey hold the resolved user in the gin context.
const (
	UserIDKey = "userId"
	userKey   = "user"
)

// DefaultWait bounds how long a request waits for the first auth resolution
// before the loading placeholder is shown.
const DefaultWait = 2 * time.Second

type Kind int

const (
	Placeholder Kind = iota
	Redirect
	Render
)

type Decision struct {
	Kind     Kind
	Location string
}

// Decide maps auth state to a render decision.
func Decide(s authstate.Snapshot) Decision {
	switch s.Status {
	case authstate.Authenticated:
		return Decision{Kind: Render}
	case authstate.Unauthenticated:
		return Decision{Kind: Redirect, Location: LoginPath}
	default:
		return Decision{Kind: Placeholder}
	}
}

type placeholderView struct {
	Status  authstate.Status `json:"status"`
	Message string           `json:"message"`
}

// Middleware protects the routes after it. wait is how long to block on a
// tab's first resolution. Every later request re-checks the tab's session.
func Middleware(wait time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		tab := tabs.FromContext(c)
		if tab == nil {
			respond.Error(c, http.StatusInternalServerError, "no_tab", "Unexpected server error", nil)
			return
		}
		snap := tab.Auth.Check(c.Request.Context(), wait)
		decision := Decide(snap)
		switch decision.Kind {
		case Render:
			c.Set(userKey, snap.User)
			c.Set(UserIDKey, snap.User.ID)
			c.Next()
		case Redirect:
			respond.SeeOther(c, decision.Location)
		default:
			c.Header("Refresh", "1")
			c.Header("Cache-Control", "no-store")
			respond.Page(c, http.StatusOK, "loading.html", placeholderView{Status: snap.Status, Message: "Loading..."})
			c.Abort()
		}
	}
}

// User returns the user admitted by Middleware.
func User(c *gin.Context) api.User {
	v, _ := c.Get(userKey)
	user, _ := v.(api.User)
	return user
}
