package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var pageFormats = []string{gin.MIMEHTML, gin.MIMEJSON}

// Page renders the named template, or data as JSON when the client asks for it.
func Page(c *gin.Context, status int, name string, data any) {
	c.Negotiate(status, gin.Negotiate{
		Offered:  pageFormats,
		HTMLName: name,
		Data:     data,
	})
}

// WantsJSON reports whether the client prefers JSON over HTML.
func WantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(pageFormats...) == gin.MIMEJSON
}

// SeeOther redirects after a form post.
func SeeOther(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
	c.Abort()
}
