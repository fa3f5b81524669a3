package account

import (
	"errors"

	"jobcoach-web/internal/identity"
)

const (
	loginFailed        = "Login failed"
	registrationFailed = "Registration failed"
)

// Feature is one landing-page blurb.
type Feature struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

var features = []Feature{
	{Title: "Track applications", Body: "Keep every job you apply to and its status in one place."},
	{Title: "ATS match score", Body: "See how well your resume matches a job description and which keywords are missing."},
	{Title: "Interview practice", Body: "Generate role-specific questions and get scored feedback on your answers."},
	{Title: "Progress reports", Body: "Follow your ATS scores over time and find your weak areas."},
}

// HomeView is the public landing page.
type HomeView struct {
	Authenticated bool      `json:"authenticated"`
	Email         string    `json:"email,omitempty"`
	Features      []Feature `json:"features"`
}

// FormView backs both the login and the registration form.
type FormView struct {
	Title  string `json:"title"`
	Action string `json:"action"`
	Email  string `json:"email"`
	Error  string `json:"error,omitempty"`
}

type credentialsForm struct {
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// failureMessage shows the provider's reason when there is one and fallback otherwise.
func failureMessage(err error, fallback string) string {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return fallback
}
