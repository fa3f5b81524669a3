package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AuthError is an identity-provider rejection: wrong password, unknown or
// unverified account, weak password, already-registered email.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// ErrNoRefreshToken is returned when an expired session cannot be renewed.
var ErrNoRefreshToken = errors.New("session expired and has no refresh token")

const defaultAuthMessage = "Authentication failed"

type providerErrorBody struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
}

// parseAuthError normalizes both GoTrue error shapes into an AuthError.
func parseAuthError(status int, raw []byte) *AuthError {
	out := &AuthError{Status: status, Message: defaultAuthMessage}
	var body providerErrorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		if text := strings.TrimSpace(string(raw)); text != "" {
			out.Message = text
		}
		return out
	}
	for _, candidate := range []string{body.Msg, body.ErrorDescription, body.Message, body.Error} {
		if strings.TrimSpace(candidate) != "" {
			out.Message = candidate
			break
		}
	}
	switch {
	case body.ErrorCode != "":
		out.Code = body.ErrorCode
	case body.Error != "":
		out.Code = body.Error
	case len(body.Code) > 0:
		out.Code = strings.Trim(string(body.Code), `"`)
	default:
		out.Code = fmt.Sprintf("http_%d", status)
	}
	return out
}
