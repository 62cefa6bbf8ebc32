// internal/api/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/newthinker/stockdash/internal/api/response"
	"github.com/newthinker/stockdash/internal/core"
)

// APIKeyHeader is the primary header the dashboard sends its key in.
const APIKeyHeader = "X-API-Key"

var (
	errMissingKey = errors.New("missing X-API-Key header or bearer token")
	errInvalidKey = errors.New("invalid API key")
)

// APIKeyAuth returns middleware that requires apiKey in the X-API-Key header
// or as an "Authorization: Bearer" token. An empty apiKey disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		want := []byte(apiKey)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := presentedKey(r)
			if provided == "" {
				response.Error(w, http.StatusUnauthorized, core.WrapError(core.ErrUnauthorized, errMissingKey))
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), want) != 1 {
				response.Error(w, http.StatusUnauthorized, core.WrapError(core.ErrUnauthorized, errInvalidKey))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presentedKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
