package middleware

import (
	"errors"
	"net/http"

	"pubcat/internal/auth"
	"pubcat/internal/httpx"
	"pubcat/internal/logger"
)

const UserHeader = "X-User-ID"

// Require lets the request through only when the X-User-ID header names a
// whitelisted user whose role allows want.
func Require(wl *auth.Whitelist, want string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := r.Header.Get(UserHeader)
			role, err := wl.Check(user, "http")
			if err == nil && !auth.Allows(role, want) {
				err = auth.ErrDenied
			}
			if err != nil {
				logger.For(r.Context()).WithField("user", user).Warn("auth.denied")
				code := http.StatusForbidden
				if !errors.Is(err, auth.ErrDenied) {
					code = http.StatusInternalServerError
				}
				httpx.WriteError(w, code, "forbidden", "access denied", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
