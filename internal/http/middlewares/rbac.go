package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/hostelgate/internal/http/errors"
)

// RequireRole verifica que el rol del token sea alguno de roles (admin pasa siempre).
// Debe usarse después de RequireAuth.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl := GetClaims(r.Context())
			if cl == nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("token invalid or missing"))
				return
			}
			if !cl.HasRole(roles...) {
				errors.WriteError(w, errors.ErrPermissionDenied.WithDetail("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePerm verifica que el token traiga al menos uno de los permisos.
func RequirePerm(perms ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cl := GetClaims(r.Context())
			if cl == nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				errors.WriteError(w, errors.ErrUnauthorized.WithDetail("token invalid or missing"))
				return
			}
			for _, p := range perms {
				if cl.HasPerm(p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			errors.WriteError(w, errors.ErrPermissionDenied.WithDetail("insufficient permission"))
		})
	}
}
