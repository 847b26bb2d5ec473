package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/hostelgate/internal/http/errors"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// bearerToken extrae el token de "Authorization: Bearer <JWT>".
func bearerToken(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(ah[7:])
	return raw, raw != ""
}

// RequireAuth valida el access token y guarda las claims en el contexto.
// Sin token responde 401 UNAUTHORIZED; token inválido o vencido, 401 TOKEN_INVALID.
func RequireAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}

			claims, err := issuer.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				logger.From(r.Context()).Debug("token rejected", logger.Err(err))
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			// el logger del request ya sabe quién es el actor
			ctx = logger.ToContext(ctx, logger.From(ctx).With(
				logger.ActorID(claims.Subject),
				logger.String("role", claims.Role),
			))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
