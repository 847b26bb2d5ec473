package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/dropDatabas3/hostelgate/internal/http/errors"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// WithRecover captura panics y devuelve SERVER_ERROR en lugar de crashear.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
						logger.String("stack", string(debug.Stack())),
					)
					errors.WriteError(w, errors.ErrServer)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
