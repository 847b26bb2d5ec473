package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// WriteError escribe el envelope {success:false, code, message, detail?, ...extra}.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := make(map[string]any, 4+len(appErr.Extra))
	for k, v := range appErr.Extra {
		resp[k] = v
	}
	resp["success"] = false
	resp["code"] = appErr.Code
	resp["message"] = appErr.Message
	if appErr.Detail != "" {
		resp["detail"] = appErr.Detail
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// Write es WriteError + log server-side de la causa en errores 5xx,
// usando el logger del request.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	appErr := FromError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("request failed",
			zap.String("code", appErr.Code),
			logger.Err(appErr.Err),
		)
	}
	WriteError(w, appErr)
}
