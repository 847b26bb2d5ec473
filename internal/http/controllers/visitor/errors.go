package visitor

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	httperrors "github.com/dropDatabas3/hostelgate/internal/http/errors"
	svc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// sentinels mapea cada error de dominio a su código HTTP.
var sentinels = []struct {
	err    error
	appErr *httperrors.AppError
}{
	{svc.ErrMissingFields, httperrors.ErrMissingFields},
	{svc.ErrInvalidPhone, httperrors.ErrInvalidPhone},
	{svc.ErrInvalidParameter, httperrors.ErrInvalidParameter},
	{svc.ErrStudentNotFound, httperrors.ErrStudentNotFound},
	{svc.ErrOutOfHours, httperrors.ErrOutOfHours},
	{svc.ErrOTPNotFound, httperrors.ErrOTPNotFound},
	{svc.ErrOTPExpired, httperrors.ErrOTPExpired},
	{svc.ErrVisitNotFound, httperrors.ErrVisitNotFound},
	{svc.ErrAlreadyCheckedOut, httperrors.ErrAlreadyCheckedOut},
	{svc.ErrOverrideNotFound, httperrors.ErrOverrideNotFound},
	{svc.ErrAlreadyProcessed, httperrors.ErrAlreadyProcessed},
	{svc.ErrWhitelistEntryNotFound, httperrors.ErrWhitelistEntryNotFound},
}

// handleServiceError traduce errores del service. Lo inesperado se loguea y sale como SERVER_ERROR.
func handleServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	var invalid *svc.InvalidOTPError
	if errors.As(err, &invalid) {
		appErr := httperrors.ErrOTPInvalid.WithExtra("attemptsRemaining", invalid.AttemptsRemaining)
		if invalid.Locked {
			appErr = appErr.WithDetail("too many failed attempts, request a new OTP")
		}
		httperrors.WriteError(w, appErr)
		return
	}

	var exists *svc.OverrideExistsError
	if errors.As(err, &exists) {
		httperrors.WriteError(w, httperrors.ErrOverrideExists.WithExtra("requestId", exists.RequestID))
		return
	}

	var blocked *svc.BlockedError
	if errors.As(err, &blocked) {
		if secs := int(blocked.RetryAfter.Seconds()); secs > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
		httperrors.WriteError(w, httperrors.ErrBruteForceProtection)
		return
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			httperrors.WriteError(w, s.appErr)
			return
		}
	}

	log.Error("unexpected service error", logger.Err(err))
	httperrors.WriteError(w, httperrors.ErrServer.WithCause(err))
}
