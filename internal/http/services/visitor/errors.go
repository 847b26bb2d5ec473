package visitor

import (
	"errors"
	"fmt"
	"time"
)

// Errores de dominio. El controller los mapea al catálogo HTTP.
var (
	ErrMissingFields          = errors.New("missing required fields")
	ErrInvalidPhone           = errors.New("invalid phone number")
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrStudentNotFound        = errors.New("student not found")
	ErrOutOfHours             = errors.New("visits not allowed out of hours")
	ErrOTPNotFound            = errors.New("no active otp for phone")
	ErrOTPExpired             = errors.New("otp expired")
	ErrOTPInvalid             = errors.New("otp invalid")
	ErrBruteForce             = errors.New("too many failed attempts")
	ErrVisitNotFound          = errors.New("visit not found")
	ErrAlreadyCheckedOut      = errors.New("visit already closed")
	ErrOverrideNotFound       = errors.New("override request not found")
	ErrOverrideExists         = errors.New("override request already pending")
	ErrAlreadyProcessed       = errors.New("override request already processed")
	ErrWhitelistEntryNotFound = errors.New("whitelist entry not found")
)

// InvalidOTPError acompaña a ErrOTPInvalid con los intentos restantes.
type InvalidOTPError struct {
	AttemptsRemaining int
	Locked            bool
}

func (e *InvalidOTPError) Error() string {
	return fmt.Sprintf("otp invalid: %d attempts remaining", e.AttemptsRemaining)
}

func (e *InvalidOTPError) Unwrap() error { return ErrOTPInvalid }

// OverrideExistsError referencia la solicitud pendiente existente.
type OverrideExistsError struct {
	RequestID string
}

func (e *OverrideExistsError) Error() string {
	return "override request already pending: " + e.RequestID
}

func (e *OverrideExistsError) Unwrap() error { return ErrOverrideExists }

// BlockedError acompaña a ErrBruteForce con el tiempo de espera.
type BlockedError struct {
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("too many failed attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *BlockedError) Unwrap() error { return ErrBruteForce }
