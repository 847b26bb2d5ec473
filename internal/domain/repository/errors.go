package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un duplicado (ej: override pendiente para el mismo visitante/residente).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyUsed indica que el challenge ya fue consumido o bloqueado.
	ErrAlreadyUsed = errors.New("challenge already used or locked")

	// ErrNotPending indica que la solicitud de override ya fue resuelta.
	ErrNotPending = errors.New("override request not pending")

	// ErrAlreadyClosed indica que la visita ya no está activa.
	ErrAlreadyClosed = errors.New("visit already closed")

	// ErrNoDatabase indica que no hay base de datos configurada.
	ErrNoDatabase = errors.New("no database configured")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
