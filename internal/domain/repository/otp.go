package repository

import (
	"context"
	"time"
)

// ExpiryType discrimina la política de expiración del challenge.
type ExpiryType string

const (
	// ExpiryFixed: challenge iniciado por guardia, expira a los 5 minutos.
	ExpiryFixed ExpiryType = "fixed"
	// ExpiryMidnight: challenge generado por el residente, expira a medianoche local.
	ExpiryMidnight ExpiryType = "midnight"
)

// OTPChallenge es un código de un solo uso pendiente de verificación.
// Nunca guarda el código en claro: solo HMAC(code+phone).
type OTPChallenge struct {
	ID           string
	StudentID    string
	VisitorName  string
	VisitorPhone string
	Purpose      string
	GroupSize    int
	IsGroupOTP   bool

	OTPHash    string
	ExpiryType ExpiryType
	CreatedAt  time.Time
	ExpiresAt  time.Time

	Attempts int
	Used     bool
	UsedAt   *time.Time
	Locked   bool

	// Exactamente uno de los dos está seteado.
	CreatedByGuardID   string
	CreatedByStudentID string
	IsStudentGenerated bool
}

// Expired indica si el challenge pasó su expiresAt.
func (c *OTPChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// FailureResult es el estado del challenge tras registrar un intento fallido.
type FailureResult struct {
	Attempts int
	Locked   bool
}

// OTPRepository persiste challenges OTP.
type OTPRepository interface {
	Create(ctx context.Context, c *OTPChallenge) error

	GetByID(ctx context.Context, id string) (*OTPChallenge, error)

	// FindLatestActive retorna el challenge más nuevo con used=false y locked=false
	// para el teléfono. ErrNotFound si no hay ninguno.
	FindLatestActive(ctx context.Context, phone string) (*OTPChallenge, error)

	// RecordFailure incrementa attempts y setea locked cuando attempts >= maxAttempts,
	// en un único update condicional. ErrAlreadyUsed si el challenge ya no está activo.
	RecordFailure(ctx context.Context, id string, maxAttempts int) (FailureResult, error)

	// ConsumeWithVisit es el único punto de autorización: update-if-used=false y
	// alta de la visita en una misma unidad. Si el insert de la visita falla el
	// challenge queda sin usar. El perdedor de una carrera recibe ErrAlreadyUsed.
	ConsumeWithVisit(ctx context.Context, id string, at time.Time, v *Visit) error

	// DeleteStale borra challenges creados antes de createdBefore que además ya
	// expiraron a expiredBefore (retención). Retorna cuántos borró.
	DeleteStale(ctx context.Context, createdBefore, expiredBefore time.Time) (int, error)
}
