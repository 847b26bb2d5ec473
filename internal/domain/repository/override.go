package repository

import (
	"context"
	"time"
)

// Urgency de la solicitud de override.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// OverrideStatus: pending -> {approved, denied}, ambos terminales.
type OverrideStatus string

const (
	OverridePending  OverrideStatus = "pending"
	OverrideApproved OverrideStatus = "approved"
	OverrideDenied   OverrideStatus = "denied"
)

// OverrideRequest es una escalación pendiente de decisión del warden.
type OverrideRequest struct {
	ID           string
	GuardID      string
	StudentID    string
	VisitorName  string
	VisitorPhone string
	Reason       string
	Purpose      string
	Urgency      Urgency
	Status       OverrideStatus
	IsOutOfHours bool
	CreatedAt    time.Time
	ResolvedAt   *time.Time
	WardenID     string
	WardenNotes  string
	VisitID      string
}

// OverrideResolution es la decisión del warden.
type OverrideResolution struct {
	Status      OverrideStatus
	WardenID    string
	WardenNotes string
	At          time.Time
}

// OverrideFilter filtra el historial.
type OverrideFilter struct {
	Status OverrideStatus // vacío = todos los terminales y pendientes
	Limit  int
}

// OverrideRepository persiste solicitudes de override.
type OverrideRepository interface {
	// Create retorna ErrConflict si ya hay un pending para (VisitorPhone, StudentID).
	Create(ctx context.Context, r *OverrideRequest) error

	GetByID(ctx context.Context, id string) (*OverrideRequest, error)

	// FindPending retorna el pending para (phone, studentID) o ErrNotFound.
	FindPending(ctx context.Context, phone, studentID string) (*OverrideRequest, error)

	// ResolveWithVisit transiciona pending -> terminal con update condicional.
	// Con v != nil (aprobación) inserta la visita y enlaza visitId en la misma
	// unidad: si algo falla la solicitud sigue pending.
	// ErrNotFound si no existe, ErrNotPending si ya estaba resuelta.
	ResolveWithVisit(ctx context.Context, id string, res OverrideResolution, v *Visit) (*OverrideRequest, error)

	// ListPending: urgencia alta primero, luego más viejas primero.
	ListPending(ctx context.Context) ([]OverrideRequest, error)

	// ListHistory: más nuevas primero.
	ListHistory(ctx context.Context, f OverrideFilter) ([]OverrideRequest, error)
}
