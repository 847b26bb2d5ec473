package repository

import (
	"context"
	"time"
)

// VisitMethod indica cómo se autorizó la entrada. Inmutable.
type VisitMethod string

const (
	MethodOTP         VisitMethod = "otp"
	MethodPreapproved VisitMethod = "preapproved"
	MethodOverride    VisitMethod = "override"
)

// VisitStatus es el estado de la visita.
type VisitStatus string

const (
	VisitActive    VisitStatus = "active"
	VisitCompleted VisitStatus = "completed"
	VisitCancelled VisitStatus = "cancelled"
)

// GroupVisitor es un acompañante dentro de una visita grupal.
type GroupVisitor struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	IDVerified bool   `json:"idVerified"`
}

// StatusChange es una entrada del historial de estados.
type StatusChange struct {
	Status  VisitStatus `json:"status"`
	GuardID string      `json:"guardId"`
	At      time.Time   `json:"timestamp"`
	Notes   string      `json:"notes,omitempty"`
}

// Visit es una entrada física concedida.
// Invariante: Status == VisitActive <=> ExitAt == nil.
type Visit struct {
	ID              string
	StudentID       string
	GuardID         string
	CheckoutGuardID string

	VisitorName   string
	VisitorPhone  string
	Purpose       string
	IsGroupVisit  bool
	GroupVisitors []GroupVisitor

	Method            VisitMethod
	OTPID             string
	OverrideRequestID string

	EntryAt         time.Time
	ExitAt          *time.Time
	Status          VisitStatus
	CancelledReason string
	StatusHistory   []StatusChange
}

// VisitClose describe el cierre de una visita activa.
type VisitClose struct {
	Status          VisitStatus // completed | cancelled
	GuardID         string
	At              time.Time
	Notes           string
	CancelledReason string
}

// VisitRepository persiste visitas.
type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error

	GetByID(ctx context.Context, id string) (*Visit, error)

	// Close transiciona active -> completed|cancelled con update condicional,
	// agrega el cambio al historial y retorna la visita actualizada.
	// ErrNotFound si no existe, ErrAlreadyClosed si ya no estaba activa.
	Close(ctx context.Context, id string, c VisitClose) (*Visit, error)

	// ListActive lista visitas activas, opcionalmente filtradas por guardia que admitió.
	ListActive(ctx context.Context, guardID string) ([]Visit, error)

	// ListByStudent lista visitas del residente, más nuevas primero.
	ListByStudent(ctx context.Context, studentID string, limit int) ([]Visit, error)
}
