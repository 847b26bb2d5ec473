package repository

import (
	"context"
	"time"
)

// Student es el residente destino de una visita.
type Student struct {
	ID          string
	Name        string
	RoomNumber  string
	Email       string
	Phone       string // contacto primario para SMS
	BackupPhone string // contacto de respaldo
	DeviceToken string // token push; vacío si no registró dispositivo
	Active      bool

	// AllowLateVisitors habilita visitas en horario nocturno (22:00–06:00).
	AllowLateVisitors bool
}

// WhitelistEntry es un teléfono pre-aprobado por el residente.
type WhitelistEntry struct {
	StudentID string
	Phone     string // normalizado, ej: +919876543210
	Label     string
	AddedAt   time.Time
}

// Warden revisa y resuelve overrides.
type Warden struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	DeviceToken string
	Active      bool
}

// StudentRepository resuelve residentes y su whitelist.
type StudentRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Student, error)

	// IsWhitelisted verifica si el teléfono normalizado está pre-aprobado.
	IsWhitelisted(ctx context.Context, studentID, phone string) (bool, error)

	ListWhitelist(ctx context.Context, studentID string) ([]WhitelistEntry, error)

	// AddWhitelist es idempotente: re-agregar un teléfono actualiza el label.
	AddWhitelist(ctx context.Context, entry WhitelistEntry) error

	// RemoveWhitelist retorna ErrNotFound si el teléfono no estaba.
	RemoveWhitelist(ctx context.Context, studentID, phone string) error
}

// WardenRepository lista wardens para el fan-out de overrides.
type WardenRepository interface {
	ListActive(ctx context.Context) ([]Warden, error)
}
