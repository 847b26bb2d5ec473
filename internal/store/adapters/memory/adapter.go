// Package memory implementa el adapter en memoria de store.
//
// Pensado para desarrollo y tests: un único mutex protege todo el estado, por lo que
// las transiciones condicionales (ConsumeWithVisit, ResolveWithVisit, Close) son linealizables igual
// que los UPDATE ... WHERE del adapter pg. El DSN opcional es la ruta a un YAML
// con residentes y wardens iniciales.
package memory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/store"
)

func init() {
	store.RegisterAdapter(&memoryAdapter{})
}

type memoryAdapter struct{}

func (a *memoryAdapter) Name() string { return "memory" }

func (a *memoryAdapter) Connect(_ context.Context, cfg store.AdapterConfig) (store.AdapterConnection, error) {
	s := New()
	if p := strings.TrimSpace(cfg.DSN); p != "" {
		if err := s.LoadSeedFile(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Store es una conexión en memoria. Implementa store.AdapterConnection.
type Store struct {
	mu sync.RWMutex

	students  map[string]repository.Student
	whitelist map[string]map[string]repository.WhitelistEntry // studentID -> phone -> entry
	wardens   map[string]repository.Warden

	otps     map[string]*repository.OTPChallenge
	otpOrder []string // orden de inserción, desempata createdAt iguales

	visits     map[string]*repository.Visit
	visitOrder []string

	overrides     map[string]*repository.OverrideRequest
	overrideOrder []string

	audit []repository.AuditEntry
}

// New crea un store vacío.
func New() *Store {
	return &Store{
		students:  map[string]repository.Student{},
		whitelist: map[string]map[string]repository.WhitelistEntry{},
		wardens:   map[string]repository.Warden{},
		otps:      map[string]*repository.OTPChallenge{},
		visits:    map[string]*repository.Visit{},
		overrides: map[string]*repository.OverrideRequest{},
	}
}

func (s *Store) Name() string               { return "memory" }
func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) Students() repository.StudentRepository   { return studentRepo{s} }
func (s *Store) Wardens() repository.WardenRepository     { return wardenRepo{s} }
func (s *Store) OTPs() repository.OTPRepository           { return otpRepo{s} }
func (s *Store) Visits() repository.VisitRepository       { return visitRepo{s} }
func (s *Store) Overrides() repository.OverrideRepository { return overrideRepo{s} }
func (s *Store) Audit() repository.AuditRepository        { return auditRepo{s} }

// PutStudent inserta o reemplaza un residente.
func (s *Store) PutStudent(st repository.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st
}

// PutWarden inserta o reemplaza un warden.
func (s *Store) PutWarden(w repository.Warden) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wardens[w.ID] = w
}

type seedFile struct {
	Students []struct {
		ID                string   `yaml:"id"`
		Name              string   `yaml:"name"`
		RoomNumber        string   `yaml:"room_number"`
		Email             string   `yaml:"email"`
		Phone             string   `yaml:"phone"`
		BackupPhone       string   `yaml:"backup_phone"`
		DeviceToken       string   `yaml:"device_token"`
		Inactive          bool     `yaml:"inactive"`
		AllowLateVisitors bool     `yaml:"allow_late_visitors"`
		Whitelist         []string `yaml:"whitelist"`
	} `yaml:"students"`
	Wardens []struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Email       string `yaml:"email"`
		Phone       string `yaml:"phone"`
		DeviceToken string `yaml:"device_token"`
	} `yaml:"wardens"`
}

// LoadSeedFile carga residentes y wardens desde YAML.
// Los teléfonos de whitelist se esperan ya normalizados (+<cc><número>).
func (s *Store) LoadSeedFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("memory: read seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return fmt.Errorf("memory: parse seed: %w", err)
	}

	now := time.Now().UTC()
	for _, st := range seed.Students {
		s.PutStudent(repository.Student{
			ID:                st.ID,
			Name:              st.Name,
			RoomNumber:        st.RoomNumber,
			Email:             st.Email,
			Phone:             st.Phone,
			BackupPhone:       st.BackupPhone,
			DeviceToken:       st.DeviceToken,
			Active:            !st.Inactive,
			AllowLateVisitors: st.AllowLateVisitors,
		})
		for _, p := range st.Whitelist {
			_ = studentRepo{s}.AddWhitelist(context.Background(), repository.WhitelistEntry{
				StudentID: st.ID, Phone: p, AddedAt: now,
			})
		}
	}
	for _, w := range seed.Wardens {
		s.PutWarden(repository.Warden{
			ID: w.ID, Name: w.Name, Email: w.Email, Phone: w.Phone,
			DeviceToken: w.DeviceToken, Active: true,
		})
	}
	return nil
}
