package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type otpRepo struct{ s *Store }

func cloneOTP(c *repository.OTPChallenge) *repository.OTPChallenge {
	cp := *c
	if c.UsedAt != nil {
		t := *c.UsedAt
		cp.UsedAt = &t
	}
	return &cp
}

func (r otpRepo) Create(_ context.Context, c *repository.OTPChallenge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.otps[c.ID]; exists {
		return repository.ErrConflict
	}
	r.s.otps[c.ID] = cloneOTP(c)
	r.s.otpOrder = append(r.s.otpOrder, c.ID)
	return nil
}

func (r otpRepo) GetByID(_ context.Context, id string) (*repository.OTPChallenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.otps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOTP(c), nil
}

func (r otpRepo) FindLatestActive(_ context.Context, phone string) (*repository.OTPChallenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var best *repository.OTPChallenge
	// recorrer en orden de inserción: ante createdAt iguales gana el último
	for _, id := range r.s.otpOrder {
		c, ok := r.s.otps[id]
		if !ok || c.VisitorPhone != phone || c.Used || c.Locked {
			continue
		}
		if best == nil || !c.CreatedAt.Before(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return cloneOTP(best), nil
}

func (r otpRepo) RecordFailure(_ context.Context, id string, maxAttempts int) (repository.FailureResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.otps[id]
	if !ok {
		return repository.FailureResult{}, repository.ErrNotFound
	}
	if c.Used || c.Locked {
		return repository.FailureResult{Attempts: c.Attempts, Locked: c.Locked}, repository.ErrAlreadyUsed
	}
	c.Attempts++
	if c.Attempts >= maxAttempts {
		c.Locked = true
	}
	return repository.FailureResult{Attempts: c.Attempts, Locked: c.Locked}, nil
}

func (r otpRepo) ConsumeWithVisit(_ context.Context, id string, at time.Time, v *repository.Visit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.otps[id]
	if !ok {
		return repository.ErrNotFound
	}
	if c.Used || c.Locked {
		return repository.ErrAlreadyUsed
	}
	// la visita primero: si falla el challenge sigue activo
	if err := r.s.insertVisitLocked(v); err != nil {
		return err
	}
	c.Used = true
	c.UsedAt = &at
	return nil
}

func (r otpRepo) DeleteStale(_ context.Context, createdBefore, expiredBefore time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	kept := r.s.otpOrder[:0]
	for _, id := range r.s.otpOrder {
		c := r.s.otps[id]
		if c.CreatedAt.Before(createdBefore) && c.ExpiresAt.Before(expiredBefore) {
			delete(r.s.otps, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.s.otpOrder = kept
	return n, nil
}
