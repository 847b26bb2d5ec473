package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type visitRepo struct{ s *Store }

func cloneVisit(v *repository.Visit) *repository.Visit {
	cp := *v
	if v.ExitAt != nil {
		t := *v.ExitAt
		cp.ExitAt = &t
	}
	cp.GroupVisitors = append([]repository.GroupVisitor(nil), v.GroupVisitors...)
	cp.StatusHistory = append([]repository.StatusChange(nil), v.StatusHistory...)
	return &cp
}

func (r visitRepo) Create(_ context.Context, v *repository.Visit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertVisitLocked(v)
}

// insertVisitLocked requiere s.mu tomado.
func (s *Store) insertVisitLocked(v *repository.Visit) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if _, exists := s.visits[v.ID]; exists {
		return repository.ErrConflict
	}
	// mismos índices únicos que pg: una visita por challenge y por override
	for _, other := range s.visits {
		if v.OTPID != "" && other.OTPID == v.OTPID {
			return repository.ErrConflict
		}
		if v.OverrideRequestID != "" && other.OverrideRequestID == v.OverrideRequestID {
			return repository.ErrConflict
		}
	}
	s.visits[v.ID] = cloneVisit(v)
	s.visitOrder = append(s.visitOrder, v.ID)
	return nil
}

func (r visitRepo) GetByID(_ context.Context, id string) (*repository.Visit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneVisit(v), nil
}

func (r visitRepo) Close(_ context.Context, id string, c repository.VisitClose) (*repository.Visit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v.Status != repository.VisitActive {
		return nil, repository.ErrAlreadyClosed
	}
	at := c.At
	v.Status = c.Status
	v.ExitAt = &at
	if c.Status == repository.VisitCompleted {
		v.CheckoutGuardID = c.GuardID
	}
	if c.Status == repository.VisitCancelled {
		v.CancelledReason = c.CancelledReason
	}
	v.StatusHistory = append(v.StatusHistory, repository.StatusChange{
		Status: c.Status, GuardID: c.GuardID, At: c.At, Notes: c.Notes,
	})
	return cloneVisit(v), nil
}

// newest first
func (r visitRepo) collect(keep func(*repository.Visit) bool, limit int) []repository.Visit {
	out := []repository.Visit{}
	for i := len(r.s.visitOrder) - 1; i >= 0; i-- {
		v := r.s.visits[r.s.visitOrder[i]]
		if keep(v) {
			out = append(out, *cloneVisit(v))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EntryAt.After(out[j].EntryAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r visitRepo) ListActive(_ context.Context, guardID string) ([]repository.Visit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.collect(func(v *repository.Visit) bool {
		return v.Status == repository.VisitActive && (guardID == "" || v.GuardID == guardID)
	}, 0), nil
}

func (r visitRepo) ListByStudent(_ context.Context, studentID string, limit int) ([]repository.Visit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.collect(func(v *repository.Visit) bool { return v.StudentID == studentID }, limit), nil
}
