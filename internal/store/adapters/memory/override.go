package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type overrideRepo struct{ s *Store }

func cloneOverride(o *repository.OverrideRequest) *repository.OverrideRequest {
	cp := *o
	if o.ResolvedAt != nil {
		t := *o.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}

func urgencyRank(u repository.Urgency) int {
	switch u {
	case repository.UrgencyHigh:
		return 0
	case repository.UrgencyMedium:
		return 1
	default:
		return 2
	}
}

func (r overrideRepo) pendingFor(phone, studentID string) *repository.OverrideRequest {
	for _, id := range r.s.overrideOrder {
		o := r.s.overrides[id]
		if o.Status == repository.OverridePending && o.VisitorPhone == phone && o.StudentID == studentID {
			return o
		}
	}
	return nil
}

func (r overrideRepo) Create(_ context.Context, o *repository.OverrideRequest) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if o.Status == repository.OverridePending && r.pendingFor(o.VisitorPhone, o.StudentID) != nil {
		return repository.ErrConflict
	}
	r.s.overrides[o.ID] = cloneOverride(o)
	r.s.overrideOrder = append(r.s.overrideOrder, o.ID)
	return nil
}

func (r overrideRepo) GetByID(_ context.Context, id string) (*repository.OverrideRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.overrides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneOverride(o), nil
}

func (r overrideRepo) FindPending(_ context.Context, phone, studentID string) (*repository.OverrideRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if o := r.pendingFor(phone, studentID); o != nil {
		return cloneOverride(o), nil
	}
	return nil, repository.ErrNotFound
}

func (r overrideRepo) ResolveWithVisit(_ context.Context, id string, res repository.OverrideResolution, v *repository.Visit) (*repository.OverrideRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.overrides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != repository.OverridePending {
		return nil, repository.ErrNotPending
	}
	if v != nil {
		if err := r.s.insertVisitLocked(v); err != nil {
			return nil, err
		}
		o.VisitID = v.ID
	}
	at := res.At
	o.Status = res.Status
	o.WardenID = res.WardenID
	o.WardenNotes = res.WardenNotes
	o.ResolvedAt = &at
	return cloneOverride(o), nil
}

func (r overrideRepo) ListPending(_ context.Context) ([]repository.OverrideRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []repository.OverrideRequest{}
	for _, id := range r.s.overrideOrder {
		if o := r.s.overrides[id]; o.Status == repository.OverridePending {
			out = append(out, *cloneOverride(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := urgencyRank(out[i].Urgency), urgencyRank(out[j].Urgency)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r overrideRepo) ListHistory(_ context.Context, f repository.OverrideFilter) ([]repository.OverrideRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []repository.OverrideRequest{}
	for i := len(r.s.overrideOrder) - 1; i >= 0; i-- {
		o := r.s.overrides[r.s.overrideOrder[i]]
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *cloneOverride(o))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
