package memory

import (
	"context"
	"sort"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type studentRepo struct{ s *Store }

func (r studentRepo) GetByID(_ context.Context, id string) (*repository.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	st, ok := r.s.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r studentRepo) IsWhitelisted(_ context.Context, studentID, phone string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.whitelist[studentID][phone]
	return ok, nil
}

func (r studentRepo) ListWhitelist(_ context.Context, studentID string) ([]repository.WhitelistEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]repository.WhitelistEntry, 0, len(r.s.whitelist[studentID]))
	for _, e := range r.s.whitelist[studentID] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (r studentRepo) AddWhitelist(_ context.Context, e repository.WhitelistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.whitelist[e.StudentID]
	if !ok {
		m = map[string]repository.WhitelistEntry{}
		r.s.whitelist[e.StudentID] = m
	}
	if prev, ok := m[e.Phone]; ok {
		prev.Label = e.Label
		m[e.Phone] = prev
		return nil
	}
	m[e.Phone] = e
	return nil
}

func (r studentRepo) RemoveWhitelist(_ context.Context, studentID, phone string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.whitelist[studentID][phone]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.whitelist[studentID], phone)
	return nil
}

type wardenRepo struct{ s *Store }

func (r wardenRepo) ListActive(_ context.Context) ([]repository.Warden, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]repository.Warden, 0, len(r.s.wardens))
	for _, w := range r.s.wardens {
		if w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
