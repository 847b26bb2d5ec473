package memory

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type auditRepo struct{ s *Store }

func (r auditRepo) Append(_ context.Context, e *repository.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	cp.Meta = maps.Clone(e.Meta)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, cp)
	return nil
}

// List retorna las últimas Limit entradas que matchean, en orden cronológico.
func (r auditRepo) List(_ context.Context, f repository.AuditFilter) ([]repository.AuditEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []repository.AuditEntry{}
	for _, e := range r.s.audit {
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		cp := e
		cp.Meta = maps.Clone(e.Meta)
		out = append(out, cp)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}
