package visitor

import (
	"context"
	"strings"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
)

type auditService struct{ e *engine }

// List retorna entradas más viejas primero para reconstruir la secuencia.
func (s auditService) List(ctx context.Context, q dto.AuditQuery) ([]repository.AuditEntry, error) {
	return s.e.d.AuditLog.List(ctx, repository.AuditFilter{
		TargetID: strings.TrimSpace(q.TargetID),
		ActorID:  strings.TrimSpace(q.ActorID),
		Action:   repository.AuditAction(strings.TrimSpace(q.Action)),
		Limit:    clampLimit(q.Limit, 100, 500),
	})
}
