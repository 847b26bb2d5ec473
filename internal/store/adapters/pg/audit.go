package pg

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type auditRepo struct {
	pool *pgxpool.Pool
}

func (r *auditRepo) Append(ctx context.Context, e *repository.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, action, actor_id, actor_type, target_id, target_type, meta, severity,
			ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, string(e.Action), e.ActorID, e.ActorType, e.TargetID, e.TargetType, raw, string(e.Severity),
		e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	return err
}

// List retorna las últimas Limit entradas que matchean, en orden cronológico.
func (r *auditRepo) List(ctx context.Context, f repository.AuditFilter) ([]repository.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT * FROM (
			SELECT id, action, actor_id, actor_type, target_id, target_type, meta, severity,
				ip_address, user_agent, created_at
			FROM audit_log
			WHERE ($1 = '' OR target_id = $1)
			  AND ($2 = '' OR actor_id = $2)
			  AND ($3 = '' OR action = $3)
			ORDER BY created_at DESC
			LIMIT $4
		) recent ORDER BY created_at ASC`,
		f.TargetID, f.ActorID, string(f.Action), limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.AuditEntry, error) {
		var (
			e                repository.AuditEntry
			action, severity string
			meta             []byte
		)
		if err := row.Scan(&e.ID, &action, &e.ActorID, &e.ActorType, &e.TargetID, &e.TargetType, &meta,
			&severity, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return e, err
		}
		e.Action = repository.AuditAction(action)
		e.Severity = repository.Severity(severity)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Meta); err != nil {
				return e, err
			}
		}
		return e, nil
	})
}
