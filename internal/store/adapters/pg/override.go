package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type overrideRepo struct {
	pool *pgxpool.Pool
}

const overrideColumns = `id, guard_id, student_id, visitor_name, visitor_phone, reason, purpose, urgency, status,
	is_out_of_hours, created_at, resolved_at, warden_id, warden_notes, visit_id`

func scanOverride(row pgx.Row) (*repository.OverrideRequest, error) {
	var (
		o               repository.OverrideRequest
		urgency, status string
	)
	err := row.Scan(&o.ID, &o.GuardID, &o.StudentID, &o.VisitorName, &o.VisitorPhone, &o.Reason, &o.Purpose,
		&urgency, &status, &o.IsOutOfHours, &o.CreatedAt, &o.ResolvedAt, &o.WardenID, &o.WardenNotes, &o.VisitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Urgency = repository.Urgency(urgency)
	o.Status = repository.OverrideStatus(status)
	return &o, nil
}

func (r *overrideRepo) Create(ctx context.Context, o *repository.OverrideRequest) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO override_requests (id, guard_id, student_id, visitor_name, visitor_phone, reason, purpose,
			urgency, status, is_out_of_hours, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.GuardID, o.StudentID, o.VisitorName, o.VisitorPhone, o.Reason, o.Purpose,
		string(o.Urgency), string(o.Status), o.IsOutOfHours, o.CreatedAt,
	)
	// override_requests_pending_uq
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *overrideRepo) GetByID(ctx context.Context, id string) (*repository.OverrideRequest, error) {
	return scanOverride(r.pool.QueryRow(ctx, `SELECT `+overrideColumns+` FROM override_requests WHERE id = $1`, id))
}

func (r *overrideRepo) FindPending(ctx context.Context, phone, studentID string) (*repository.OverrideRequest, error) {
	return scanOverride(r.pool.QueryRow(ctx, `
		SELECT `+overrideColumns+` FROM override_requests
		WHERE visitor_phone = $1 AND student_id = $2 AND status = 'pending'
		LIMIT 1`, phone, studentID))
}

func (r *overrideRepo) ResolveWithVisit(ctx context.Context, id string, res repository.OverrideResolution, v *repository.Visit) (*repository.OverrideRequest, error) {
	var o *repository.OverrideRequest
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		o, err = scanOverride(tx.QueryRow(ctx, `
			UPDATE override_requests
			SET status = $2, warden_id = $3, warden_notes = $4, resolved_at = $5
			WHERE id = $1 AND status = 'pending'
			RETURNING `+overrideColumns,
			id, string(res.Status), res.WardenID, res.WardenNotes, res.At,
		))
		if err != nil || v == nil {
			return err
		}
		if err := insertVisit(ctx, tx, v); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE override_requests SET visit_id = $2 WHERE id = $1`, id, v.ID); err != nil {
			return err
		}
		o.VisitID = v.ID
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *overrideRepo) list(ctx context.Context, query string, args ...any) ([]repository.OverrideRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []repository.OverrideRequest{}
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *overrideRepo) ListPending(ctx context.Context) ([]repository.OverrideRequest, error) {
	return r.list(ctx, `
		SELECT `+overrideColumns+` FROM override_requests
		WHERE status = 'pending'
		ORDER BY CASE urgency WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at ASC`)
}

func (r *overrideRepo) ListHistory(ctx context.Context, f repository.OverrideFilter) ([]repository.OverrideRequest, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `
		SELECT `+overrideColumns+` FROM override_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`, string(f.Status), limit)
}
