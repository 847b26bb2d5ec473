package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type visitRepo struct {
	pool *pgxpool.Pool
}

const visitColumns = `id, student_id, guard_id, checkout_guard_id, visitor_name, visitor_phone, purpose,
	is_group_visit, group_visitors, method, COALESCE(otp_id, ''), COALESCE(override_request_id, ''),
	entry_at, exit_at, status, cancelled_reason, status_history`

func scanVisit(row pgx.Row) (*repository.Visit, error) {
	var (
		v                 repository.Visit
		method, status    string
		groupRaw, history []byte
	)
	err := row.Scan(&v.ID, &v.StudentID, &v.GuardID, &v.CheckoutGuardID, &v.VisitorName, &v.VisitorPhone, &v.Purpose,
		&v.IsGroupVisit, &groupRaw, &method, &v.OTPID, &v.OverrideRequestID,
		&v.EntryAt, &v.ExitAt, &status, &v.CancelledReason, &history)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Method = repository.VisitMethod(method)
	v.Status = repository.VisitStatus(status)
	if len(groupRaw) > 0 {
		if err := json.Unmarshal(groupRaw, &v.GroupVisitors); err != nil {
			return nil, fmt.Errorf("decode group_visitors: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &v.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status_history: %w", err)
		}
	}
	return &v, nil
}

func (r *visitRepo) Create(ctx context.Context, v *repository.Visit) error {
	return insertVisit(ctx, r.pool, v)
}

func insertVisit(ctx context.Context, q execer, v *repository.Visit) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	group, err := json.Marshal(nonNilGroup(v.GroupVisitors))
	if err != nil {
		return err
	}
	history, err := json.Marshal(nonNilHistory(v.StatusHistory))
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO visits (id, student_id, guard_id, visitor_name, visitor_phone, purpose,
			is_group_visit, group_visitors, method, otp_id, override_request_id,
			entry_at, exit_at, status, status_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		v.ID, v.StudentID, v.GuardID, v.VisitorName, v.VisitorPhone, v.Purpose,
		v.IsGroupVisit, group, string(v.Method), nullIfEmpty(v.OTPID), nullIfEmpty(v.OverrideRequestID),
		v.EntryAt, v.ExitAt, string(v.Status), history,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *visitRepo) GetByID(ctx context.Context, id string) (*repository.Visit, error) {
	return scanVisit(r.pool.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id))
}

func (r *visitRepo) Close(ctx context.Context, id string, c repository.VisitClose) (*repository.Visit, error) {
	entry, err := json.Marshal([]repository.StatusChange{{
		Status: c.Status, GuardID: c.GuardID, At: c.At, Notes: c.Notes,
	}})
	if err != nil {
		return nil, err
	}
	checkoutGuard := ""
	if c.Status == repository.VisitCompleted {
		checkoutGuard = c.GuardID
	}
	v, err := scanVisit(r.pool.QueryRow(ctx, `
		UPDATE visits
		SET status = $2,
		    exit_at = $3,
		    checkout_guard_id = $4,
		    cancelled_reason = $5,
		    status_history = status_history || $6::jsonb
		WHERE id = $1 AND status = 'active'
		RETURNING `+visitColumns,
		id, string(c.Status), c.At, checkoutGuard, c.CancelledReason, entry,
	))
	if errors.Is(err, repository.ErrNotFound) {
		// UPDATE sin filas: no existe o ya estaba cerrada
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrAlreadyClosed
	}
	return v, err
}

func (r *visitRepo) list(ctx context.Context, query string, args ...any) ([]repository.Visit, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []repository.Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (r *visitRepo) ListActive(ctx context.Context, guardID string) ([]repository.Visit, error) {
	return r.list(ctx, `
		SELECT `+visitColumns+` FROM visits
		WHERE status = 'active' AND ($1 = '' OR guard_id = $1)
		ORDER BY entry_at DESC`, guardID)
}

func (r *visitRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]repository.Visit, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx, `
		SELECT `+visitColumns+` FROM visits
		WHERE student_id = $1
		ORDER BY entry_at DESC
		LIMIT $2`, studentID, limit)
}

func nonNilGroup(g []repository.GroupVisitor) []repository.GroupVisitor {
	if g == nil {
		return []repository.GroupVisitor{}
	}
	return g
}

func nonNilHistory(h []repository.StatusChange) []repository.StatusChange {
	if h == nil {
		return []repository.StatusChange{}
	}
	return h
}
