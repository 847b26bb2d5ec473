package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type studentRepo struct {
	pool *pgxpool.Pool
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*repository.Student, error) {
	var s repository.Student
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, room_number, email, phone, backup_phone, device_token, active, allow_late_visitors
		FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.RoomNumber, &s.Email, &s.Phone, &s.BackupPhone, &s.DeviceToken, &s.Active, &s.AllowLateVisitors)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *studentRepo) IsWhitelisted(ctx context.Context, studentID, phone string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM student_whitelist WHERE student_id = $1 AND phone = $2)`,
		studentID, phone,
	).Scan(&ok)
	return ok, err
}

func (r *studentRepo) ListWhitelist(ctx context.Context, studentID string) ([]repository.WhitelistEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id, phone, label, added_at
		FROM student_whitelist WHERE student_id = $1
		ORDER BY added_at`, studentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.WhitelistEntry, error) {
		var e repository.WhitelistEntry
		err := row.Scan(&e.StudentID, &e.Phone, &e.Label, &e.AddedAt)
		return e, err
	})
}

func (r *studentRepo) AddWhitelist(ctx context.Context, e repository.WhitelistEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO student_whitelist (student_id, phone, label, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, phone) DO UPDATE SET label = EXCLUDED.label`,
		e.StudentID, e.Phone, e.Label, e.AddedAt)
	return err
}

func (r *studentRepo) RemoveWhitelist(ctx context.Context, studentID, phone string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM student_whitelist WHERE student_id = $1 AND phone = $2`, studentID, phone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type wardenRepo struct {
	pool *pgxpool.Pool
}

func (r *wardenRepo) ListActive(ctx context.Context) ([]repository.Warden, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email, phone, device_token, active
		FROM wardens WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.Warden, error) {
		var w repository.Warden
		err := row.Scan(&w.ID, &w.Name, &w.Email, &w.Phone, &w.DeviceToken, &w.Active)
		return w, err
	})
}
