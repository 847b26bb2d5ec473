package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type otpRepo struct {
	pool *pgxpool.Pool
}

const otpColumns = `id, student_id, visitor_name, visitor_phone, purpose, group_size, is_group_otp,
	otp_hash, expiry_type, created_at, expires_at, attempts, used, used_at, locked,
	COALESCE(created_by_guard_id, ''), COALESCE(created_by_student_id, ''), is_student_generated`

func scanOTP(row pgx.Row) (*repository.OTPChallenge, error) {
	var c repository.OTPChallenge
	var expiry string
	err := row.Scan(&c.ID, &c.StudentID, &c.VisitorName, &c.VisitorPhone, &c.Purpose, &c.GroupSize, &c.IsGroupOTP,
		&c.OTPHash, &expiry, &c.CreatedAt, &c.ExpiresAt, &c.Attempts, &c.Used, &c.UsedAt, &c.Locked,
		&c.CreatedByGuardID, &c.CreatedByStudentID, &c.IsStudentGenerated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.ExpiryType = repository.ExpiryType(expiry)
	return &c, nil
}

func (r *otpRepo) Create(ctx context.Context, c *repository.OTPChallenge) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO otp_challenges (id, student_id, visitor_name, visitor_phone, purpose, group_size, is_group_otp,
			otp_hash, expiry_type, created_at, expires_at, attempts, used, locked,
			created_by_guard_id, created_by_student_id, is_student_generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.StudentID, c.VisitorName, c.VisitorPhone, c.Purpose, c.GroupSize, c.IsGroupOTP,
		c.OTPHash, string(c.ExpiryType), c.CreatedAt, c.ExpiresAt, c.Attempts, c.Used, c.Locked,
		nullIfEmpty(c.CreatedByGuardID), nullIfEmpty(c.CreatedByStudentID), c.IsStudentGenerated,
	)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

func (r *otpRepo) GetByID(ctx context.Context, id string) (*repository.OTPChallenge, error) {
	return scanOTP(r.pool.QueryRow(ctx, `SELECT `+otpColumns+` FROM otp_challenges WHERE id = $1`, id))
}

func (r *otpRepo) FindLatestActive(ctx context.Context, phone string) (*repository.OTPChallenge, error) {
	return scanOTP(r.pool.QueryRow(ctx, `
		SELECT `+otpColumns+` FROM otp_challenges
		WHERE visitor_phone = $1 AND used = FALSE AND locked = FALSE
		ORDER BY created_at DESC
		LIMIT 1`, phone))
}

func (r *otpRepo) RecordFailure(ctx context.Context, id string, maxAttempts int) (repository.FailureResult, error) {
	var res repository.FailureResult
	err := r.pool.QueryRow(ctx, `
		UPDATE otp_challenges
		SET attempts = attempts + 1,
		    locked = (attempts + 1) >= $2
		WHERE id = $1 AND used = FALSE AND locked = FALSE
		RETURNING attempts, locked`, id, maxAttempts,
	).Scan(&res.Attempts, &res.Locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.failureConflict(ctx, id)
	}
	return res, err
}

// failureConflict distingue "no existe" de "ya no está activo" tras un UPDATE sin filas.
func (r *otpRepo) failureConflict(ctx context.Context, id string) (repository.FailureResult, error) {
	c, err := r.GetByID(ctx, id)
	if err != nil {
		return repository.FailureResult{}, err
	}
	return repository.FailureResult{Attempts: c.Attempts, Locked: c.Locked}, repository.ErrAlreadyUsed
}

func (r *otpRepo) ConsumeWithVisit(ctx context.Context, id string, at time.Time, v *repository.Visit) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE otp_challenges SET used = TRUE, used_at = $2
			WHERE id = $1 AND used = FALSE AND locked = FALSE`, id, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrAlreadyUsed
		}
		return insertVisit(ctx, tx, v)
	})
	if errors.Is(err, repository.ErrAlreadyUsed) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return err
}

func (r *otpRepo) DeleteStale(ctx context.Context, createdBefore, expiredBefore time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM otp_challenges WHERE created_at < $1 AND expires_at < $2`, createdBefore, expiredBefore)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
