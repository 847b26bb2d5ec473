package pg

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/store"
)

func TestEmbeddedMigrations(t *testing.T) {
	migs, err := store.NewMigrator(migrationsFS, "migrations").ParseMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	require.Equal(t, 1, migs[0].Version)

	b, err := fs.ReadFile(migrationsFS, "migrations/0001_init.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "override_requests_pending_uq")
	require.Contains(t, string(b), "WHERE status = 'pending'")
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("x")))
	require.False(t, isUniqueViolation(nil))
}

func TestNullIfEmpty(t *testing.T) {
	require.Nil(t, nullIfEmpty(""))
	require.Equal(t, "g-1", *nullIfEmpty("g-1"))
}

func TestConnect_RequiresDSN(t *testing.T) {
	_, err := store.OpenAdapter(context.Background(), store.AdapterConfig{Name: "pg"})
	require.ErrorIs(t, err, repository.ErrNoDatabase)
}

// Integración: requiere HOSTELGATE_TEST_PG_DSN apuntando a una base descartable.
func TestIntegration_OverrideAndOTPTransitions(t *testing.T) {
	dsn := os.Getenv("HOSTELGATE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HOSTELGATE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{Name: "postgres", DSN: dsn})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.(store.MigratableConnection).Migrate(ctx)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	phone := "+91" + now.Format("0405") + "123456"

	o := &repository.OverrideRequest{GuardID: "g-1", StudentID: "s-it", VisitorName: "V", VisitorPhone: phone,
		Reason: "late", Urgency: repository.UrgencyHigh, Status: repository.OverridePending, CreatedAt: now}
	require.NoError(t, conn.Overrides().Create(ctx, o))
	dup := *o
	dup.ID = ""
	require.ErrorIs(t, conn.Overrides().Create(ctx, &dup), repository.ErrConflict)

	approve := repository.OverrideResolution{Status: repository.OverrideApproved, WardenID: "w", At: now}
	pre := &repository.Visit{StudentID: "s-it", GuardID: "g-1", VisitorName: "V", VisitorPhone: phone,
		Method: repository.MethodPreapproved, Status: repository.VisitActive, EntryAt: now}
	require.NoError(t, conn.Visits().Create(ctx, pre))

	// visita con ID repetido: la transacción hace rollback y la solicitud sigue pending
	ov := &repository.Visit{ID: pre.ID, StudentID: "s-it", GuardID: "g-1", VisitorName: "V", VisitorPhone: phone,
		Method: repository.MethodOverride, OverrideRequestID: o.ID, Status: repository.VisitActive, EntryAt: now}
	_, err = conn.Overrides().ResolveWithVisit(ctx, o.ID, approve, ov)
	require.ErrorIs(t, err, repository.ErrConflict)
	got, err := conn.Overrides().GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, repository.OverridePending, got.Status)

	ov.ID = ""
	res, err := conn.Overrides().ResolveWithVisit(ctx, o.ID, approve, ov)
	require.NoError(t, err)
	require.Equal(t, ov.ID, res.VisitID)
	_, err = conn.Overrides().ResolveWithVisit(ctx, o.ID, repository.OverrideResolution{Status: repository.OverrideDenied, WardenID: "w", At: now}, nil)
	require.ErrorIs(t, err, repository.ErrNotPending)

	c := &repository.OTPChallenge{StudentID: "s-it", VisitorName: "V", VisitorPhone: phone, GroupSize: 1,
		OTPHash: "h", ExpiryType: repository.ExpiryFixed, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
		CreatedByGuardID: "g-1"}
	require.NoError(t, conn.OTPs().Create(ctx, c))
	ov2 := &repository.Visit{ID: pre.ID, StudentID: "s-it", GuardID: "g-1", VisitorName: "V", VisitorPhone: phone,
		Method: repository.MethodOTP, OTPID: c.ID, Status: repository.VisitActive, EntryAt: now}
	require.ErrorIs(t, conn.OTPs().ConsumeWithVisit(ctx, c.ID, now, ov2), repository.ErrConflict)
	fresh, err := conn.OTPs().GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, fresh.Used)

	ov2.ID = ""
	require.NoError(t, conn.OTPs().ConsumeWithVisit(ctx, c.ID, now, ov2))
	ov2.ID = ""
	require.ErrorIs(t, conn.OTPs().ConsumeWithVisit(ctx, c.ID, now, ov2), repository.ErrAlreadyUsed)
}
