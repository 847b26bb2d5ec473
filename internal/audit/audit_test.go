package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type captureRepo struct {
	entries []repository.AuditEntry
	err     error
}

func (c *captureRepo) Append(_ context.Context, e *repository.AuditEntry) error {
	if c.err != nil {
		return c.err
	}
	c.entries = append(c.entries, *e)
	return nil
}

func (c *captureRepo) List(context.Context, repository.AuditFilter) ([]repository.AuditEntry, error) {
	return c.entries, nil
}

func TestRecord_FillsDefaultsAndProvenance(t *testing.T) {
	repo := &captureRepo{}
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder(repo).WithClock(func() time.Time { return fixed })

	ctx := WithRequestInfo(context.Background(), "10.1.1.1", "gate-tablet/1.0")
	r.Record(ctx, repository.AuditEntry{
		Action: repository.ActionOTPRequested, ActorID: "g-1", ActorType: ActorGuard,
		TargetID: "otp-1", TargetType: TargetOTP,
	})

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	require.NotEmpty(t, e.ID)
	require.Equal(t, fixed, e.CreatedAt)
	require.Equal(t, repository.SeverityInfo, e.Severity)
	require.Equal(t, "10.1.1.1", e.IPAddress)
	require.Equal(t, "gate-tablet/1.0", e.UserAgent)
}

func TestRecord_SwallowsSinkErrors(t *testing.T) {
	r := NewRecorder(&captureRepo{err: errors.New("db down")})
	require.NotPanics(t, func() {
		r.Record(context.Background(), repository.AuditEntry{Action: repository.ActionVisitCheckout})
	})
}

func TestRecord_CancelledContextStillWrites(t *testing.T) {
	repo := &captureRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewRecorder(repo).Record(ctx, repository.AuditEntry{Action: repository.ActionVisitCreated})
	require.Len(t, repo.entries, 1)
}
