package visitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hostelgate/internal/cache"
	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
	"github.com/dropDatabas3/hostelgate/internal/events"
	dto "github.com/dropDatabas3/hostelgate/internal/http/dto/visitor"
	"github.com/dropDatabas3/hostelgate/internal/notify"
	"github.com/dropDatabas3/hostelgate/internal/security/bruteforce"
	"github.com/dropDatabas3/hostelgate/internal/security/otpcode"
	"github.com/dropDatabas3/hostelgate/internal/store/adapters/memory"
)

var ist = time.FixedZone("IST", 5*3600+1800)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store    *memory.Store
	svc      Services
	clock    *fakeClock
	notifier *notify.Memory
	events   *events.Buffer
	deps     Deps
}

// rebuild recrea los servicios sobre el mismo store con deps modificadas.
func (f *fixture) rebuild(mutate func(*Deps)) {
	d := f.deps
	mutate(&d)
	f.deps = d
	f.svc = NewServices(d)
}

func newFixture(t *testing.T, at time.Time, guard bruteforce.Guard) *fixture {
	t.Helper()
	hasher, err := otpcode.NewHasher("test-secret-with-enough-bytes")
	require.NoError(t, err)

	st := memory.New()
	st.PutStudent(repository.Student{ID: "s1", Name: "Asha", RoomNumber: "B-204", Phone: "+919000000001", Active: true})
	st.PutStudent(repository.Student{ID: "s2", Name: "Late Owl", RoomNumber: "C-101", Active: true, AllowLateVisitors: true})
	st.PutStudent(repository.Student{ID: "s3", Name: "Gone", Active: false})
	st.PutWarden(repository.Warden{ID: "w1", Name: "Warden", Active: true})

	f := &fixture{
		store:    st,
		clock:    &fakeClock{t: at},
		notifier: &notify.Memory{Result: notify.OTPResult{FCMSent: true}},
		events:   &events.Buffer{},
	}
	policy := DefaultPolicy()
	policy.Location = ist
	f.deps = Deps{
		Students:   st.Students(),
		Wardens:    st.Wardens(),
		OTPs:       st.OTPs(),
		Visits:     st.Visits(),
		Overrides:  st.Overrides(),
		AuditLog:   st.Audit(),
		Hasher:     hasher,
		BruteForce: guard,
		Notifier:   f.notifier,
		Events:     f.events,
		Policy:     policy,
		Now:        f.clock.Now,
	}
	f.svc = NewServices(f.deps)
	return f
}

func afternoon() time.Time { return time.Date(2026, 3, 10, 14, 0, 0, 0, ist) }
func lateNight() time.Time { return time.Date(2026, 3, 10, 23, 30, 0, 0, ist) }

var ctx = context.Background()

func familyVisit(studentID string) dto.OTPRequest {
	return dto.OTPRequest{
		StudentID:    studentID,
		VisitorName:  "Ravi",
		VisitorPhone: "9876543210",
		GuardID:      "g1",
		Purpose:      "Family visit",
	}
}

// issue pide un OTP y retorna el código entregado al residente.
func (f *fixture) issue(t *testing.T, in dto.OTPRequest) (*IssueResult, string) {
	t.Helper()
	res, err := f.svc.OTP.Request(ctx, in)
	require.NoError(t, err)
	require.NoError(t, f.svc.Maintenance.Drain(ctx))
	sent := f.notifier.OTPs()
	require.NotEmpty(t, sent)
	return res, sent[len(sent)-1].Code
}

func verifyReq(code string) dto.OTPVerifyRequest {
	return dto.OTPVerifyRequest{VisitorPhone: "+91 98765 43210", ProvidedOTP: code, GuardID: "g1"}
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func auditActions(t *testing.T, f *fixture) []repository.AuditAction {
	t.Helper()
	entries, err := f.store.Audit().List(ctx, repository.AuditFilter{})
	require.NoError(t, err)
	out := make([]repository.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestScenario_OTPVisitCheckout(t *testing.T) {
	f := newFixture(t, afternoon(), nil)

	res, code := f.issue(t, familyVisit("s1"))
	require.False(t, res.PreApproved)
	require.NotNil(t, res.Challenge)
	assert.Equal(t, "+919876543210", res.Challenge.VisitorPhone)
	assert.Equal(t, afternoon().Add(5*time.Minute), res.Challenge.ExpiresAt)
	assert.NotEqual(t, code, res.Challenge.OTPHash)
	assert.Len(t, code, 6)

	f.clock.Advance(2 * time.Minute)
	vr, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	require.NoError(t, err)
	assert.Equal(t, repository.MethodOTP, vr.Visit.Method)
	assert.Equal(t, repository.VisitActive, vr.Visit.Status)
	assert.Equal(t, res.Challenge.ID, vr.Visit.OTPID)
	require.NotNil(t, vr.Student)
	assert.Equal(t, "B-204", vr.Student.RoomNumber)

	v, err := f.svc.Visits.Checkout(ctx, dto.CheckoutRequest{VisitID: vr.Visit.ID, GuardID: "g2"})
	require.NoError(t, err)
	assert.Equal(t, repository.VisitCompleted, v.Status)
	require.NotNil(t, v.ExitAt)
	assert.Equal(t, "g2", v.CheckoutGuardID)
	exit := *v.ExitAt

	f.clock.Advance(time.Minute)
	_, err = f.svc.Visits.Checkout(ctx, dto.CheckoutRequest{VisitID: vr.Visit.ID, GuardID: "g2"})
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	again, err := f.svc.Visits.Get(ctx, vr.Visit.ID)
	require.NoError(t, err)
	assert.Equal(t, exit, *again.ExitAt)

	assert.Equal(t, []repository.AuditAction{
		repository.ActionOTPRequested,
		repository.ActionOTPNotification,
		repository.ActionOTPVerified,
		repository.ActionVisitCheckout,
	}, auditActions(t, f))
	assert.Equal(t, []string{events.VisitCreated, events.VisitCheckout}, f.events.Types())
}

func TestVerify_SingleUse(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	_, code := f.issue(t, familyVisit("s1"))

	_, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	require.NoError(t, err)
	_, err = f.svc.OTP.Verify(ctx, verifyReq(code))
	assert.ErrorIs(t, err, ErrOTPNotFound)

	visits, err := f.svc.Visits.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, visits, 1)
}

func TestVerify_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	_, code := f.issue(t, familyVisit("s1"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.OTP.Verify(ctx, verifyReq(code)); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrOTPNotFound)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())

	visits, err := f.svc.Visits.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, visits, 1)
}

func TestVerify_LockoutAfterThreeFailures(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	res, code := f.issue(t, familyVisit("s1"))
	bad := wrongCode(code)

	for want := 2; want >= 0; want-- {
		_, err := f.svc.OTP.Verify(ctx, verifyReq(bad))
		var inv *InvalidOTPError
		require.ErrorAs(t, err, &inv)
		assert.ErrorIs(t, err, ErrOTPInvalid)
		assert.Equal(t, want, inv.AttemptsRemaining)
		assert.Equal(t, want == 0, inv.Locked)
	}

	ch, err := f.store.OTPs().GetByID(ctx, res.Challenge.ID)
	require.NoError(t, err)
	assert.True(t, ch.Locked)
	assert.Equal(t, 3, ch.Attempts)

	// el cuarto intento, aunque sea correcto, no autoriza
	_, err = f.svc.OTP.Verify(ctx, verifyReq(code))
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestVerify_ExpiredDoesNotConsumeAttempt(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	res, code := f.issue(t, familyVisit("s1"))

	f.clock.Advance(5*time.Minute + time.Second)
	_, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	assert.ErrorIs(t, err, ErrOTPExpired)
	_, err = f.svc.OTP.Verify(ctx, verifyReq(wrongCode(code)))
	assert.ErrorIs(t, err, ErrOTPExpired)

	ch, err := f.store.OTPs().GetByID(ctx, res.Challenge.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, ch.Attempts)
	assert.False(t, ch.Used)
}

func TestRequest_WhitelistBypass(t *testing.T) {
	f := newFixture(t, lateNight(), nil)
	require.NoError(t, f.svc.Whitelist.Add(ctx, dto.WhitelistAddRequest{StudentID: "s1", Phone: "98765-43210", Label: "Dad"}))

	res, err := f.svc.OTP.Request(ctx, familyVisit("s1"))
	require.NoError(t, err)
	require.True(t, res.PreApproved)
	assert.Nil(t, res.Challenge)
	assert.Equal(t, repository.MethodPreapproved, res.Visit.Method)
	assert.Equal(t, repository.VisitActive, res.Visit.Status)

	_, err = f.store.OTPs().FindLatestActive(ctx, "+919876543210")
	assert.True(t, repository.IsNotFound(err))
	require.NoError(t, f.svc.Maintenance.Drain(ctx))
	assert.Empty(t, f.notifier.OTPs())
}

func TestRequest_OutOfHours(t *testing.T) {
	f := newFixture(t, lateNight(), nil)

	_, err := f.svc.OTP.Request(ctx, familyVisit("s1"))
	assert.ErrorIs(t, err, ErrOutOfHours)

	// el residente habilitó visitas nocturnas
	res, err := f.svc.OTP.Request(ctx, familyVisit("s2"))
	require.NoError(t, err)
	assert.NotNil(t, res.Challenge)
}

func TestRequest_Validation(t *testing.T) {
	f := newFixture(t, afternoon(), nil)

	in := familyVisit("s1")
	in.Purpose = " "
	_, err := f.svc.OTP.Request(ctx, in)
	assert.ErrorIs(t, err, ErrMissingFields)

	in = familyVisit("s1")
	in.VisitorPhone = "12345"
	_, err = f.svc.OTP.Request(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidPhone)

	_, err = f.svc.OTP.Request(ctx, familyVisit("nope"))
	assert.ErrorIs(t, err, ErrStudentNotFound)
	_, err = f.svc.OTP.Request(ctx, familyVisit("s3"))
	assert.ErrorIs(t, err, ErrStudentNotFound)
}

func TestVerify_NoChallenge(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	_, err := f.svc.OTP.Verify(ctx, verifyReq("123456"))
	assert.ErrorIs(t, err, ErrOTPNotFound)
}

func TestVerify_BruteForceGuard(t *testing.T) {
	guard := bruteforce.New(cache.NewMemory("test:"), bruteforce.Config{MaxFailures: 2, Window: time.Minute, Lockout: time.Minute})
	f := newFixture(t, afternoon(), guard)
	_, code := f.issue(t, familyVisit("s1"))

	for i := 0; i < 2; i++ {
		_, err := f.svc.OTP.Verify(ctx, verifyReq(wrongCode(code)))
		require.ErrorIs(t, err, ErrOTPInvalid)
	}
	_, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	var blocked *BlockedError
	require.ErrorAs(t, err, &blocked)
	assert.ErrorIs(t, err, ErrBruteForce)
}

func TestVerify_GroupVisit(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	in := familyVisit("s1")
	in.GroupSize = 3
	res, code := f.issue(t, in)
	require.True(t, res.Challenge.IsGroupOTP)

	req := verifyReq(code)
	req.GroupVisitors = []dto.GroupVisitor{
		{Name: "Meera", Phone: "9876500001", IDVerified: true},
		{Name: "Kiran"},
	}
	vr, err := f.svc.OTP.Verify(ctx, req)
	require.NoError(t, err)
	assert.True(t, vr.Visit.IsGroupVisit)
	require.Len(t, vr.Visit.GroupVisitors, 2)
	assert.Equal(t, "+919876500001", vr.Visit.GroupVisitors[0].Phone)
	assert.True(t, vr.Visit.GroupVisitors[0].IDVerified)
}

func TestStudentGenerate_ExpiresAtMidnight(t *testing.T) {
	f := newFixture(t, lateNight(), nil)

	gen, err := f.svc.OTP.StudentGenerate(ctx, dto.StudentGenerateRequest{
		StudentID: "s1", VisitorName: "Ravi", VisitorPhone: "9876543210", Purpose: "Dinner",
	})
	require.NoError(t, err)
	assert.True(t, gen.Challenge.IsStudentGenerated)
	assert.Equal(t, "s1", gen.Challenge.CreatedByStudentID)
	assert.Empty(t, gen.Challenge.CreatedByGuardID)
	assert.Equal(t, repository.ExpiryMidnight, gen.Challenge.ExpiryType)
	assert.True(t, gen.Challenge.ExpiresAt.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, ist)))

	f.clock.Advance(20 * time.Minute)
	vr, err := f.svc.OTP.Verify(ctx, verifyReq(gen.Code))
	require.NoError(t, err)
	assert.Equal(t, gen.Challenge.ID, vr.Visit.OTPID)
}

func TestOverride_Scenario(t *testing.T) {
	f := newFixture(t, lateNight(), nil)

	_, err := f.svc.OTP.Request(ctx, familyVisit("s1"))
	require.ErrorIs(t, err, ErrOutOfHours)

	in := dto.OverrideRequest{
		GuardID: "g1", VisitorName: "Ravi", VisitorPhone: "9876543210",
		StudentID: "s1", Reason: "train delayed", Purpose: "Family visit", Urgency: "high",
	}
	req, err := f.svc.Override.Request(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, repository.OverridePending, req.Status)
	assert.True(t, req.IsOutOfHours)
	assert.Equal(t, repository.UrgencyHigh, req.Urgency)

	_, err = f.svc.Override.Request(ctx, in)
	var exists *OverrideExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, req.ID, exists.RequestID)

	require.NoError(t, f.svc.Maintenance.Drain(ctx))
	assert.Equal(t, []string{req.ID}, f.notifier.Overrides())

	out, err := f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: req.ID, WardenID: "w1", Action: "approved"})
	require.NoError(t, err)
	assert.Equal(t, repository.OverrideApproved, out.Request.Status)
	require.NotNil(t, out.Visit)
	assert.Equal(t, repository.MethodOverride, out.Visit.Method)
	assert.Equal(t, req.ID, out.Visit.OverrideRequestID)
	assert.Equal(t, out.Visit.ID, out.Request.VisitID)

	stored, err := f.store.Overrides().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Visit.ID, stored.VisitID)

	_, err = f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: req.ID, WardenID: "w1", Action: "denied"})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	// resuelto el anterior, se puede volver a escalar
	_, err = f.svc.Override.Request(ctx, in)
	assert.NoError(t, err)

	assert.Contains(t, f.events.Types(), events.OverrideRequested)
	assert.Contains(t, f.events.Types(), events.OverrideProcessed)
}

func TestOverride_ConcurrentProcess(t *testing.T) {
	f := newFixture(t, lateNight(), nil)
	req, err := f.svc.Override.Request(ctx, dto.OverrideRequest{
		GuardID: "g1", VisitorName: "Ravi", VisitorPhone: "9876543210",
		StudentID: "s1", Reason: "late", Purpose: "visit",
	})
	require.NoError(t, err)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		action := "approved"
		if i%2 == 1 {
			action = "rejected"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: req.ID, WardenID: "w1", Action: action})
			if err == nil {
				ok.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok.Load())

	visits, err := f.svc.Visits.ListActive(ctx, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(visits), 1)
}

func TestOverride_ProcessValidation(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	_, err := f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: "x", WardenID: "w1", Action: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	_, err = f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: "missing", WardenID: "w1", Action: "deny"})
	assert.ErrorIs(t, err, ErrOverrideNotFound)
	_, err = f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: "x", Action: "deny"})
	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestVisit_Cancel(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	_, code := f.issue(t, familyVisit("s1"))
	vr, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	require.NoError(t, err)

	_, err = f.svc.Visits.Cancel(ctx, dto.CancelRequest{VisitID: vr.Visit.ID, GuardID: "g1"})
	assert.ErrorIs(t, err, ErrMissingFields)

	v, err := f.svc.Visits.Cancel(ctx, dto.CancelRequest{VisitID: vr.Visit.ID, GuardID: "g1", Reason: "wrong student"})
	require.NoError(t, err)
	assert.Equal(t, repository.VisitCancelled, v.Status)
	assert.Equal(t, "wrong student", v.CancelledReason)
	assert.NotNil(t, v.ExitAt)
	assert.Len(t, v.StatusHistory, 2)
	assert.Contains(t, f.events.Types(), events.VisitCancelled)
	assert.NotContains(t, f.events.Types(), events.VisitCheckout)

	_, err = f.svc.Visits.Checkout(ctx, dto.CheckoutRequest{VisitID: vr.Visit.ID, GuardID: "g1"})
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	_, err = f.svc.Visits.Checkout(ctx, dto.CheckoutRequest{VisitID: "missing", GuardID: "g1"})
	assert.ErrorIs(t, err, ErrVisitNotFound)
}

func TestWhitelist_CRUD(t *testing.T) {
	f := newFixture(t, afternoon(), nil)

	require.NoError(t, f.svc.Whitelist.Add(ctx, dto.WhitelistAddRequest{StudentID: "s1", Phone: "9876543210", Label: "Dad"}))
	require.NoError(t, f.svc.Whitelist.Add(ctx, dto.WhitelistAddRequest{StudentID: "s1", Phone: "+919876543210", Label: "Father"}))
	entries, err := f.svc.Whitelist.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Father", entries[0].Label)

	assert.ErrorIs(t, f.svc.Whitelist.Add(ctx, dto.WhitelistAddRequest{StudentID: "s1", Phone: "abc"}), ErrInvalidPhone)
	require.NoError(t, f.svc.Whitelist.Remove(ctx, "s1", "+919876543210"))
	assert.ErrorIs(t, f.svc.Whitelist.Remove(ctx, "s1", "+919876543210"), ErrWhitelistEntryNotFound)
}

func TestAudit_ListFilters(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	res, code := f.issue(t, familyVisit("s1"))
	_, err := f.svc.OTP.Verify(ctx, verifyReq(wrongCode(code)))
	require.Error(t, err)

	entries, err := f.svc.Audit.List(ctx, dto.AuditQuery{TargetID: res.Challenge.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, repository.ActionOTPRequested, entries[0].Action)
	assert.Equal(t, repository.ActionOTPFailed, entries[2].Action)
	assert.Equal(t, repository.SeverityWarning, entries[2].Severity)

	entries, err = f.svc.Audit.List(ctx, dto.AuditQuery{Action: string(repository.ActionOTPFailed)})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	res, _ := f.issue(t, familyVisit("s1"))

	n, err := f.svc.Maintenance.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(61 * time.Minute)
	n, err = f.svc.Maintenance.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = f.store.OTPs().GetByID(ctx, res.Challenge.ID)
	assert.True(t, repository.IsNotFound(err))
}

type failingAudit struct{ repository.AuditRepository }

func (failingAudit) Append(context.Context, *repository.AuditEntry) error {
	return errors.New("disk full")
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	hasher, err := otpcode.NewHasher("test-secret-with-enough-bytes")
	require.NoError(t, err)
	svc := NewServices(Deps{
		Students:  f.store.Students(),
		Wardens:   f.store.Wardens(),
		OTPs:      f.store.OTPs(),
		Visits:    f.store.Visits(),
		Overrides: f.store.Overrides(),
		AuditLog:  failingAudit{f.store.Audit()},
		Hasher:    hasher,
		Notifier:  f.notifier,
		Policy:    Policy{Location: ist},
		Now:       f.clock.Now,
	})
	res, err := svc.OTP.Request(ctx, familyVisit("s1"))
	require.NoError(t, err)
	assert.NotNil(t, res.Challenge)
	require.NoError(t, svc.Maintenance.Drain(ctx))
}

// collidingOTPs hace que el primer consumo intente dar de alta una visita con
// un ID ya existente.
type collidingOTPs struct {
	repository.OTPRepository
	takenID string
	fired   atomic.Bool
}

func (c *collidingOTPs) ConsumeWithVisit(ctx context.Context, id string, at time.Time, v *repository.Visit) error {
	if c.fired.CompareAndSwap(false, true) {
		v.ID = c.takenID
	}
	return c.OTPRepository.ConsumeWithVisit(ctx, id, at, v)
}

type collidingOverrides struct {
	repository.OverrideRepository
	takenID string
	fired   atomic.Bool
}

func (c *collidingOverrides) ResolveWithVisit(ctx context.Context, id string, res repository.OverrideResolution, v *repository.Visit) (*repository.OverrideRequest, error) {
	if v != nil && c.fired.CompareAndSwap(false, true) {
		v.ID = c.takenID
	}
	return c.OverrideRepository.ResolveWithVisit(ctx, id, res, v)
}

func strayVisit(t *testing.T, f *fixture) string {
	t.Helper()
	v := &repository.Visit{StudentID: "s2", GuardID: "g9", VisitorName: "Other", VisitorPhone: "+919111111111",
		Method: repository.MethodPreapproved, Status: repository.VisitActive, EntryAt: f.clock.Now()}
	require.NoError(t, f.store.Visits().Create(ctx, v))
	return v.ID
}

func TestVerify_VisitFailureLeavesChallengeUsable(t *testing.T) {
	f := newFixture(t, afternoon(), nil)
	taken := strayVisit(t, f)
	f.rebuild(func(d *Deps) { d.OTPs = &collidingOTPs{OTPRepository: d.OTPs, takenID: taken} })

	res, code := f.issue(t, familyVisit("s1"))
	_, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	require.Error(t, err)

	ch, err := f.store.OTPs().GetByID(ctx, res.Challenge.ID)
	require.NoError(t, err)
	assert.False(t, ch.Used)

	// el mismo código sigue sirviendo
	vr, err := f.svc.OTP.Verify(ctx, verifyReq(code))
	require.NoError(t, err)
	assert.Equal(t, res.Challenge.ID, vr.Visit.OTPID)
	assert.NotEqual(t, taken, vr.Visit.ID)

	ch, err = f.store.OTPs().GetByID(ctx, res.Challenge.ID)
	require.NoError(t, err)
	assert.True(t, ch.Used)
}

func TestOverride_VisitFailureKeepsRequestPending(t *testing.T) {
	f := newFixture(t, lateNight(), nil)
	taken := strayVisit(t, f)
	f.rebuild(func(d *Deps) { d.Overrides = &collidingOverrides{OverrideRepository: d.Overrides, takenID: taken} })

	req, err := f.svc.Override.Request(ctx, dto.OverrideRequest{
		GuardID: "g1", VisitorName: "Ravi", VisitorPhone: "9876543210",
		StudentID: "s1", Reason: "late", Purpose: "visit",
	})
	require.NoError(t, err)

	_, err = f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: req.ID, WardenID: "w1", Action: "approved"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyProcessed)

	stored, err := f.store.Overrides().GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.OverridePending, stored.Status)
	assert.Empty(t, stored.VisitID)

	out, err := f.svc.Override.Process(ctx, dto.ProcessOverrideRequest{RequestID: req.ID, WardenID: "w1", Action: "approved"})
	require.NoError(t, err)
	require.NotNil(t, out.Visit)
	assert.Equal(t, out.Visit.ID, out.Request.VisitID)
	assert.Equal(t, req.ID, out.Visit.OverrideRequestID)
}
