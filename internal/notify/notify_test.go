package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/hostelgate/internal/domain/repository"
)

type fakeSMS struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []string
}

func (f *fakeSMS) SendSMS(_ context.Context, phone, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[phone] {
		return errors.New("provider down")
	}
	f.sent = append(f.sent, phone)
	return nil
}

type fakeMail struct {
	mu sync.Mutex
	to []string
}

func (f *fakeMail) Send(to, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	return nil
}

type pushFunc func(ctx context.Context, msg PushMessage) error

func (f pushFunc) Push(ctx context.Context, msg PushMessage) error { return f(ctx, msg) }

func student() *repository.Student {
	return &repository.Student{
		ID:          "s1",
		Name:        "Asha",
		RoomNumber:  "B-204",
		Phone:       "+919000000001",
		BackupPhone: "+919000000002",
		DeviceToken: "tok-1",
		Active:      true,
	}
}

func TestSendOTPNotification_PushFirst(t *testing.T) {
	var got PushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sms := &fakeSMS{}
	d := NewDispatcher(Config{Push: &WebhookPusher{URL: srv.URL, APIKey: "k"}, SMS: sms, Timeout: time.Second})

	res := d.SendOTPNotification(context.Background(), student(), "123456", "Ravi", "Family visit")
	assert.True(t, res.FCMSent)
	assert.False(t, res.SMSSent)
	assert.Equal(t, "tok-1", got.Token)
	assert.Contains(t, got.Body, "123456")
	assert.Empty(t, sms.sent)
}

func TestSendOTPNotification_SMSFallbackToBackup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sms := &fakeSMS{fail: map[string]bool{"+919000000001": true}}
	d := NewDispatcher(Config{Push: &WebhookPusher{URL: srv.URL}, SMS: sms, Timeout: time.Second})

	res := d.SendOTPNotification(context.Background(), student(), "123456", "Ravi", "Family visit")
	assert.False(t, res.FCMSent)
	assert.True(t, res.SMSSent)
	assert.Equal(t, []string{"+919000000002"}, sms.sent)
}

func TestSendOTPNotification_AllChannelsFail(t *testing.T) {
	sms := &fakeSMS{fail: map[string]bool{"+919000000001": true, "+919000000002": true}}
	d := NewDispatcher(Config{SMS: sms, Timeout: time.Second})

	res := d.SendOTPNotification(context.Background(), student(), "123456", "Ravi", "x")
	assert.False(t, res.Delivered())
}

func TestSendOTPNotification_PushTimeoutIsBounded(t *testing.T) {
	slow := pushFunc(func(ctx context.Context, _ PushMessage) error {
		time.Sleep(2 * time.Second)
		return nil
	})
	sms := &fakeSMS{}
	d := NewDispatcher(Config{Push: slow, SMS: sms, Timeout: 50 * time.Millisecond})

	start := time.Now()
	res := d.SendOTPNotification(context.Background(), student(), "123456", "Ravi", "x")
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, res.FCMSent)
	assert.True(t, res.SMSSent)
}

func TestNotifyWardens_SwallowsPerWardenFailures(t *testing.T) {
	var pushes atomic.Int32
	push := pushFunc(func(_ context.Context, msg PushMessage) error {
		if msg.Token == "bad" {
			return errors.New("unregistered")
		}
		pushes.Add(1)
		assert.Equal(t, "o1", msg.Data["requestId"])
		return nil
	})
	mail := &fakeMail{}
	d := NewDispatcher(Config{Push: push, Mail: mail, Timeout: time.Second})

	wardens := []repository.Warden{
		{ID: "w1", DeviceToken: "good", Email: "w1@hostel.test", Active: true},
		{ID: "w2", DeviceToken: "bad", Email: "w2@hostel.test", Active: true},
		{ID: "w3", Active: true},
	}
	req := &repository.OverrideRequest{ID: "o1", GuardID: "g1", VisitorName: "Ravi", Urgency: repository.UrgencyHigh}

	res := d.NotifyWardens(context.Background(), wardens, req, student())
	assert.Equal(t, 3, res.Wardens)
	assert.Equal(t, 1, res.PushSent)
	assert.Equal(t, 2, res.EmailsSent)
	assert.EqualValues(t, 1, pushes.Load())
	assert.ElementsMatch(t, []string{"w1@hostel.test", "w2@hostel.test"}, mail.to)
}

func TestWebhookSMS_NotConfigured(t *testing.T) {
	s := &WebhookSMS{}
	err := s.SendSMS(context.Background(), "+919000000001", "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, s.SendSMS(context.Background(), "", "hi"), ErrNoPhone)
}

func TestMemory_Captures(t *testing.T) {
	m := &Memory{Result: OTPResult{SMSSent: true}}
	res := m.SendOTPNotification(context.Background(), student(), "654321", "Ravi", "x")
	assert.True(t, res.SMSSent)
	require.Len(t, m.OTPs(), 1)
	assert.Equal(t, "654321", m.OTPs()[0].Code)

	m.NotifyWardens(context.Background(), nil, &repository.OverrideRequest{ID: "o9"}, nil)
	assert.Equal(t, []string{"o9"}, m.Overrides())
}
