package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// PushMessage es el payload que recibe el gateway de push (FCM relay).
type PushMessage struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Pusher entrega una notificación push a un device token.
type Pusher interface {
	Push(ctx context.Context, msg PushMessage) error
}

// SMSSender entrega un SMS a un teléfono E.164.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// WebhookPusher hace POST JSON al gateway de push.
type WebhookPusher struct {
	URL    string
	APIKey string
	Client *http.Client
}

func (p *WebhookPusher) Push(ctx context.Context, msg PushMessage) error {
	if msg.Token == "" {
		return ErrNoDeviceToken
	}
	return postJSON(ctx, p.Client, p.URL, p.APIKey, msg)
}

// WebhookSMS hace POST JSON al proveedor de SMS.
type WebhookSMS struct {
	URL    string
	APIKey string
	Sender string
	Client *http.Client
}

func (s *WebhookSMS) SendSMS(ctx context.Context, phone, body string) error {
	if phone == "" {
		return ErrNoPhone
	}
	return postJSON(ctx, s.Client, s.URL, s.APIKey, map[string]string{
		"to":      phone,
		"from":    s.Sender,
		"message": body,
	})
}

func postJSON(ctx context.Context, c *http.Client, url, apiKey string, payload any) error {
	if url == "" {
		return ErrNotConfigured
	}
	if c == nil {
		c = http.DefaultClient
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return nil
}
