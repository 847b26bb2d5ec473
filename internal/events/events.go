// Package events publica eventos en tiempo real para los dashboards de wardens y guardias.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

// Tipos de evento.
const (
	OverrideRequested = "override.requested"
	OverrideProcessed = "override.processed"
	VisitCreated      = "visit.created"
	VisitCheckout     = "visit.checkout"
	VisitCancelled    = "visit.cancelled"
)

type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"timestamp"`
}

// Publisher entrega eventos. Los callers loguean el error y siguen.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// ─── Log ───

// LogPublisher solo loguea (single instance / dev).
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	logger.From(ctx).Info("event", logger.Component("events"), zap.String("type", e.Type))
	return nil
}

// ─── Redis ───

// RedisPublisher hace PUBLISH del evento JSON en un canal.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	return nil
}

// ─── Buffer ───

// Buffer guarda los eventos en memoria (tests, inspección).
type Buffer struct {
	mu     sync.Mutex
	events []Event
}

func (b *Buffer) Publish(_ context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

// Events retorna una copia de lo publicado.
func (b *Buffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Types retorna solo los tipos, en orden.
func (b *Buffer) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}
