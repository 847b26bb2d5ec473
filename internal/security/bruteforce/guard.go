// Package bruteforce cuenta verificaciones OTP fallidas por teléfono y bloquea
// temporalmente al superar el umbral.
//
// Es control de admisión best-effort: el respaldo durable es el lockout de 3
// intentos del propio challenge. El backend es cache.Client, así que con cache
// memory el estado es por proceso y con redis se comparte.
package bruteforce

import (
	"context"
	"strconv"
	"time"

	"github.com/dropDatabas3/hostelgate/internal/cache"
)

// Guard es la interfaz que consumen los engines.
type Guard interface {
	// Check indica si key está bloqueada y por cuánto tiempo.
	Check(ctx context.Context, key string) (blocked bool, retryAfter time.Duration, err error)

	// Record registra un fallo; bloquea al alcanzar el máximo. Retorna fallos en la ventana.
	Record(ctx context.Context, key string) (failures int, err error)

	// Clear resetea contador y bloqueo (tras verificación exitosa).
	Clear(ctx context.Context, key string) error
}

type Config struct {
	MaxFailures int
	Window      time.Duration
	Lockout     time.Duration
}

type cacheGuard struct {
	store cache.Client
	cfg   Config
}

// New crea un Guard sobre cache.Client.
func New(store cache.Client, cfg Config) Guard {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = cfg.Window
	}
	return &cacheGuard{store: store, cfg: cfg}
}

func failKey(k string) string { return "bf:fail:" + k }
func lockKey(k string) string { return "bf:lock:" + k }

func (g *cacheGuard) Check(ctx context.Context, key string) (bool, time.Duration, error) {
	_, err := g.store.Get(ctx, lockKey(key))
	if cache.IsNotFound(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}
	ttl, err := g.store.TTL(ctx, lockKey(key))
	if err != nil || ttl <= 0 {
		ttl = g.cfg.Lockout
	}
	return true, ttl, nil
}

func (g *cacheGuard) Record(ctx context.Context, key string) (int, error) {
	n, err := g.store.Incr(ctx, failKey(key), g.cfg.Window)
	if err != nil {
		return 0, err
	}
	if n >= int64(g.cfg.MaxFailures) {
		if err := g.store.Set(ctx, lockKey(key), strconv.FormatInt(n, 10), g.cfg.Lockout); err != nil {
			return int(n), err
		}
		// nueva ventana al terminar el bloqueo
		_ = g.store.Delete(ctx, failKey(key))
	}
	return int(n), nil
}

func (g *cacheGuard) Clear(ctx context.Context, key string) error {
	if err := g.store.Delete(ctx, failKey(key)); err != nil {
		return err
	}
	return g.store.Delete(ctx, lockKey(key))
}

// Noop nunca bloquea.
type Noop struct{}

func (Noop) Check(context.Context, string) (bool, time.Duration, error) { return false, 0, nil }
func (Noop) Record(context.Context, string) (int, error)                { return 0, nil }
func (Noop) Clear(context.Context, string) error                        { return nil }
