package visitor

import (
	"context"
	"time"

	"github.com/dropDatabas3/hostelgate/internal/metrics"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
)

func (e *engine) PurgeExpired(ctx context.Context) (int, error) {
	now := e.now()
	n, err := e.d.OTPs.DeleteStale(ctx, now.Add(-e.policy.Retention), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.OTPPurged(n)
		logger.From(ctx).Info("otp challenges purged", logger.Component("janitor"), logger.Int("count", n))
	}
	return n, nil
}

func (e *engine) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	log := logger.From(ctx).With(logger.Component("janitor"))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := e.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
			log.Warn("otp purge failed", logger.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
