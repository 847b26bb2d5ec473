// Package app arma el servicio a partir de la config: store, cache, limiters,
// notificaciones, services, controllers y router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/hostelgate/internal/cache"
	"github.com/dropDatabas3/hostelgate/internal/config"
	"github.com/dropDatabas3/hostelgate/internal/events"
	healthctrl "github.com/dropDatabas3/hostelgate/internal/http/controllers/health"
	visitorctrl "github.com/dropDatabas3/hostelgate/internal/http/controllers/visitor"
	"github.com/dropDatabas3/hostelgate/internal/http/router"
	healthsvc "github.com/dropDatabas3/hostelgate/internal/http/services/health"
	visitorsvc "github.com/dropDatabas3/hostelgate/internal/http/services/visitor"
	jwtx "github.com/dropDatabas3/hostelgate/internal/jwt"
	"github.com/dropDatabas3/hostelgate/internal/metrics"
	"github.com/dropDatabas3/hostelgate/internal/notify"
	"github.com/dropDatabas3/hostelgate/internal/observability/logger"
	"github.com/dropDatabas3/hostelgate/internal/rate"
	"github.com/dropDatabas3/hostelgate/internal/security/bruteforce"
	"github.com/dropDatabas3/hostelgate/internal/security/otpcode"
	"github.com/dropDatabas3/hostelgate/internal/store"
)

// Options son datos de build que no vienen de la config.
type Options struct {
	Version string
	Commit  string
	// ExposeMetrics registra /metrics (serve lo activa; los comandos one-shot no).
	ExposeMetrics bool
}

// App es el servicio cableado.
type App struct {
	Config   *config.Config
	Handler  http.Handler
	Store    store.AdapterConnection
	Cache    cache.Client
	Issuer   *jwtx.Issuer
	Services visitorsvc.Services
}

// poolProvider lo implementan las conexiones con pool pgx (postgres).
type poolProvider interface {
	Pool() *pgxpool.Pool
}

// OpenStore abre el adapter configurado y, si corresponde, aplica migraciones.
func OpenStore(ctx context.Context, cfg *config.Config, migrate bool) (store.AdapterConnection, error) {
	conn, err := store.OpenAdapter(ctx, store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: config.MustDuration(cfg.Storage.Postgres.ConnMaxLifetime, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if !migrate {
		return conn, nil
	}

	m, ok := conn.(store.MigratableConnection)
	if !ok {
		return conn, nil
	}
	res, err := m.Migrate(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.L().Info("migrations applied",
		logger.Component("app"),
		logger.Int("applied", len(res.Applied)),
		logger.Int("skipped", len(res.Skipped)),
	)
	return conn, nil
}

// Build arma el App completo. El caller es dueño de Close.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := logger.L().With(logger.Component("app"))

	conn, err := OpenStore(ctx, cfg, cfg.Storage.AutoMigrate)
	if err != nil {
		return nil, err
	}

	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("cache: %w", err)
	}

	a := &App{Config: cfg, Store: conn, Cache: cc}

	hasher, err := otpcode.NewHasher(cfg.OTP.Secret)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	publisher, err := buildPublisher(cfg, cc)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var guard bruteforce.Guard = bruteforce.Noop{}
	if cfg.OTP.BruteForce.MaxFailures > 0 {
		guard = bruteforce.New(cc, bruteforce.Config{
			MaxFailures: cfg.OTP.BruteForce.MaxFailures,
			Window:      cfg.OTP.BruteForce.Window,
			Lockout:     cfg.OTP.BruteForce.Lockout,
		})
	}

	a.Services = visitorsvc.NewServices(visitorsvc.Deps{
		Students:   conn.Students(),
		Wardens:    conn.Wardens(),
		OTPs:       conn.OTPs(),
		Visits:     conn.Visits(),
		Overrides:  conn.Overrides(),
		AuditLog:   conn.Audit(),
		Hasher:     hasher,
		BruteForce: guard,
		Notifier:   buildNotifier(cfg),
		Events:     publisher,
		Policy:     buildPolicy(cfg),
	})

	a.Issuer = jwtx.NewIssuer(cfg.JWT.Issuer, cfg.JWT.Secret, config.MustDuration(cfg.JWT.AccessTTL, 12*time.Hour))

	var metricsHandler http.Handler
	if opts.ExposeMetrics {
		var pool func() *pgxpool.Pool
		if pp, ok := conn.(poolProvider); ok {
			pool = pp.Pool
		}
		metricsHandler, err = metrics.Register(metrics.Config{Pool: pool})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	health := healthsvc.NewServices(healthsvc.Deps{
		DBCheck:    conn.Ping,
		CacheCheck: cc.Ping,
		Version:    opts.Version,
		Commit:     opts.Commit,
	})

	deps := router.RouterDeps{
		Issuer:         a.Issuer,
		Visitor:        visitorctrl.NewControllers(a.Services),
		Health:         healthctrl.NewControllers(health),
		RateExemptIPs:  cfg.Rate.Whitelist,
		TrustedProxies: cfg.Rate.TrustedProxies,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		Metrics:        metricsHandler,
	}
	if cfg.Rate.Enabled {
		deps.GlobalLimiter = rate.NewFixedWindowLimiter(cc, "rl:global:",
			cfg.Rate.MaxRequests, config.MustDuration(cfg.Rate.Window, time.Minute))
		deps.OTPRequestLimiter = rate.NewFixedWindowLimiter(cc, "rl:otp_request:",
			cfg.Rate.OTPRequest.Limit, config.MustDuration(cfg.Rate.OTPRequest.Window, time.Minute))
		deps.OTPVerifyLimiter = rate.NewFixedWindowLimiter(cc, "rl:otp_verify:",
			cfg.Rate.OTPVerify.Limit, config.MustDuration(cfg.Rate.OTPVerify.Window, time.Minute))
	}
	a.Handler = router.New(deps)

	log.Info("app wired",
		logger.String("storage", conn.Name()),
		logger.String("cache", cfg.Cache.Kind),
		logger.String("events", cfg.Events.Kind),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
		logger.Bool("notify", cfg.Notify.Enabled),
	)
	return a, nil
}

// Close libera store y cache.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}

func buildPolicy(cfg *config.Config) visitorsvc.Policy {
	p := visitorsvc.DefaultPolicy()
	if cfg.OTP.Length > 0 {
		p.CodeLength = cfg.OTP.Length
	}
	if cfg.OTP.TTL > 0 {
		p.TTL = cfg.OTP.TTL
	}
	if cfg.OTP.MaxAttempts > 0 {
		p.MaxAttempts = cfg.OTP.MaxAttempts
	}
	if cfg.OTP.Retention > 0 {
		p.Retention = cfg.OTP.Retention
	}
	p.Location = cfg.Location()
	p.NightStart = cfg.Hours.NightStart
	p.NightEnd = cfg.Hours.NightEnd
	if cfg.Phone.CountryCode != "" {
		p.CountryCode = cfg.Phone.CountryCode
	}
	return p
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	if !cfg.Notify.Enabled {
		return notify.LogNotifier{}
	}
	var mail notify.MailSender
	if cfg.SMTP.Host != "" {
		s := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		if cfg.SMTP.TLS != "" {
			s.TLSMode = cfg.SMTP.TLS
		}
		s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
		mail = s
	}
	return notify.NewWebhookDispatcher(
		cfg.Notify.Push.URL, cfg.Notify.Push.APIKey,
		cfg.Notify.SMS.URL, cfg.Notify.SMS.APIKey, cfg.Notify.SMS.Sender,
		mail, cfg.Notify.Timeout,
	)
}

func buildPublisher(cfg *config.Config, cc cache.Client) (events.Publisher, error) {
	if cfg.Events.Kind != "redis" {
		return events.LogPublisher{}, nil
	}
	rc, ok := cc.(*cache.RedisClient)
	if !ok {
		return nil, errors.New("events.kind=redis requires cache.kind=redis")
	}
	return events.NewRedisPublisher(rc.Raw(), cfg.Events.Channel), nil
}
