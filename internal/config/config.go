package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// Tiempo máximo de drenaje en shutdown.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		// Correr migraciones embebidas al arrancar.
		AutoMigrate bool `yaml:"auto_migrate"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			DB       int    `yaml:"db"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// Secreto HS256 compartido con el sistema que emite tokens de guardias/wardens.
		Secret    string `yaml:"secret"`
		AccessTTL string `yaml:"access_ttl"`
	} `yaml:"jwt"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
		// Límites por endpoint (por IP).
		OTPRequest struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"otp_request"`
		OTPVerify struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"otp_verify"`
		// IPs exentas (ej: kiosco de portería).
		Whitelist []string `yaml:"whitelist"`
		// Proxies (IP o CIDR) cuyo X-Forwarded-For se respeta. Vacío = se usa RemoteAddr.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"rate"`

	OTP struct {
		// Secreto base para HMAC de códigos. Requerido.
		Secret      string        `yaml:"secret"`
		Length      int           `yaml:"length"`
		TTL         time.Duration `yaml:"ttl"`
		MaxAttempts int           `yaml:"max_attempts"`
		// Retención de challenges (janitor).
		Retention       time.Duration `yaml:"retention"`
		JanitorInterval time.Duration `yaml:"janitor_interval"`
		BruteForce      struct {
			// Fallos por teléfono dentro de Window antes de bloquear.
			MaxFailures int           `yaml:"max_failures"`
			Window      time.Duration `yaml:"window"`
			Lockout     time.Duration `yaml:"lockout"`
		} `yaml:"brute_force"`
	} `yaml:"otp"`

	Hours struct {
		// Zona horaria del hostel (IANA).
		Timezone string `yaml:"timezone"`
		// Horario nocturno [NightStart, NightEnd) en horas locales.
		NightStart int `yaml:"night_start"`
		NightEnd   int `yaml:"night_end"`
	} `yaml:"hours"`

	Phone struct {
		// Código de país para números locales de 10 dígitos.
		CountryCode string `yaml:"country_code"`
	} `yaml:"phone"`

	Notify struct {
		Push struct {
			URL    string `yaml:"url"`
			APIKey string `yaml:"api_key"`
		} `yaml:"push"`
		SMS struct {
			URL    string `yaml:"url"`
			APIKey string `yaml:"api_key"`
			Sender string `yaml:"sender"`
		} `yaml:"sms"`
		Timeout time.Duration `yaml:"timeout"`
		// Si es false, las notificaciones solo se loguean (dev).
		Enabled bool `yaml:"enabled"`
	} `yaml:"notify"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
		// auto | starttls | ssl | none
		TLS                string `yaml:"tls"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`

	Events struct {
		// log | redis
		Kind    string `yaml:"kind"`
		Channel string `yaml:"channel"`
	} `yaml:"events"`
}

// Load lee el YAML (opcional si path == ""), aplica defaults, overrides por env y valida.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyDefaults()

	// Overrides por env
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 20
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "hostelgate:"
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = "12h" // turno de guardia
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 120
	}
	if c.Rate.OTPRequest.Limit == 0 {
		c.Rate.OTPRequest.Limit = 20
	}
	if c.Rate.OTPRequest.Window == "" {
		c.Rate.OTPRequest.Window = "1m"
	}
	if c.Rate.OTPVerify.Limit == 0 {
		c.Rate.OTPVerify.Limit = 30
	}
	if c.Rate.OTPVerify.Window == "" {
		c.Rate.OTPVerify.Window = "1m"
	}
	if c.OTP.Length == 0 {
		c.OTP.Length = 6
	}
	if c.OTP.TTL == 0 {
		c.OTP.TTL = 5 * time.Minute
	}
	if c.OTP.MaxAttempts == 0 {
		c.OTP.MaxAttempts = 3
	}
	if c.OTP.Retention == 0 {
		c.OTP.Retention = time.Hour
	}
	if c.OTP.JanitorInterval == 0 {
		c.OTP.JanitorInterval = 10 * time.Minute
	}
	if c.OTP.BruteForce.MaxFailures == 0 {
		c.OTP.BruteForce.MaxFailures = 10
	}
	if c.OTP.BruteForce.Window == 0 {
		c.OTP.BruteForce.Window = 15 * time.Minute
	}
	if c.OTP.BruteForce.Lockout == 0 {
		c.OTP.BruteForce.Lockout = 15 * time.Minute
	}
	if c.Hours.Timezone == "" {
		c.Hours.Timezone = "Asia/Kolkata"
	}
	// 0 es un valor válido para NightEnd pero no para NightStart.
	if c.Hours.NightStart == 0 {
		c.Hours.NightStart = 22
		if c.Hours.NightEnd == 0 {
			c.Hours.NightEnd = 6
		}
	}
	if c.Phone.CountryCode == "" {
		c.Phone.CountryCode = "91"
	}
	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = 10 * time.Second
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Events.Kind == "" {
		c.Events.Kind = "log"
	}
	if c.Events.Channel == "" {
		c.Events.Channel = "hostelgate.events"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MIN_CONNS"); ok {
		c.Storage.Postgres.MinConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvInt("RATE_OTP_REQUEST_LIMIT"); ok {
		c.Rate.OTPRequest.Limit = v
	}
	if v, ok := getEnvStr("RATE_OTP_REQUEST_WINDOW"); ok {
		c.Rate.OTPRequest.Window = v
	}
	if v, ok := getEnvInt("RATE_OTP_VERIFY_LIMIT"); ok {
		c.Rate.OTPVerify.Limit = v
	}
	if v, ok := getEnvStr("RATE_OTP_VERIFY_WINDOW"); ok {
		c.Rate.OTPVerify.Window = v
	}
	if v, ok := getEnvCSV("RATE_WHITELIST"); ok {
		c.Rate.Whitelist = v
	}
	if v, ok := getEnvCSV("RATE_TRUSTED_PROXIES"); ok {
		c.Rate.TrustedProxies = v
	}

	// OTP
	if v, ok := getEnvStr("OTP_SECRET"); ok {
		c.OTP.Secret = v
	}
	if v, ok := getEnvInt("OTP_LENGTH"); ok {
		c.OTP.Length = v
	}
	if v, ok := getEnvDur("OTP_TTL"); ok {
		c.OTP.TTL = v
	}
	if v, ok := getEnvInt("OTP_MAX_ATTEMPTS"); ok {
		c.OTP.MaxAttempts = v
	}
	if v, ok := getEnvDur("OTP_RETENTION"); ok {
		c.OTP.Retention = v
	}
	if v, ok := getEnvDur("OTP_JANITOR_INTERVAL"); ok {
		c.OTP.JanitorInterval = v
	}
	if v, ok := getEnvInt("OTP_BRUTE_FORCE_MAX_FAILURES"); ok {
		c.OTP.BruteForce.MaxFailures = v
	}
	if v, ok := getEnvDur("OTP_BRUTE_FORCE_WINDOW"); ok {
		c.OTP.BruteForce.Window = v
	}
	if v, ok := getEnvDur("OTP_BRUTE_FORCE_LOCKOUT"); ok {
		c.OTP.BruteForce.Lockout = v
	}

	// HOURS
	if v, ok := getEnvStr("HOSTEL_TIMEZONE"); ok {
		c.Hours.Timezone = v
	}
	if v, ok := getEnvInt("HOSTEL_NIGHT_START"); ok {
		c.Hours.NightStart = v
	}
	if v, ok := getEnvInt("HOSTEL_NIGHT_END"); ok {
		c.Hours.NightEnd = v
	}

	if v, ok := getEnvStr("PHONE_COUNTRY_CODE"); ok {
		c.Phone.CountryCode = strings.TrimPrefix(v, "+")
	}

	// NOTIFY
	if v, ok := getEnvBool("NOTIFY_ENABLED"); ok {
		c.Notify.Enabled = v
	}
	if v, ok := getEnvStr("NOTIFY_PUSH_URL"); ok {
		c.Notify.Push.URL = v
	}
	if v, ok := getEnvStr("NOTIFY_PUSH_API_KEY"); ok {
		c.Notify.Push.APIKey = v
	}
	if v, ok := getEnvStr("NOTIFY_SMS_URL"); ok {
		c.Notify.SMS.URL = v
	}
	if v, ok := getEnvStr("NOTIFY_SMS_API_KEY"); ok {
		c.Notify.SMS.APIKey = v
	}
	if v, ok := getEnvStr("NOTIFY_SMS_SENDER"); ok {
		c.Notify.SMS.Sender = v
	}
	if v, ok := getEnvDur("NOTIFY_TIMEOUT"); ok {
		c.Notify.Timeout = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v)
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// EVENTS
	if v, ok := getEnvStr("EVENTS_KIND"); ok {
		c.Events.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("EVENTS_CHANNEL"); ok {
		c.Events.Channel = v
	}
}

// Validate verifica valores críticos. Los secretos son obligatorios en todos los entornos.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case "memory":
	case "postgres", "pg":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}

	if c.Events.Kind != "log" && c.Events.Kind != "redis" {
		errs = append(errs, fmt.Errorf("events.kind %q not supported", c.Events.Kind))
	}
	if c.Events.Kind == "redis" && c.Cache.Kind != "redis" {
		errs = append(errs, errors.New("events.kind=redis requires cache.kind=redis"))
	}

	if len(c.OTP.Secret) < 16 {
		errs = append(errs, errors.New("otp.secret must be at least 16 bytes"))
	}
	if len(c.JWT.Secret) < 16 {
		errs = append(errs, errors.New("jwt.secret must be at least 16 bytes"))
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		errs = append(errs, errors.New("otp.length must be between 4 and 10"))
	}
	if c.OTP.MaxAttempts < 1 {
		errs = append(errs, errors.New("otp.max_attempts must be >= 1"))
	}

	if _, err := time.LoadLocation(c.Hours.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("hours.timezone: %w", err))
	}
	if c.Hours.NightStart < 0 || c.Hours.NightStart > 23 || c.Hours.NightEnd < 0 || c.Hours.NightEnd > 23 {
		errs = append(errs, errors.New("hours.night_start/night_end must be in [0,23]"))
	}

	// validate string durations
	for name, s := range map[string]string{
		"jwt.access_ttl":                     c.JWT.AccessTTL,
		"rate.window":                        c.Rate.Window,
		"rate.otp_request.window":            c.Rate.OTPRequest.Window,
		"rate.otp_verify.window":             c.Rate.OTPVerify.Window,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// Location retorna la zona horaria del hostel. Validate garantiza que carga.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Hours.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProd indica si corre en producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}

// MustDuration parsea una duración ya validada; vacío o inválido => def.
func MustDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
