package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/unclebandit/koya-caller/internal/model"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// AMQPURL switches outcome events from the in-process queue to RabbitMQ.
	AMQPURL string `env:"AMQP_URL"`

	CronSecret    string `env:"CRON_SECRET"`
	WebhookSecret string `env:"VOICE_WEBHOOK_SECRET"`

	VoiceProvider string        `env:"VOICE_PROVIDER" envDefault:"log"`
	VoiceAPIURL   string        `env:"VOICE_API_URL" envDefault:"https://api.retellai.com"`
	VoiceAPIKey   string        `env:"VOICE_API_KEY"`
	VoiceTimeout  time.Duration `env:"VOICE_TIMEOUT" envDefault:"10s"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	ConsentFailOpen bool `env:"CONSENT_FAIL_OPEN" envDefault:"false"`

	QueueBatchSize    int           `env:"QUEUE_BATCH_SIZE" envDefault:"10"`
	ProcessInterval   time.Duration `env:"PROCESS_INTERVAL" envDefault:"1m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"15m"`
	ReminderInterval  time.Duration `env:"REMINDER_INTERVAL" envDefault:"15m"`
	RecoveryInterval  time.Duration `env:"RECOVERY_INTERVAL" envDefault:"2m"`
	StaleAfter        time.Duration `env:"STALE_CALLING_AFTER" envDefault:"10m"`
	LockTTL           time.Duration `env:"JOB_LOCK_TTL" envDefault:"5m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	OtelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE"`

	OutboundDefaultsFile string `env:"OUTBOUND_DEFAULTS_FILE"`
	OutboundDefaults     OutboundDefaults
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		return c, errors.Wrap(err, "parse env")
	}
	defaults, err := LoadOutboundDefaults(c.OutboundDefaultsFile)
	if err != nil {
		return c, err
	}
	c.OutboundDefaults = defaults
	return c, nil
}

// DSN prefers DATABASE_URL and falls back to the DB_* parts.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// OutboundDefaults are the values a tenant gets before saving its own settings.
type OutboundDefaults struct {
	DailyCallLimit int    `yaml:"daily_call_limit"`
	HoursStart     string `yaml:"hours_start"`
	HoursEnd       string `yaml:"hours_end"`
	AllowedDays    []int  `yaml:"allowed_days"`
	// Timezone pins new tenants to a zone. Empty follows the business timezone.
	Timezone       string `yaml:"timezone"`
	MaxAttempts    int    `yaml:"max_attempts"`
}

func builtinDefaults() OutboundDefaults {
	s := model.DefaultOutboundSettings("")
	return OutboundDefaults{
		DailyCallLimit: s.DailyCallLimit,
		HoursStart:     s.HoursStart,
		HoursEnd:       s.HoursEnd,
		AllowedDays:    s.AllowedDays,
		MaxAttempts:    model.DefaultMaxAttempts,
	}
}

// LoadOutboundDefaults overlays the YAML file at path onto the built-in
// defaults. An empty path returns the built-ins.
func LoadOutboundDefaults(path string) (OutboundDefaults, error) {
	d := builtinDefaults()
	if path == "" {
		return d, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, errors.Wrapf(err, "read outbound defaults %s", path)
	}
	var file OutboundDefaults
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return d, errors.Wrapf(err, "parse outbound defaults %s", path)
	}

	if file.DailyCallLimit > 0 {
		d.DailyCallLimit = file.DailyCallLimit
	}
	if file.HoursStart != "" {
		d.HoursStart = file.HoursStart
	}
	if file.HoursEnd != "" {
		d.HoursEnd = file.HoursEnd
	}
	if len(file.AllowedDays) > 0 {
		d.AllowedDays = file.AllowedDays
	}
	if file.Timezone != "" {
		if _, err := time.LoadLocation(file.Timezone); err != nil {
			return d, errors.Wrapf(err, "outbound defaults timezone %q", file.Timezone)
		}
		d.Timezone = file.Timezone
	}
	if file.MaxAttempts > 0 {
		d.MaxAttempts = file.MaxAttempts
	}
	return d, nil
}

// Settings builds the settings row a tenant starts with.
func (d OutboundDefaults) Settings(tenantID string) model.OutboundSettings {
	s := model.DefaultOutboundSettings(tenantID)
	s.DailyCallLimit = d.DailyCallLimit
	s.HoursStart = d.HoursStart
	s.HoursEnd = d.HoursEnd
	s.AllowedDays = append([]int(nil), d.AllowedDays...)
	s.Timezone = d.Timezone
	return s
}
