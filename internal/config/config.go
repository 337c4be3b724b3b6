package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Queue drivers understood by the transport layer.
const (
	QueueDriverRedis = "redis"
	QueueDriverKafka = "kafka"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Queue    QueueConfig
	Outbox   OutboxConfig
	Mail     MailConfig
	Seed     SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior. File is optional; when set, logs
// are also written to a rotating file.
type LoggerConfig struct {
	Level      string
	Encoding   string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// QueueConfig selects and tunes the notification event transport.
type QueueConfig struct {
	Driver         string
	Name           string
	Group          string
	Consumer       string
	MaxRetries     int
	RetryInitialMS int
	KafkaBrokers   []string
}

// OutboxConfig tunes the outbox relay.
type OutboxConfig struct {
	PollIntervalMS int
	BatchSize      int
}

// MailConfig holds SMTP settings.
type MailConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Secure      bool
	User        string
	Password    string
	From        string
	TemplateDir string
}

// SeedConfig holds bootstrap credentials for the seed command.
type SeedConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "itsm-ticketing-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("APP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Encoding:   getEnv("LOG_ENCODING", "json"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 10),
		},
		Queue: QueueConfig{
			Driver:         strings.ToLower(getEnv("QUEUE_DRIVER", QueueDriverRedis)),
			Name:           getEnv("QUEUE_NAME", "ticket-notifications"),
			Group:          getEnv("QUEUE_GROUP", "notification-fanout"),
			Consumer:       getEnv("QUEUE_CONSUMER", hostname),
			MaxRetries:     getEnvAsInt("QUEUE_MAX_RETRIES", 3),
			RetryInitialMS: getEnvAsInt("QUEUE_RETRY_INITIAL_MS", 500),
			KafkaBrokers:   getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		},
		Outbox: OutboxConfig{
			PollIntervalMS: getEnvAsInt("OUTBOX_POLL_INTERVAL_MS", 1000),
			BatchSize:      getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		},
		Mail: MailConfig{
			Enabled:     getEnvAsBool("MAIL_ENABLED", true),
			Host:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:        getEnvAsInt("SMTP_PORT", 587),
			Secure:      getEnvAsBool("SMTP_SECURE", false),
			User:        os.Getenv("SMTP_USER"),
			Password:    os.Getenv("SMTP_PASS"),
			From:        getEnv("SMTP_FROM", "noreply@itsm.com"),
			TemplateDir: os.Getenv("MAIL_TEMPLATE_DIR"),
		},
		Seed: SeedConfig{
			SuperAdminEmail:    getEnv("SEED_SUPER_ADMIN_EMAIL", "superadmin@itsm.com"),
			SuperAdminPassword: getEnv("SEED_SUPER_ADMIN_PASSWORD", "SuperAdmin@123"),
			SuperAdminName:     getEnv("SEED_SUPER_ADMIN_NAME", "Super Admin"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Queue.Driver {
	case QueueDriverRedis, QueueDriverKafka:
	default:
		return fmt.Errorf("invalid QUEUE_DRIVER %q", c.Queue.Driver)
	}
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("invalid QUEUE_MAX_RETRIES %d", c.Queue.MaxRetries)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// PollInterval returns the relay poll period.
func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

// RetryInitial returns the first backoff delay of the consumer.
func (q QueueConfig) RetryInitial() time.Duration {
	return time.Duration(q.RetryInitialMS) * time.Millisecond
}

// DeadLetterName is the queue holding messages that could not be processed.
func (q QueueConfig) DeadLetterName() string {
	return q.Name + ".dlq"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsSlice(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
