package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Mailjet  MailjetConfig
	Redis    RedisConfig
	Brain    BrainConfig
	Tracing  TracingConfig
}

type MailjetConfig struct {
	MailjetBaseUrl           string
	MailjetBasicAuthUsername string
	MailjetBasicAuthPassword string
	MailjetSenderEmail       string
	MailjetSenderName        string
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

type TracingConfig struct {
	OTLPEndpoint string
}

// BrainConfig tunes the decision engine pipeline. Scoring constants are
// heuristics, so every one of them can be overridden from the environment.
type BrainConfig struct {
	StateTTL    time.Duration
	HomepageTTL time.Duration

	EventWorkers     int
	EventQueueSize   int
	RefreshWorkers   int
	RefreshQueueSize int
	JobTimeout       time.Duration

	ActivityWindowDays int
	SignalWindowDays   int
	RecencyWindowDays  int

	PriceHighRatio float64
	PriceLowRatio  float64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Platform Brain"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "platform_brain"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Mailjet: MailjetConfig{
			MailjetBaseUrl:           getEnv("MAILJET_BASE_URL", ""),
			MailjetBasicAuthUsername: getEnv("MAILJET_BASIC_AUTH_USERNAME", ""),
			MailjetBasicAuthPassword: getEnv("MAILJET_BASIC_AUTH_PASSWORD", ""),
			MailjetSenderEmail:       getEnv("MAILJET_SENDER_EMAIL", ""),
			MailjetSenderName:        getEnv("MAILJET_SENDER_NAME", ""),
		},
		Redis: RedisConfig{
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Brain: BrainConfig{
			StateTTL:           getEnvDuration("BRAIN_STATE_TTL", 10*time.Minute),
			HomepageTTL:        getEnvDuration("BRAIN_HOMEPAGE_TTL", 24*time.Hour),
			EventWorkers:       getEnvInt("BRAIN_EVENT_WORKERS", 4),
			EventQueueSize:     getEnvInt("BRAIN_EVENT_QUEUE_SIZE", 1024),
			RefreshWorkers:     getEnvInt("BRAIN_REFRESH_WORKERS", 2),
			RefreshQueueSize:   getEnvInt("BRAIN_REFRESH_QUEUE_SIZE", 1024),
			JobTimeout:         getEnvDuration("BRAIN_JOB_TIMEOUT", 10*time.Second),
			ActivityWindowDays: getEnvInt("BRAIN_ACTIVITY_WINDOW_DAYS", 30),
			SignalWindowDays:   getEnvInt("BRAIN_SIGNAL_WINDOW_DAYS", 90),
			RecencyWindowDays:  getEnvInt("BRAIN_RECENCY_WINDOW_DAYS", 7),
			PriceHighRatio:     getEnvFloat("BRAIN_PRICE_HIGH_RATIO", 1.2),
			PriceLowRatio:      getEnvFloat("BRAIN_PRICE_LOW_RATIO", 0.8),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if cfg.Brain.PriceLowRatio >= cfg.Brain.PriceHighRatio {
		return nil, errors.New("BRAIN_PRICE_LOW_RATIO must be lower than BRAIN_PRICE_HIGH_RATIO")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}

	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}

	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}

	return defaultVal
}
