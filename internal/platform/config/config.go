package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	strutil "docdesk/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	JWTIssuer       string
	JWTLeeway       time.Duration
	ShutdownTimeout time.Duration
}

// Database is the PostgreSQL connection. An empty URL selects in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the document cache. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka configures the notification publisher. No brokers selects the log publisher.
type Kafka struct {
	Brokers []string
	Topic   string
}

// S3 configures attachment storage. An empty endpoint selects in-memory blobs.
type S3 struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Config is the full process configuration.
type Config struct {
	Environment      string
	LogLevel         string
	Server           Server
	Database         Database
	Redis            RedisConfig
	Kafka            Kafka
	S3               S3
	DocumentCacheTTL time.Duration
}

// env is the flat view viper decodes into.
type env struct {
	AppEnv            string        `mapstructure:"APP_ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	Addr              string        `mapstructure:"DOCDESK_ADDR"`
	JWTSigningKey     string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer         string        `mapstructure:"JWT_ISSUER"`
	JWTLeeway         time.Duration `mapstructure:"JWT_LEEWAY"`
	ShutdownTimeout   time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	RedisPoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	RedisMinIdle      int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	RedisDialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	RedisReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	RedisWriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
	KafkaBrokers      string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string        `mapstructure:"KAFKA_TOPIC"`
	S3Endpoint        string        `mapstructure:"S3_ENDPOINT"`
	S3Region          string        `mapstructure:"S3_REGION"`
	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	S3AccessKey       string        `mapstructure:"S3_ACCESS_KEY"`
	S3SecretKey       string        `mapstructure:"S3_SECRET_KEY"`
	S3UseSSL          bool          `mapstructure:"S3_USE_SSL"`
	DocumentCacheTTL  time.Duration `mapstructure:"DOCUMENT_CACHE_TTL"`
}

var defaults = map[string]any{
	"APP_ENV":              "development",
	"LOG_LEVEL":            "info",
	"DOCDESK_ADDR":         ":8080",
	"JWT_SIGNING_KEY":      "",
	"JWT_ISSUER":           "",
	"JWT_LEEWAY":           "30s",
	"SHUTDOWN_TIMEOUT":     "15s",
	"DATABASE_URL":         "",
	"DB_MAX_OPEN_CONNS":    25,
	"DB_MAX_IDLE_CONNS":    5,
	"REDIS_URL":            "",
	"REDIS_POOL_SIZE":      10,
	"REDIS_MIN_IDLE_CONNS": 2,
	"REDIS_DIAL_TIMEOUT":   "5s",
	"REDIS_READ_TIMEOUT":   "3s",
	"REDIS_WRITE_TIMEOUT":  "3s",
	"KAFKA_BROKERS":        "",
	"KAFKA_TOPIC":          "docdesk.application-events",
	"S3_ENDPOINT":          "",
	"S3_REGION":            "us-east-1",
	"S3_BUCKET":            "docdesk-attachments",
	"S3_ACCESS_KEY":        "",
	"S3_SECRET_KEY":        "",
	"S3_USE_SSL":           false,
	"DOCUMENT_CACHE_TTL":   "5m",
}

// Load reads configuration from the environment, after loading a local .env
// file when one exists.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.New("failed to load .env")
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var e env
	if err := v.Unmarshal(&e); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg := e.toConfig()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (e env) toConfig() *Config {
	signingKey := e.JWTSigningKey
	if signingKey == "" && e.AppEnv != "production" {
		// Use a default for development - must be overridden in production
		signingKey = "dev-secret-key-change-in-production"
	}
	return &Config{
		Environment: e.AppEnv,
		LogLevel:    e.LogLevel,
		Server: Server{
			Addr:            e.Addr,
			JWTSigningKey:   signingKey,
			JWTIssuer:       e.JWTIssuer,
			JWTLeeway:       e.JWTLeeway,
			ShutdownTimeout: e.ShutdownTimeout,
		},
		Database: Database{
			URL:          e.DatabaseURL,
			MaxOpenConns: e.DBMaxOpenConns,
			MaxIdleConns: e.DBMaxIdleConns,
		},
		Redis: RedisConfig{
			URL:          e.RedisURL,
			PoolSize:     e.RedisPoolSize,
			MinIdleConns: e.RedisMinIdle,
			DialTimeout:  e.RedisDialTimeout,
			ReadTimeout:  e.RedisReadTimeout,
			WriteTimeout: e.RedisWriteTimeout,
		},
		Kafka: Kafka{
			Brokers: strutil.SplitList(e.KafkaBrokers),
			Topic:   e.KafkaTopic,
		},
		S3: S3{
			Endpoint:  e.S3Endpoint,
			Region:    e.S3Region,
			Bucket:    e.S3Bucket,
			AccessKey: e.S3AccessKey,
			SecretKey: e.S3SecretKey,
			UseSSL:    e.S3UseSSL,
		},
		DocumentCacheTTL: e.DocumentCacheTTL,
	}
}

func (c *Config) validate() error {
	if c.Server.JWTSigningKey == "" {
		return errors.New("JWT_SIGNING_KEY is required in production")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return errors.New("S3_BUCKET is required when S3_ENDPOINT is set")
	}
	return nil
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "env=%s addr=%s log_level=%s", c.Environment, c.Server.Addr, c.LogLevel)
	fmt.Fprintf(&sb, " postgres=%t redis=%t kafka=%v s3=%s", c.Database.URL != "", c.Redis.URL != "", c.Kafka.Brokers, c.S3.Endpoint)
	return sb.String()
}
