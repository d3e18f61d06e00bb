// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/Tyrowin/chatrelay/internal/store"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls
// and the optional presence collaborators.
type Config struct {
	Port           string   `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize int64    `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`

	RateLimitBurst          int `envconfig:"RATE_LIMIT_BURST" default:"5"`
	// Seconds.
	RateLimitRefillInterval int `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1"`

	SendBufferSize  int           `envconfig:"SEND_BUFFER_SIZE" default:"256"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"chatrelay"`

	StatusStore     string        `envconfig:"STATUS_STORE" default:"none"`
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	MongoURI        string        `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string        `envconfig:"MONGO_DATABASE" default:"chatrelay"`
	MongoCollection string        `envconfig:"MONGO_COLLECTION" default:"users"`
	NATSURL         string        `envconfig:"NATS_URL"`
	NATSSubject     string        `envconfig:"NATS_SUBJECT" default:"chatrelay.presence"`
	ObserverTimeout time.Duration `envconfig:"OBSERVER_TIMEOUT" default:"5s"`

	RateLimit RateLimitConfig `ignored:"true"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() Config {
	return sanitizeConfig(Config{
		AllowedOrigins: []string{"http://localhost:8080"},
	})
}

// LoadConfig reads envFile (when it exists) into the process environment and
// then builds a Config from environment variables. Unset variables fall back
// to defaults.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "loading %s", envFile)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "reading environment")
	}

	kind, err := store.ParseKind(cfg.StatusStore)
	if err != nil {
		return Config{}, err
	}
	cfg.StatusStore = kind

	return sanitizeConfig(cfg), nil
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}

	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}
	if cfg.RateLimitRefillInterval <= 0 {
		cfg.RateLimitRefillInterval = 1
	}
	cfg.RateLimit = RateLimitConfig{
		Burst:          cfg.RateLimitBurst,
		RefillInterval: time.Duration(cfg.RateLimitRefillInterval) * time.Second,
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ObserverTimeout <= 0 {
		cfg.ObserverTimeout = 5 * time.Second
	}
	if cfg.StatusStore == "" {
		cfg.StatusStore = store.KindNone
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins

	return cfg
}

// AuthEnabled reports whether upgrade requests must carry a token.
func (c Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
