package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// GatewayConfig captures all tunable parameters for the form gateway
// process. Values are primarily loaded from environment variables with sane
// defaults so the binary can run locally without excessive setup.
type GatewayConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Upstream Carnest API that owns rides and accounts.
	APIBaseURL string

	// Forward geocoder backing the location search fields.
	GeocoderURL     string
	GeocodeCacheTTL time.Duration
	GeocodeLimit    int

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	// How long the success notice stays visible before auto-dismissing.
	FeedbackTTL time.Duration

	SessionTTL      time.Duration
	VehicleCacheTTL time.Duration

	LogLevel      string
	RunMigrations bool
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		APIBaseURL:      "http://localhost:8000",
		GeocoderURL:     "https://photon.komoot.io",
		GeocodeCacheTTL: 10 * time.Minute,
		GeocodeLimit:    5,
		KafkaTopic:      "ride-posts",
		FeedbackTTL:     6 * time.Second,
		SessionTTL:      30 * time.Minute,
		VehicleCacheTTL: 5 * time.Minute,
		LogLevel:        "info",
	}
}

func LoadGatewayConfig() (GatewayConfig, error) {
	cfg := defaultGatewayConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.APIBaseURL, "CARNEST_API_URL")
	setStringFromEnv(&cfg.GeocoderURL, "GEOCODER_URL")
	setDurationFromEnv(&cfg.GeocodeCacheTTL, "GEOCODE_CACHE_TTL", &errs)
	setIntFromEnv(&cfg.GeocodeLimit, "GEOCODE_LIMIT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setDurationFromEnv(&cfg.FeedbackTTL, "FEEDBACK_TTL", &errs)
	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)
	setDurationFromEnv(&cfg.VehicleCacheTTL, "VEHICLE_CACHE_TTL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.APIBaseURL == "" {
		errs = append(errs, fmt.Errorf("CARNEST_API_URL must not be empty"))
	}
	if cfg.FeedbackTTL <= 0 {
		errs = append(errs, fmt.Errorf("FEEDBACK_TTL must be > 0"))
	}
	if cfg.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be > 0"))
	}
	if cfg.GeocodeLimit <= 0 {
		errs = append(errs, fmt.Errorf("GEOCODE_LIMIT must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
