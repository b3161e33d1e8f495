package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minJWTSecretLen = 32

type Config struct {
	Env  string
	Port int

	// storage
	Store      string
	DBURL      string
	DBMaxConns int32

	// session tokens
	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	JWTTTLMinutes int

	// identity provider
	GoogleClientID      string
	GoogleIssuerURL     string
	IdentityHTTPTimeout time.Duration

	// profile cache
	ProfileCache    string
	ProfileCacheTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// http
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	// tracing
	OTelEndpoint    string
	OTelServiceName string
	OTelSampleRatio float64
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables always win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		Store:      strings.ToLower(getEnv("STORE", "postgres")),
		DBURL:      buildDBURL(),
		DBMaxConns: int32(getEnvInt("DB_MAX_CONNS", 5)),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     getEnv("JWT_ISSUER", "profilehub"),
		JWTAudience:   getEnv("JWT_AUDIENCE", "profilehub-clients"),
		JWTTTLMinutes: getEnvInt("JWT_TTL_MINUTES", 30),

		GoogleClientID:      os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuerURL:     getEnv("GOOGLE_ISSUER_URL", "https://accounts.google.com"),
		IdentityHTTPTimeout: time.Duration(getEnvInt("IDENTITY_HTTP_TIMEOUT_SECONDS", 10)) * time.Second,

		ProfileCache:    strings.ToLower(getEnv("PROFILE_CACHE", "none")),
		ProfileCacheTTL: time.Duration(getEnvInt("PROFILE_CACHE_TTL_SECONDS", 30)) * time.Second,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),

		OTelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "profilehub"),
		OTelSampleRatio: getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1),
	}
}

// Validate reports every setting the service cannot start without.
func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen))
	}
	if c.JWTIssuer == "" || c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_ISSUER and JWT_AUDIENCE must be set"))
	}
	if c.JWTTTLMinutes <= 0 {
		errs = append(errs, errors.New("JWT_TTL_MINUTES must be positive"))
	}
	if c.GoogleClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID must be set"))
	}

	switch c.Store {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE must be postgres or memory, got %q", c.Store))
	}

	switch c.ProfileCache {
	case "none", "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set when PROFILE_CACHE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("PROFILE_CACHE must be none, memory or redis, got %q", c.ProfileCache))
	}

	return errors.Join(errs...)
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

func buildDBURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "profilehub")
	pass := getEnv("DB_PASSWORD", "profilehub")
	name := getEnv("DB_NAME", "profilehub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Warn("invalid integer in environment, using default", "key", key, "value", v, "default", fallback)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number in environment, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0, 4)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
