// Package config validates and loads the process-wide environment
// configuration recognized by the signaling backend.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// TurnServer is a single TURN relay credential set, as returned verbatim by
// the ice-servers endpoint.
type TurnServer struct {
	URLs       string `json:"urls"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

// Config holds validated environment configuration.
type Config struct {
	// Required variables
	SecretKey string
	Port      string

	// Token signing
	Algorithm          string
	AccessTokenExpMins int

	// Optional OIDC/JWKS mode. When set, the HS256 verifier is replaced by a
	// JWKS-backed one.
	Auth0Domain   string
	Auth0Audience string
	SkipAuth      bool

	// Optional variables with defaults
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// KV store (Redis)
	KVURL        string
	RedisEnabled bool

	// Uploads
	MaxFileSize     int64
	UploadDirectory string

	// WebRTC ICE configuration
	StunServers        []string
	TurnServers        []TurnServer
	MaxParticipantsDef int

	// Rate limits (ulule/limiter formatted rates, e.g. "100-M")
	RateLimitAPIGlobal   string
	RateLimitAPIPublic   string
	RateLimitAPIRooms    string
	RateLimitAPIMessages string
	RateLimitWsIP        string
	RateLimitWsUser      string
}

// ValidateEnv validates all required environment variables and returns a
// Config object. Returns an error if any required variable is missing or
// invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Required: SECRET_KEY (minimum 32 characters)
	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		errs = append(errs, "SECRET_KEY is required")
	} else if len(cfg.SecretKey) < 32 {
		errs = append(errs, fmt.Sprintf("SECRET_KEY must be at least 32 characters (got %d)", len(cfg.SecretKey)))
	}

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.Algorithm = getEnvOrDefault("ALGORITHM", "HS256")

	expMins, err := strconv.Atoi(getEnvOrDefault("ACCESS_TOKEN_EXP_MINS", "30"))
	if err != nil || expMins < 1 {
		errs = append(errs, fmt.Sprintf("ACCESS_TOKEN_EXP_MINS must be a positive integer (got '%s')", os.Getenv("ACCESS_TOKEN_EXP_MINS")))
	}
	cfg.AccessTokenExpMins = expMins

	// Conditional: KV_URL (Redis address). Absence degrades to the
	// in-process, non-durable MemoryStore rather than a hard failure (§7
	// Persistence failure).
	cfg.KVURL = os.Getenv("KV_URL")
	cfg.RedisEnabled = cfg.KVURL != ""
	if !cfg.RedisEnabled {
		slog.Warn("KV_URL not set, running without durable storage")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"

	maxFileSize, err := strconv.ParseInt(getEnvOrDefault("MAX_FILE_SIZE", fmt.Sprint(10*1024*1024)), 10, 64)
	if err != nil || maxFileSize < 1 {
		errs = append(errs, fmt.Sprintf("MAX_FILE_SIZE must be a positive integer (got '%s')", os.Getenv("MAX_FILE_SIZE")))
	}
	cfg.MaxFileSize = maxFileSize
	cfg.UploadDirectory = getEnvOrDefault("UPLOAD_DIRECTORY", "uploads")

	cfg.StunServers = splitCSVOrDefault("STUN_SERVERS", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun1.l.google.com:19302",
	})

	if raw := os.Getenv("TURN_SERVERS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.TurnServers); err != nil {
			errs = append(errs, fmt.Sprintf("TURN_SERVERS must be a JSON array of {urls,username,credential} (%v)", err))
		}
	}

	maxParticipants, err := strconv.Atoi(getEnvOrDefault("MAX_PARTICIPANTS_DEFAULT", "10"))
	if err != nil || maxParticipants < 1 {
		errs = append(errs, fmt.Sprintf("MAX_PARTICIPANTS_DEFAULT must be a positive integer (got '%s')", os.Getenv("MAX_PARTICIPANTS_DEFAULT")))
	}
	cfg.MaxParticipantsDef = maxParticipants

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPIPublic = getEnvOrDefault("RATE_LIMIT_API_PUBLIC", "100-M")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitAPIMessages = getEnvOrDefault("RATE_LIMIT_API_MESSAGES", "500-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func logValidatedConfig(cfg *Config) {
	slog.Info("✅ environment configuration validated successfully")
	slog.Info("configuration",
		"secret_key", redactSecret(cfg.SecretKey),
		"algorithm", cfg.Algorithm,
		"port", cfg.Port,
		"kv_enabled", cfg.RedisEnabled,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"max_participants_default", cfg.MaxParticipantsDef,
		"rate_limit_api_global", cfg.RateLimitAPIGlobal,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitCSVOrDefault(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// redactSecret redacts a secret by showing only the first 8 characters.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
