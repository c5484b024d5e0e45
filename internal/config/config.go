package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Preference store and per-visitor controllers
	PrefsTTL          time.Duration
	PrefsDynamoTable  string
	ControllerIdleTTL time.Duration
	NotificationLimit int
	VisitorCookie     string

	// Payment gateway proxy
	PaymentBaseURL string
	PaymentAPIKey  string
	PaymentTimeout time.Duration

	// Initialize attempts allowed per visitor per window; 0 disables the check
	PaymentMaxAttempts   int
	PaymentAttemptWindow time.Duration

	// Admin access
	AdminJWTSecret    string
	AdminEmail        string
	AdminPasswordHash string
	AdminTokenTTL     time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// Operator notifications
	OperatorEmail     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		PrefsTTL:          getEnvAsDuration("PREFS_TTL", 0),
		PrefsDynamoTable:  getEnv("PREFS_DYNAMO_TABLE", ""),
		ControllerIdleTTL: getEnvAsDuration("CONTROLLER_IDLE_TTL", 30*time.Minute),
		NotificationLimit: getEnvAsInt("NOTIFICATION_LIMIT", 50),
		VisitorCookie:     getEnv("VISITOR_COOKIE", "vv_visitor"),

		PaymentBaseURL: getEnv("PAYMENT_BASE_URL", ""),
		PaymentAPIKey:  getEnv("PAYMENT_API_KEY", ""),
		PaymentTimeout: getEnvAsDuration("PAYMENT_TIMEOUT", 10*time.Second),

		PaymentMaxAttempts:   getEnvAsInt("PAYMENT_MAX_ATTEMPTS", 5),
		PaymentAttemptWindow: getEnvAsDuration("PAYMENT_ATTEMPT_WINDOW", time.Hour),

		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		AdminEmail:        strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminTokenTTL:     getEnvAsDuration("ADMIN_TOKEN_TTL", 12*time.Hour),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		OperatorEmail:     getEnv("OPERATOR_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Vocal Vent"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(c.Env))
	return env == "" || env == "development" || env == "dev" || env == "local"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
