package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
	SNSRegion    string

	OtpLength       int
	OtpTTL          time.Duration
	OtpMaxAttempts  int
	OtpResendDelay  time.Duration
	OtpRetention    time.Duration
	RegistrationTTL time.Duration
	ResetFlowTTL    time.Duration

	MaxLoginAttempts int
	LockoutDuration  time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users              string
	Sessions           string
	OtpCodes           string
	RegistrationFlows  string
	PasswordResetFlows string
	LoginAttempts      string
	RevokedTokens      string
}

// IsProduction reports whether the service runs in production mode.
// In production a failed OTP email is surfaced to the caller instead of logged.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:              getEnv("DYNAMO_TABLE_USERS", "users"),
			Sessions:           getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			OtpCodes:           getEnv("DYNAMO_TABLE_OTP_CODES", "otp_codes"),
			RegistrationFlows:  getEnv("DYNAMO_TABLE_REGISTRATION_FLOWS", "registration_flows"),
			PasswordResetFlows: getEnv("DYNAMO_TABLE_PASSWORD_RESET_FLOWS", "password_reset_flows"),
			LoginAttempts:      getEnv("DYNAMO_TABLE_LOGIN_ATTEMPTS", "login_attempts"),
			RevokedTokens:      getEnv("DYNAMO_TABLE_REVOKED_TOKENS", "revoked_tokens"),
		},

		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", "dev-access-secret"),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", "dev-refresh-secret"),
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvInt("SMTP_PORT", 1025),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@qubdrive.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SNSRegion:    getEnv("SNS_REGION", "us-east-1"),

		OtpLength:       getEnvInt("OTP_LENGTH", 6),
		OtpTTL:          getEnvDuration("OTP_TTL", 10*time.Minute),
		OtpMaxAttempts:  getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OtpResendDelay:  getEnvDuration("OTP_RESEND_DELAY", 60*time.Second),
		OtpRetention:    getEnvDuration("OTP_RETENTION", 24*time.Hour),
		RegistrationTTL: getEnvDuration("REGISTRATION_FLOW_TTL", 24*time.Hour),
		ResetFlowTTL:    getEnvDuration("PASSWORD_RESET_FLOW_TTL", time.Hour),

		MaxLoginAttempts: getEnvInt("MAX_LOGIN_ATTEMPTS", 5),
		LockoutDuration:  getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
