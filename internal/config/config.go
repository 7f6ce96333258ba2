package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
)

const testJWTSecret = "test_secret_key_minimum_32_characters_long_for_testing_only"

type Config struct {
	AppEnv     string
	LogLevel   string
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string
	JWTExpire time.Duration

	BcryptCost          int
	ResetTokenTTL       time.Duration
	ResetTokenRetention time.Duration
	CleanupInterval     time.Duration
	// ExposeOTPInResponse echoes the generated OTP in the forgot-password
	// response. Development only.
	ExposeOTPInResponse bool

	CORSOrigins []string

	Mail MailConfig

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

type MailConfig struct {
	Driver    string // smtp, ses or log
	Host      string
	Port      string
	User      string
	Password  string
	From      string
	AWSRegion string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtExpire, err := ParseTTL(getEnv("JWT_EXPIRE", "24h"))
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "JWT_EXPIRE").Wrap(err)
	}

	cfg := &Config{
		AppEnv:     getEnv("APP_ENV", "development"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ServerAddr: getEnv("SERVER_ADDR", ":5000"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "haryana_gas_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		JWTSecret:  getEnv("JWT_SECRET", ""),
		JWTExpire:  jwtExpire,
		CORSOrigins: splitList(getEnv("CORS_ORIGINS",
			"http://localhost:3000,https://haryana-gas-forntend.vercel.app")),
		Mail: MailConfig{
			Driver:    getEnv("MAIL_DRIVER", "smtp"),
			Host:      getEnv("EMAIL_HOST", "smtp.gmail.com"),
			Port:      getEnv("EMAIL_PORT", "587"),
			User:      getEnv("EMAIL_USER", ""),
			Password:  getEnv("EMAIL_PASS", ""),
			From:      getEnv("EMAIL_FROM", ""),
			AWSRegion: getEnv("AWS_REGION", "ap-south-1"),
		},
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:5000/api/auth/google/callback"),
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.User
	}

	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = getDuration("RESET_TOKEN_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ResetTokenRetention, err = getDuration("RESET_TOKEN_RETENTION", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getDuration("CLEANUP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.ExposeOTPInResponse, err = getBool("EXPOSE_OTP_IN_RESPONSE", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if err := ValidateJWTSecret(c.JWTSecret); err != nil {
		return err
	}

	required := map[string]string{
		"DB_HOST": c.DBHost,
		"DB_NAME": c.DBName,
		"DB_USER": c.DBUser,
	}
	for key, value := range required {
		if value == "" {
			return oops.Code("CONFIG_INVALID").With("key", key).
				Errorf("required environment variable %s is not set", key)
		}
	}

	// Browsers reject credentialed CORS responses for a wildcard origin.
	if len(c.CORSOrigins) == 0 {
		return oops.Code("CONFIG_INVALID").With("key", "CORS_ORIGINS").
			Errorf("CORS_ORIGINS must list at least one origin")
	}
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return oops.Code("CONFIG_INVALID").With("key", "CORS_ORIGINS").
				Errorf("CORS_ORIGINS cannot be a wildcard, list the allowed origins")
		}
		if !validOrigin(origin) {
			return oops.Code("CONFIG_INVALID").With("key", "CORS_ORIGINS").With("origin", origin).
				Errorf("invalid CORS origin %q, expected scheme://host[:port]", origin)
		}
	}

	switch c.Mail.Driver {
	case "smtp", "ses", "log":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "MAIL_DRIVER").
			Errorf("unsupported mail driver %q", c.Mail.Driver)
	}
	return nil
}

// ValidateJWTSecret rejects empty, short and well-known test secrets.
func ValidateJWTSecret(secret string) error {
	if secret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("JWT_SECRET environment variable is required")
	}
	if len(secret) < 32 {
		return oops.Code("CONFIG_INVALID").
			Errorf("JWT_SECRET must be at least 32 characters long (current: %d)", len(secret))
	}
	if secret == testJWTSecret {
		return oops.Code("CONFIG_INVALID").Errorf("cannot use default test secret in production")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// ParseTTL accepts Go durations ("15m", "24h") plus a day suffix ("7d").
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}
	return d, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := ParseTTL(v)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
	}
	return b, nil
}

// validOrigin accepts scheme://host[:port], optionally with a leading
// "*." subdomain wildcard on the host.
func validOrigin(origin string) bool {
	u, err := url.Parse(strings.Replace(origin, "://*.", "://", 1))
	if err != nil || u.Host == "" || strings.Contains(u.Host, "*") {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return (u.Path == "" || u.Path == "/") && u.RawQuery == "" && u.Fragment == ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
