package config

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSecretKey is the development signing secret. It is rejected when Env is "prod".
const DefaultSecretKey = "your-secret-key-change-in-production"

type Config struct {
	// SecretKey signs access tokens (HS256).
	SecretKey string
	// AccessTokenExpireMinutes is the token lifetime and the cookie max-age (default 1440).
	AccessTokenExpireMinutes int

	// SecureCookies sets the Secure flag on the auth and CSRF cookies (HTTPS only).
	SecureCookies bool
	// CSRFSecretKey keys the CSRF cookie codec. Defaults to SecretKey.
	CSRFSecretKey string

	Host string
	Port string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	AppName string

	// LogLevel is DEBUG, INFO, WARNING, ERROR or CRITICAL (upper-cased on load).
	LogLevel string
	// LogFormat is "default" (text) or "json".
	LogFormat string
	// LogFile is the rotating log file path. Empty disables file logging.
	LogFile string

	// DatabaseURL is sqlite:///<relative path>, sqlite:////<absolute path> or postgres://...
	DatabaseURL string
	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	ServeStaticFiles bool
	MetricsEnabled   bool

	// CORSAllowedOrigins is a list of origins allowed for CORS. Empty means same-origin only.
	CORSAllowedOrigins []string

	// Env is "dev" (default) or "prod". When "prod", SECRET_KEY must not be the default.
	Env string
}

// Load reads configuration from the environment, after merging a .env file from the
// working directory if one exists. Variables already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	secret := getEnv("SECRET_KEY", DefaultSecretKey)
	cfg := Config{
		SecretKey:                secret,
		AccessTokenExpireMinutes: getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 1440),

		SecureCookies: getEnvBool("SECURE_COOKIES", false),
		CSRFSecretKey: getEnv("CSRF_SECRET_KEY", secret),

		Host: getEnv("HOST", "0.0.0.0"),
		Port: getEnv("PORT", "8000"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		AppName: getEnv("APP_NAME", "Ad Hoc Web UI"),

		LogLevel:  strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "default")),
		LogFile:   os.ExpandEnv(getEnvAllowEmpty("LOG_FILE", "logs/app.log")),

		DatabaseURL:    getEnv("DATABASE_URL", "sqlite:///./adhoc_users.db"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		ServeStaticFiles: getEnvBool("SERVE_STATIC_FILES", true),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),

		Env: strings.ToLower(getEnv("ENV", "dev")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY must not be empty")
	}
	if c.Env == "prod" && c.SecretKey == DefaultSecretKey {
		return errors.New("SECRET_KEY must be set in prod")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.New("invalid PORT: " + c.Port)
	}
	switch c.LogFormat {
	case "default", "json":
	default:
		return errors.New("LOG_FORMAT must be default or json")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// TokenTTL is the access token lifetime.
func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// Addr is the listen address built from Host and Port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// TLSEnabled reports whether both certificate and key are configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty distinguishes an unset variable from one explicitly set to "".
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
