package internal

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"

	PINHashBcrypt = "bcrypt"
	PINHashDigest = "digest"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	StaticDir         string        `mapstructure:"static_dir"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`

	// TrustedProxies lists the peers (IPs or CIDRs) whose forwarding headers
	// are believed. Empty means the TCP peer is always the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Source          string        `mapstructure:"source"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	SessionDuration    time.Duration `mapstructure:"session_duration"`
	SecureCookie       bool          `mapstructure:"secure_cookie"`
	PINHashScheme      string        `mapstructure:"pin_hash_scheme"`
	BCryptCost         int           `mapstructure:"bcrypt_cost"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute"`
	LoginBurst         int           `mapstructure:"login_burst"`

	// PINLookupKey keys the PIN lookup index. Empty falls back to JWTSecret.
	PINLookupKey string `mapstructure:"pin_lookup_key"`
}

type AuditConfig struct {
	MaxEntries        int `mapstructure:"max_entries"`
	MaxAccessEntries  int `mapstructure:"max_access_entries"`
	MaxSecurityEvents int `mapstructure:"max_security_events"`

	// TrimSchedule is a cron expression for the background retention job.
	// Empty disables it.
	TrimSchedule string `mapstructure:"trim_schedule"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- DEFAULTS -----------------

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./web"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.SessionDuration == 0 {
		c.Security.SessionDuration = 7 * 24 * time.Hour
	}
	if c.Security.PINHashScheme == "" {
		c.Security.PINHashScheme = PINHashBcrypt
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 10
	}
	if c.Security.LoginRatePerMinute == 0 {
		c.Security.LoginRatePerMinute = 10
	}
	if c.Security.LoginBurst == 0 {
		c.Security.LoginBurst = 5
	}
	if c.Audit.MaxEntries == 0 {
		c.Audit.MaxEntries = 50000
	}
	if c.Audit.MaxAccessEntries == 0 {
		c.Audit.MaxAccessEntries = 10000
	}
	if c.Audit.MaxSecurityEvents == 0 {
		c.Audit.MaxSecurityEvents = 10000
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LoadConfigFromEnv builds the configuration for container deployments.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),
		Server: ServerConfig{
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			StaticDir:         getEnv("STATIC_DIR", "./web"),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			TrustedProxies:    getEnvAsList("TRUSTED_PROXIES"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", DriverPostgres),
			Source:          getEnv("DB_SOURCE", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			JWTSecret:          getEnv("JWT_SECRET", ""),
			SessionDuration:    getEnvAsDuration("SESSION_DURATION", 7*24*time.Hour),
			SecureCookie:       getEnv("SECURE_COOKIE", "true") == "true",
			PINHashScheme:      getEnv("PIN_HASH_SCHEME", PINHashBcrypt),
			BCryptCost:         getEnvAsInt("BCRYPT_COST", 10),
			LoginRatePerMinute: getEnvAsInt("LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:         getEnvAsInt("LOGIN_BURST", 5),
			PINLookupKey:       getEnv("PIN_LOOKUP_KEY", ""),
		},
		Audit: AuditConfig{
			MaxEntries:        getEnvAsInt("AUDIT_MAX_ENTRIES", 50000),
			MaxAccessEntries:  getEnvAsInt("AUDIT_MAX_ACCESS_ENTRIES", 10000),
			MaxSecurityEvents: getEnvAsInt("AUDIT_MAX_SECURITY_EVENTS", 10000),
			TrimSchedule:      getEnv("AUDIT_TRIM_SCHEDULE", "@hourly"),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Audit.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("audit config: %v", err))
	}

	if err := c.Observability.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	if _, err := ParseTrustedProxies(c.TrustedProxies); err != nil {
		return err
	}
	return nil
}

// ParseTrustedProxies turns IPs and CIDRs into prefixes. A bare IP becomes a
// single-address prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %s: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %s: %w", e, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Source == "" {
			return fmt.Errorf("source is required for driver %s", c.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.SessionDuration <= 0 {
		return errors.New("session_duration must be positive")
	}
	switch c.PINHashScheme {
	case PINHashBcrypt:
		if c.BCryptCost < 4 || c.BCryptCost > 15 {
			return errors.New("bcrypt_cost must be between 4 and 15")
		}
	case PINHashDigest:
	default:
		return fmt.Errorf("unsupported pin_hash_scheme %q", c.PINHashScheme)
	}
	if c.LoginRatePerMinute < 0 || c.LoginBurst < 0 {
		return errors.New("login rate settings cannot be negative")
	}
	return nil
}

func (c *AuditConfig) Validate() error {
	if c.MaxEntries <= 0 || c.MaxAccessEntries <= 0 || c.MaxSecurityEvents <= 0 {
		return errors.New("retention caps must be positive")
	}
	if c.TrimSchedule != "" {
		if _, err := cron.ParseStandard(c.TrimSchedule); err != nil {
			return fmt.Errorf("invalid trim_schedule: %w", err)
		}
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}
