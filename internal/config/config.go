package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	JWTSecret            string   `mapstructure:"JWT_SECRET"`
	LockBackend          string   `mapstructure:"LOCK_BACKEND"`
	LockWaitSeconds      int      `mapstructure:"LOCK_WAIT_SECONDS"`
	LockLeaseSeconds     int      `mapstructure:"LOCK_LEASE_SECONDS"`
	CancelCutoffHours    int      `mapstructure:"CANCEL_CUTOFF_HOURS"`
	ImmediateLeadMinutes int      `mapstructure:"IMMEDIATE_LEAD_MINUTES"`
	RateLimitRPS         float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int      `mapstructure:"RATE_LIMIT_BURST"`
	WindowCacheTTLSecs   int      `mapstructure:"WINDOW_CACHE_TTL_SECONDS"`
	AMQPURL              string   `mapstructure:"AMQP_URL"`
	AMQPQueue            string   `mapstructure:"AMQP_QUEUE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOCK_BACKEND", "advisory")
	v.SetDefault("LOCK_WAIT_SECONDS", 10)
	v.SetDefault("LOCK_LEASE_SECONDS", 30)
	v.SetDefault("CANCEL_CUTOFF_HOURS", 2)
	v.SetDefault("IMMEDIATE_LEAD_MINUTES", 15)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("WINDOW_CACHE_TTL_SECONDS", 60)
	v.SetDefault("AMQP_QUEUE", "crisisintel.notifications")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("LOCK_BACKEND")
	v.BindEnv("LOCK_WAIT_SECONDS")
	v.BindEnv("LOCK_LEASE_SECONDS")
	v.BindEnv("CANCEL_CUTOFF_HOURS")
	v.BindEnv("IMMEDIATE_LEAD_MINUTES")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("WINDOW_CACHE_TTL_SECONDS")
	v.BindEnv("AMQP_URL")
	v.BindEnv("AMQP_QUEUE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// LockWait is how long a booking request may wait for the per-provider-day
// lock before failing with a retryable contention error.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitSeconds) * time.Second
}

// LockLease is the lease TTL used by the fallback lease locker.
func (c *Config) LockLease() time.Duration {
	return time.Duration(c.LockLeaseSeconds) * time.Second
}

// CancelCutoff is the minimum remaining time before the allocated slot at
// which a requester may still cancel.
func (c *Config) CancelCutoff() time.Duration {
	return time.Duration(c.CancelCutoffHours) * time.Hour
}

// ImmediateLead is the fixed offset from now used for immediate-mode services.
func (c *Config) ImmediateLead() time.Duration {
	return time.Duration(c.ImmediateLeadMinutes) * time.Minute
}

// WindowCacheTTL bounds how stale a cached availability window may be.
func (c *Config) WindowCacheTTL() time.Duration {
	return time.Duration(c.WindowCacheTTLSecs) * time.Second
}

// Validate checks that the configuration is safe to run. Outside development
// JWT_SECRET must be set so that real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf(
			"JWT_SECRET must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.LockBackend != "advisory" && c.LockBackend != "lease" {
		return fmt.Errorf("LOCK_BACKEND must be \"advisory\" or \"lease\", got %q", c.LockBackend)
	}
	if c.LockWaitSeconds <= 0 {
		return fmt.Errorf("LOCK_WAIT_SECONDS must be positive, got %d", c.LockWaitSeconds)
	}
	if c.CancelCutoffHours < 0 {
		return fmt.Errorf("CANCEL_CUTOFF_HOURS must not be negative, got %d", c.CancelCutoffHours)
	}
	if c.ImmediateLeadMinutes <= 0 {
		return fmt.Errorf("IMMEDIATE_LEAD_MINUTES must be positive, got %d", c.ImmediateLeadMinutes)
	}
	return nil
}
