package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                    string   `mapstructure:"PORT"`
	Env                     string   `mapstructure:"ENV"`
	DatabaseURL             string   `mapstructure:"DATABASE_URL"`
	DBMaxConns              int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns              int32    `mapstructure:"DB_MIN_CONNS"`
	DBHealthCheckSecs       int      `mapstructure:"DB_HEALTH_CHECK_PERIOD_SECONDS"`
	RedisURL                string   `mapstructure:"REDIS_URL"`
	AuthIssuer              string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL             string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience            string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins             []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS            float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst          int      `mapstructure:"RATE_LIMIT_BURST"`
	ValidatorURL            string   `mapstructure:"VALIDATOR_URL"`
	ValidatorTimeoutSecs    int      `mapstructure:"VALIDATOR_TIMEOUT_SECONDS"`
	ValidatorHealthSecs     int      `mapstructure:"VALIDATOR_HEALTH_TIMEOUT_SECONDS"`
	ValidatorMaxConcurrency int      `mapstructure:"VALIDATOR_MAX_CONCURRENCY"`
	ActiveAlertsCacheTTL    int      `mapstructure:"ACTIVE_ALERTS_CACHE_TTL_SECONDS"`
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
	v.SetDefault("DB_HEALTH_CHECK_PERIOD_SECONDS", 60)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("VALIDATOR_TIMEOUT_SECONDS", 30)
	v.SetDefault("VALIDATOR_HEALTH_TIMEOUT_SECONDS", 3)
	v.SetDefault("VALIDATOR_MAX_CONCURRENCY", 4)
	v.SetDefault("ACTIVE_ALERTS_CACHE_TTL_SECONDS", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DB_HEALTH_CHECK_PERIOD_SECONDS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("VALIDATOR_URL")
	v.BindEnv("VALIDATOR_TIMEOUT_SECONDS")
	v.BindEnv("VALIDATOR_HEALTH_TIMEOUT_SECONDS")
	v.BindEnv("VALIDATOR_MAX_CONCURRENCY")
	v.BindEnv("ACTIVE_ALERTS_CACHE_TTL_SECONDS")

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
	if cfg.ValidatorURL == "" {
		return nil, fmt.Errorf("VALIDATOR_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active; all requests get admin access.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
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

// Validate checks that the configuration is safe to run. Outside of
// development AUTH_ISSUER must be set so that real JWT authentication is
// enforced, and the validator fan-out knobs must be sane.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_ISSUER must be set when ENV=%q; refusing to start without authentication configuration", c.Env)
	}
	if c.ValidatorMaxConcurrency < 1 {
		return fmt.Errorf("VALIDATOR_MAX_CONCURRENCY must be at least 1, got %d", c.ValidatorMaxConcurrency)
	}
	if c.ValidatorTimeoutSecs < 1 {
		return fmt.Errorf("VALIDATOR_TIMEOUT_SECONDS must be at least 1, got %d", c.ValidatorTimeoutSecs)
	}
	if c.ValidatorHealthSecs < 1 {
		return fmt.Errorf("VALIDATOR_HEALTH_TIMEOUT_SECONDS must be at least 1, got %d", c.ValidatorHealthSecs)
	}
	return nil
}
