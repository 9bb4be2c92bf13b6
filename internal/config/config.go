package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type Config struct {
	Port                   int      `env:"PORT" envDefault:"8080"`
	AppEnv                 string   `env:"APP_ENV" envDefault:"development"`
	DatabaseURL            string   `env:"DATABASE_URL,required"`
	RedisURL               string   `env:"REDIS_URL"`
	RateLimitBackend       string   `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	StaffJWTSecret         string   `env:"STAFF_JWT_SECRET,required"`
	StaffJWTIssuer         string   `env:"STAFF_JWT_ISSUER"`
	PortalBaseURL          string   `env:"PORTAL_BASE_URL" envDefault:"http://localhost:5173"`
	CORSAllowedOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxyCIDRs      []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`
	LogLevel               string   `env:"LOG_LEVEL" envDefault:"info"`
	ValidateRateLimit      int      `env:"VALIDATE_RATE_LIMIT" envDefault:"100"`
	SubmitRateLimit        int      `env:"SUBMIT_RATE_LIMIT" envDefault:"10"`
	RateLimitWindowSeconds int      `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`
	IPRateLimitRPS         float64  `env:"IP_RATE_LIMIT_RPS" envDefault:"5"`
	IPRateLimitBurst       int      `env:"IP_RATE_LIMIT_BURST" envDefault:"20"`
	DefaultTokenExpiryDays int      `env:"DEFAULT_TOKEN_EXPIRY_DAYS" envDefault:"30"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// AllowedOrigins returns the configured CORS origins with the portal base URL included.
func (c *Config) AllowedOrigins() []string {
	origins := make([]string, 0, len(c.CORSAllowedOrigins)+1)
	seen := make(map[string]bool)
	for _, o := range append([]string{c.PortalBaseURL}, c.CORSAllowedOrigins...) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins
}

// TrustedProxies parses TRUSTED_PROXY_CIDRS. A bare address is a single-host prefix.
func (c *Config) TrustedProxies() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxyCIDRs))
	for _, raw := range c.TrustedProxyCIDRs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXY_CIDRS: invalid address %q", raw)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXY_CIDRS: invalid prefix %q", raw)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}

func (c *Config) Validate() error {
	switch c.RateLimitBackend {
	case RateLimitBackendMemory:
	case RateLimitBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q", RateLimitBackendMemory, RateLimitBackendRedis)
	}

	if c.ValidateRateLimit <= 0 || c.SubmitRateLimit <= 0 || c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("rate limits and RATE_LIMIT_WINDOW_SECONDS must be positive")
	}

	if c.DefaultTokenExpiryDays < 1 || c.DefaultTokenExpiryDays > MaxTokenExpiryDays {
		return fmt.Errorf("DEFAULT_TOKEN_EXPIRY_DAYS must be between 1 and %d", MaxTokenExpiryDays)
	}

	if _, err := c.TrustedProxies(); err != nil {
		return err
	}

	if c.IsProduction() {
		if err := validateSecret("STAFF_JWT_SECRET", c.StaffJWTSecret); err != nil {
			return err
		}
		if !strings.HasPrefix(c.PortalBaseURL, "https://") {
			return fmt.Errorf("PORTAL_BASE_URL must use https in production")
		}
		if c.RateLimitBackend == RateLimitBackendMemory {
			log.Warn().Msg("RATE_LIMIT_BACKEND=memory in production: limits are enforced per instance only")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env file")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
