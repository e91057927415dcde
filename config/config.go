// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the service reads at startup.
type Config struct {
	// --- HTTP ---
	Port           string `envconfig:"PORT" default:"5200"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ServiceToken   string `envconfig:"SERVICE_TOKEN"`

	// --- Database ---
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// --- Rewards ---
	// Calendar days (streaks, daily claims, spin resets) are cut in this zone.
	RewardTimezone     string `envconfig:"REWARD_TIMEZONE" default:"UTC"`
	RateLimitPerMinute int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	CurriculumSeedFile string `envconfig:"CURRICULUM_SEED_FILE"`

	// --- Identity provider ---
	SupabaseURL        string `envconfig:"SUPABASE_URL"`
	SupabaseServiceKey string `envconfig:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `envconfig:"SUPABASE_JWT_SECRET"`

	// --- Redis ---
	RedisAddr           string        `envconfig:"REDIS_ADDR"`
	RedisPassword       string        `envconfig:"REDIS_PASSWORD"`
	RedisDB             int           `envconfig:"REDIS_DB" default:"0"`
	LeaderboardCacheTTL time.Duration `envconfig:"LEADERBOARD_CACHE_TTL" default:"30s"`

	// --- Object storage (R2) ---
	CloudflareAccountID string `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID       string `envconfig:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret   string `envconfig:"R2_ACCESS_KEY_SECRET"`
	R2BucketName        string `envconfig:"R2_BUCKET_NAME"`
	CDNBaseURL          string `envconfig:"CDN_BASE_URL"`

	// --- Logging ---
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogPath       string `envconfig:"LOG_PATH"`
	LogMaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"3"`
	LogMaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"7"`
}

// Origins returns the trimmed, comma-joined CORS origin list.
func (c *Config) Origins() string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// Location resolves RewardTimezone. Validate has already checked it parses.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RewardTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StorageEnabled reports whether R2 credentials are present.
func (c *Config) StorageEnabled() bool {
	return c.CloudflareAccountID != "" && c.R2AccessKeyID != "" && c.R2AccessKeySecret != "" && c.R2BucketName != ""
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" && (c.SupabaseURL == "" || c.SupabaseServiceKey == "") {
		return fmt.Errorf("either SUPABASE_JWT_SECRET or SUPABASE_URL + SUPABASE_SERVICE_KEY must be set")
	}
	if _, err := time.LoadLocation(c.RewardTimezone); err != nil {
		return fmt.Errorf("REWARD_TIMEZONE %q: %w", c.RewardTimezone, err)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	if c.LeaderboardCacheTTL < 0 {
		return fmt.Errorf("LEADERBOARD_CACHE_TTL must not be negative")
	}
	return nil
}

// Load reads .env (when present) and the process environment into a validated Config.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
