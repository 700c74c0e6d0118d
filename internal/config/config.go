package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.rescue/config.toml.
type Config struct {
	DefaultProfile string       `toml:"default_profile"`
	Feed           FeedConfig   `toml:"feed"`
	Auth           AuthConfig   `toml:"auth"`
	Media          MediaConfig  `toml:"media"`
	Push           PushConfig   `toml:"push"`
	Limits         LimitsConfig `toml:"limits"`
}

// FeedConfig tunes the feed controller and the store-backed feed query.
type FeedConfig struct {
	RadiusKm     float64  `toml:"radius_km"`
	PageSize     int      `toml:"page_size"`
	NoPostsDelay Duration `toml:"no_posts_delay"`
	// Latitude and Longitude are the TUI's position; terminals cannot locate
	// themselves. Both zero means unknown.
	Latitude  float64 `toml:"latitude"`
	Longitude float64 `toml:"longitude"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// MediaConfig points at the bucket clients upload post images and avatars to.
// An empty bucket disables presigning.
type MediaConfig struct {
	Bucket    string   `toml:"bucket"`
	Region    string   `toml:"region"`
	URLExpiry Duration `toml:"url_expiry"`
}

// PushConfig enables push notifications when a Firebase credentials file is set.
type PushConfig struct {
	CredentialsFile string `toml:"credentials_file"`
}

// LimitsConfig holds per-caller rate limits, in events per minute.
type LimitsConfig struct {
	SendPerMinute   int `toml:"send_per_minute"`
	ReportPerMinute int `toml:"report_per_minute"`
	LoginPerMinute  int `toml:"login_per_minute"`
	Burst           int `toml:"burst"`
}

// Duration is a time.Duration that reads and writes as "6s", "24h" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Feed.RadiusKm <= 0 {
		c.Feed.RadiusKm = 10
	}
	if c.Feed.PageSize <= 0 {
		c.Feed.PageSize = 20
	}
	if c.Feed.NoPostsDelay.Duration == 0 {
		c.Feed.NoPostsDelay.Duration = 6 * time.Second
	}
	if c.Auth.TokenTTL.Duration == 0 {
		c.Auth.TokenTTL.Duration = 24 * time.Hour
	}
	if c.Media.URLExpiry.Duration == 0 {
		c.Media.URLExpiry.Duration = 5 * time.Minute
	}
	if c.Limits.SendPerMinute <= 0 {
		c.Limits.SendPerMinute = 60
	}
	if c.Limits.ReportPerMinute <= 0 {
		c.Limits.ReportPerMinute = 5
	}
	if c.Limits.LoginPerMinute <= 0 {
		c.Limits.LoginPerMinute = 10
	}
	if c.Limits.Burst <= 0 {
		c.Limits.Burst = 3
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyEnv loads envFile (if present) into the process environment and lets
// RESCUE_* and AWS_REGION variables override secrets and endpoints.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if v := os.Getenv("RESCUE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("RESCUE_MEDIA_BUCKET"); v != "" {
		c.Media.Bucket = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && c.Media.Region == "" {
		c.Media.Region = v
	}
	if v := os.Getenv("RESCUE_FCM_CREDENTIALS"); v != "" {
		c.Push.CredentialsFile = v
	}
	if v := os.Getenv("RESCUE_FEED_RADIUS_KM"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Feed.RadiusKm = r
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
