package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.Feed.RadiusKm = 25
	cfg.Feed.NoPostsDelay.Duration = 2 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Feed.RadiusKm != 25 {
		t.Errorf("RadiusKm = %v, want 25", loaded.Feed.RadiusKm)
	}
	if loaded.Feed.NoPostsDelay.Duration != 2*time.Second {
		t.Errorf("NoPostsDelay = %v, want 2s", loaded.Feed.NoPostsDelay)
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_profile = \"main\"\n[feed]\npage_size = 5\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Feed.PageSize != 5 {
		t.Errorf("PageSize = %d, want 5", cfg.Feed.PageSize)
	}
	if cfg.Feed.RadiusKm != 10 {
		t.Errorf("RadiusKm = %v, want default 10", cfg.Feed.RadiusKm)
	}
	if cfg.Feed.NoPostsDelay.Duration != 6*time.Second {
		t.Errorf("NoPostsDelay = %v, want 6s", cfg.Feed.NoPostsDelay)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadOrDefaultMissing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.Auth.TokenTTL.Duration != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
}

func TestApplyEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("RESCUE_MEDIA_BUCKET=food-pics\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RESCUE_JWT_SECRET", "s3cret")
	t.Setenv("RESCUE_MEDIA_BUCKET", "")
	_ = os.Unsetenv("RESCUE_MEDIA_BUCKET")

	cfg := Default()
	if err := cfg.ApplyEnv(envFile); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q, want s3cret", cfg.Auth.JWTSecret)
	}
	if cfg.Media.Bucket != "food-pics" {
		t.Errorf("Bucket = %q, want food-pics", cfg.Media.Bucket)
	}
}

func TestApplyEnvMissingFile(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("ApplyEnv() with missing file error = %v", err)
	}
}

func TestSavePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
