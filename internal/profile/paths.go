package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.rescue, or $RESCUE_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("RESCUE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rescue")
}

// ConfigPath returns the global config.toml path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnvPath returns the optional .env file holding secrets.
func EnvPath() string {
	return filepath.Join(BaseDir(), ".env")
}

// Dir returns the profile-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// EnsureDir creates the profile directory with owner-only permissions.
func EnsureDir(name string) error {
	return os.MkdirAll(Dir(name), 0700)
}

// SocketPath returns the daemon's Unix socket path.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "rescued.sock")
}

// DBPath returns the SQLite database path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "rescue.db")
}

// TokenPath returns where clients keep the signed-in user's bearer token.
func TokenPath(name string) string {
	return filepath.Join(Dir(name), "token")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(Dir(name), "logs", "rescued.log")
}

// ClientLogPath returns the log file of a terminal client such as the TUI.
func ClientLogPath(name, client string) string {
	return filepath.Join(Dir(name), "logs", client+".log")
}
