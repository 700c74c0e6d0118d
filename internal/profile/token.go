package profile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SaveToken stores the bearer token of the signed-in user for a profile.
func SaveToken(name, token string) error {
	path := TokenPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0600)
}

// LoadToken returns the stored token, or "" when nobody has signed in yet.
func LoadToken(name string) (string, error) {
	data, err := os.ReadFile(TokenPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// DeleteToken signs the profile out.
func DeleteToken(name string) error {
	err := os.Remove(TokenPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
