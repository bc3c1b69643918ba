package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Credentials stores the session of the CLI between invocations.
type Credentials struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
	UserID string `yaml:"userId,omitempty"`
	Email  string `yaml:"email,omitempty"`
	Name   string `yaml:"name,omitempty"`
}

// DefaultServer is used until the user logs in to another server.
const DefaultServer = "http://localhost:8080"

// Path returns the default credentials file, <UserConfigDir>/supportctl/credentials.yaml.
func Path() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "supportctl", "credentials.yaml"), nil
}

// Load reads the credentials file at path. A missing file yields empty credentials for DefaultServer.
func Load(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{Server: DefaultServer}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if creds.Server == "" {
		creds.Server = DefaultServer
	}
	return creds, nil
}

// Save writes the credentials to path, readable by the current user only.
func (c Credentials) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a session token is stored.
func (c Credentials) IsAuthenticated() bool {
	return c.Token != ""
}
