package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Credentials authenticate against the service. They are read from the
// environment only and never written to walletimport.yaml.
type Credentials struct {
	Username string `env:"WALLET_USERNAME"`
	Password string `env:"WALLET_PASSWORD"`
}

// DefaultEnvFiles are loaded, when present, before reading credentials.
var DefaultEnvFiles = []string{".env", ".env.local"}

// LoadEnv loads the env files that exist. Variables already set in the
// process environment win. Returns the number of files loaded.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return 0, fmt.Errorf("loading env files: %w", err)
	}
	return len(existing), nil
}

// LoadCredentials loads envFiles and parses the credential variables.
func LoadCredentials(envFiles []string) (Credentials, error) {
	if _, err := LoadEnv(envFiles); err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := env.Parse(&c); err != nil {
		return Credentials{}, fmt.Errorf("parsing credentials: %w", err)
	}
	return c, nil
}
