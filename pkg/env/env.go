// Package env loads peer/tracker overrides from a local .env file for
// development, on top of whatever the process already has in its
// environment.
package env

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file from the working directory if one exists. A
// missing file is expected in most deployments (config.yaml and flags
// cover production), so it's reported rather than treated as fatal.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "env: no .env file found, using the process environment")
	}
}

// GetEnv returns the value of key, or fallback if key isn't set. Used for
// the handful of peer settings (like FILENET_PEER_NAME) that it's
// convenient to override outside of config.yaml without going through
// viper's AutomaticEnv binding.
func GetEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
