package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads configuration from the environment and returns the populated,
// validated Config.
//
// Resolution order: OS environment (highest) -> .env file. The .env file is
// a development convenience; its absence is not an error and it never
// overrides variables already set in the environment.
func Load() (*Config, error) {
	// Enforce UTC to prevent timestamp drift between components.
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}
