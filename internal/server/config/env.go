package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays cfg with environment variables, loading a .env file
// first when one is present in the working directory. Unset variables keep
// the earlier values; malformed durations panic.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("ADDRESS"); v != "" {
		cfg.EndpointAddr = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.DatabaseDSN = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("ACCESS_TOKEN_VALIDITY"); v != "" {
		cfg.AccessTokenValidityDuration = mustDuration(v)
	}
	if v := os.Getenv("REFRESH_TOKEN_VALIDITY"); v != "" {
		cfg.RefreshTokenValidityDuration = mustDuration(v)
	}
}

func mustDuration(v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	return d
}
