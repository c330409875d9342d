// Package config loads application configuration from environment
// variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration. Required values are enforced
// by must() and abort startup when missing; the auth flow windows have
// the stock defaults (24h verification codes, 15m reset codes, 10m
// continuation tokens) and rarely need touching.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign session tokens
	AccessTTLMin int    // session token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	VerificationCodeTTL time.Duration // email verification code window
	ResetCodeTTL        time.Duration // password reset code window
	ResetTokenTTL       time.Duration // reset continuation token window

	SuperadminName  string // seeded superadmin display name
	SuperadminEmail string // seeded superadmin email (empty disables seeding)
	SuperadminPass  string // seeded superadmin password
}

// Load reads configuration from environment variables. Missing
// required variables cause a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		VerificationCodeTTL: envDur("VERIFICATION_CODE_TTL", 24*time.Hour),
		ResetCodeTTL:        envDur("RESET_CODE_TTL", 15*time.Minute),
		ResetTokenTTL:       envDur("RESET_TOKEN_TTL", 10*time.Minute),

		SuperadminName:  envStr("SUPERADMIN_NAME", "Super Administrator"),
		SuperadminEmail: os.Getenv("SUPERADMIN_EMAIL"),
		SuperadminPass:  os.Getenv("SUPERADMIN_PASSWORD"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the value to an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
