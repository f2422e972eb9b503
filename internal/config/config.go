// Package config loads and validates the process environment. Missing
// required variables abort startup with a descriptive error rather than
// falling back silently -- the posture the teacher's main.go used
// inconsistently (warn-and-default for some, fatal for others); here
// every required variable is fatal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full set of environment-derived settings the process
// needs at startup.
type Config struct {
	Env string // APP_ENV: "production" or "development"

	DatabaseURL string

	DBPoolMax               int32
	DBPoolIdleTimeout       time.Duration
	DBPoolConnectionTimeout time.Duration

	JWTSecret                  string
	JWTExpiration              time.Duration
	RefreshTokenExpirationDays int

	BcryptCost int

	CookieDomain   string
	CookieSameSite string

	VroomURL string
	OSRMURL  string

	SeedSuperAdmin     bool
	SuperAdminUsername string
	SuperAdminPassword string
	SuperAdminEmail    string

	SentryDSN string

	RabbitMQURL string

	Port string
}

// Load reads and validates Config from the environment. err is non-nil if
// any required variable is missing or malformed; callers should treat
// that as fatal.
func Load() (Config, error) {
	var missing []string
	require := func(name string) string {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	}

	c := Config{
		Env: orDefault(os.Getenv("APP_ENV"), "development"),

		DatabaseURL: buildDatabaseURL(),

		JWTSecret: require("JWT_SECRET"),

		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),
		CookieSameSite: orDefault(os.Getenv("COOKIE_SAME_SITE"), "lax"),

		VroomURL: os.Getenv("VROOM_URL"),
		OSRMURL:  os.Getenv("OSRM_URL"),

		SentryDSN:   os.Getenv("SENTRY_DSN"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		Port: orDefault(os.Getenv("PORT"), "8080"),
	}

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL (or DB_HOST/DB_PORT/DB_USERNAME/DB_PASSWORD/DB_DATABASE)")
	}

	c.DBPoolMax = int32(getEnvAsInt("DB_POOL_MAX", 10))
	c.DBPoolIdleTimeout = time.Duration(getEnvAsInt("DB_POOL_IDLE_TIMEOUT_MS", 300_000)) * time.Millisecond
	c.DBPoolConnectionTimeout = time.Duration(getEnvAsInt("DB_POOL_CONNECTION_TIMEOUT_MS", 5_000)) * time.Millisecond

	c.JWTExpiration = time.Duration(getEnvAsInt("JWT_EXPIRATION_MINUTES", 15)) * time.Minute
	c.RefreshTokenExpirationDays = getEnvAsInt("REFRESH_TOKEN_EXPIRATION_DAYS", 30)

	c.BcryptCost = getEnvAsInt("BCRYPT_COST", 12)

	c.SeedSuperAdmin = getEnvAsBool("SEED_SUPER_ADMIN", false)
	if c.SeedSuperAdmin {
		c.SuperAdminUsername = require("SUPER_ADMIN_USERNAME")
		c.SuperAdminPassword = require("SUPER_ADMIN_PASSWORD")
		c.SuperAdminEmail = require("SUPER_ADMIN_EMAIL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return c, nil
}

// buildDatabaseURL prefers DATABASE_URL verbatim, falling back to the
// discrete DB_* variables so deployments that don't hand out a single DSN
// still work.
func buildDatabaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	port := orDefault(os.Getenv("DB_PORT"), "5432")
	user := os.Getenv("DB_USERNAME")
	pass := os.Getenv("DB_PASSWORD")
	name := os.Getenv("DB_DATABASE")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, port, name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvAsBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvAsInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
