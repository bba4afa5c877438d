package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds the core runtime configuration. Each field corresponds to an
// environment variable; JWT_SECRET and MONGO_URI have no default and their
// absence stops the process before it accepts traffic.
type Config struct {
	Env              string        // application environment (dev/test/prod)
	Port             string        // HTTP port to listen on
	MongoURI         string        // MongoDB connection string
	MongoDB          string        // database holding the users collection
	JWTSecret        string        // secret used to sign session tokens
	TokenTTL         time.Duration // lifetime of every session token
	BcryptCost       int           // bcrypt cost for passwords and security answers
	StoreTimeout     time.Duration // upper bound for a single store call
	RecoveryGrantTTL time.Duration // lifetime of login/recovery grants
}

// Load reads the configuration from the environment and exits the process
// with a fatal log message if required variables are missing or invalid.
func Load() Config {
	cfg, err := load(os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

type lookupFunc func(string) (string, bool)

func load(lookup lookupFunc) (Config, error) {
	e := env{lookup: lookup}
	cfg := Config{
		Env:              e.str("APP_ENV", "dev"),
		Port:             e.str("APP_PORT", "3000"),
		MongoURI:         e.must("MONGO_URI"),
		MongoDB:          e.str("MONGO_DB", "studentdesk"),
		JWTSecret:        e.must("JWT_SECRET"),
		TokenTTL:         e.dur("TOKEN_TTL", 30*24*time.Hour),
		BcryptCost:       e.int("BCRYPT_COST", 10),
		StoreTimeout:     e.dur("STORE_TIMEOUT", 5*time.Second),
		RecoveryGrantTTL: e.dur("RECOVERY_GRANT_TTL", 5*time.Minute),
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		e.fail("BCRYPT_COST out of range: %d", cfg.BcryptCost)
	}
	return cfg, e.err()
}

// env reads typed values and accumulates problems so that every missing
// key is reported at once.
type env struct {
	lookup lookupFunc
	errs   []error
}

func (e *env) fail(format string, args ...any) {
	e.errs = append(e.errs, fmt.Errorf(format, args...))
}

func (e *env) err() error { return errors.Join(e.errs...) }

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// must retrieves the value of a required environment variable.
func (e *env) must(key string) string {
	v, ok := e.raw(key)
	if !ok {
		e.fail("missing required env var: %s", key)
	}
	return v
}

func (e *env) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail("invalid int for %s: %q", key, v)
		return def
	}
	return n
}

func (e *env) dur(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.fail("invalid duration for %s: %q", key, v)
		return def
	}
	return d
}

func (e *env) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return def
}
