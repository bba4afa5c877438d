package config

import (
	"os"
	"time"
)

// RateLimitConfig drives a Redis token bucket. The unauthenticated
// endpoints (login, token issuance, recovery) are limited per caller IP
// and route; the account endpoints per user and route.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables for the public auth
// endpoints. Invalid values fall back to defaults; the limiter is never a
// reason to refuse startup.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit(os.LookupEnv)
}

// LoadAccountRateLimitConfig reads ACCOUNT_RATE_LIMIT_* variables for the
// bearer-protected account endpoints.
func LoadAccountRateLimitConfig() RateLimitConfig {
	return loadAccountRateLimit(os.LookupEnv)
}

func loadRateLimit(lookup lookupFunc) RateLimitConfig {
	return loadRateLimitWith(lookup, "RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       10,
		RefillTokens:   1,
		RefillInterval: 6 * time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:auth",
	})
}

func loadAccountRateLimit(lookup lookupFunc) RateLimitConfig {
	return loadRateLimitWith(lookup, "ACCOUNT_RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       60,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "user_route",
		Prefix:         "rl:account",
	})
}

func loadRateLimitWith(lookup lookupFunc, prefix string, def RateLimitConfig) RateLimitConfig {
	e := env{lookup: lookup}
	rl := RateLimitConfig{
		Enabled:        e.bool(prefix+"ENABLED", def.Enabled),
		Capacity:       e.int(prefix+"CAPACITY", def.Capacity),
		RefillTokens:   e.int(prefix+"REFILL_TOKENS", def.RefillTokens),
		RefillInterval: e.dur(prefix+"REFILL_INTERVAL", def.RefillInterval),
		TTL:            e.dur(prefix+"TTL", def.TTL),
		KeyStrategy:    e.str(prefix+"KEY_STRATEGY", def.KeyStrategy),
		Prefix:         e.str(prefix+"PREFIX", def.Prefix),
		Debug:          e.bool(prefix+"DEBUG", def.Debug),
	}
	if rl.Capacity < 1 {
		rl.Capacity = 1
	}
	if rl.RefillTokens < 1 {
		rl.RefillTokens = 1
	}
	// keys must outlive a full refill cycle
	if minTTL := 5 * rl.RefillInterval; rl.TTL < minTTL {
		rl.TTL = minTTL
	}
	return rl
}
