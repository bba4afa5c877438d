package config

import (
	"os"
	"time"
)

// ProfileCacheConfig defines the profile cache-aside layer. Entries are
// stored under Prefix:<userID> and expire after TTL unless a write deletes
// them first.
type ProfileCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadProfileCacheConfig reads PROFILE_CACHE_* variables.
func LoadProfileCacheConfig() ProfileCacheConfig {
	return loadProfileCache(os.LookupEnv)
}

func loadProfileCache(lookup lookupFunc) ProfileCacheConfig {
	e := env{lookup: lookup}
	return ProfileCacheConfig{
		Enabled: e.bool("PROFILE_CACHE_ENABLED", true),
		TTL:     e.dur("PROFILE_CACHE_TTL", time.Hour),
		Prefix:  e.str("PROFILE_CACHE_PREFIX", "userProfile"),
	}
}
