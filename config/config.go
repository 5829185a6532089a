// Package config loads the siwa server configuration from SIWA_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/layer-3/siwa/adapters/lookup"
	"github.com/layer-3/siwa/internal/logger"
	"github.com/layer-3/siwa/service"
)

// Config holds everything the server needs to start
type Config struct {
	HTTPAddr string
	RedisURL string
	NodeURL  string

	// JWTKeyFile points at a PEM encoded EC private key. A key is generated
	// at startup when it is empty.
	JWTKeyFile string

	// ExcludedResources are resource prefixes ignored when comparing the
	// signed resources with the issued ones.
	ExcludedResources []string

	Service service.Config
	Log     logger.Config
}

// Load reads the configuration from the environment, falling back to
// defaults for unset variables
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	defaults := service.DefaultConfig()
	cfg := Config{
		HTTPAddr:   get("SIWA_HTTP_ADDR", ":9000"),
		RedisURL:   get("SIWA_REDIS_URL", "redis://localhost:6379/0"),
		NodeURL:    get("SIWA_NODE_URL", lookup.MainnetURL),
		JWTKeyFile: getenv("SIWA_JWT_KEY_FILE"),
		Service: service.Config{
			Domain:    get("SIWA_DOMAIN", "localhost:9000"),
			URI:       get("SIWA_URI", "http://localhost:9000"),
			Statement: getenv("SIWA_STATEMENT"),
			ChainID:   get("SIWA_CHAIN_ID", "aptos:mainnet"),
		},
		Log: logger.Config{
			Level:  get("SIWA_LOG_LEVEL", "info"),
			Format: get("SIWA_LOG_FORMAT", "console"),
			File:   getenv("SIWA_LOG_FILE"),
		},
	}

	if v := getenv("SIWA_EXCLUDED_RESOURCES"); v != "" {
		for _, prefix := range strings.Split(v, ",") {
			if prefix = strings.TrimSpace(prefix); prefix != "" {
				cfg.ExcludedResources = append(cfg.ExcludedResources, prefix)
			}
		}
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SIWA_CHALLENGE_TTL", defaults.ChallengeTTL, &cfg.Service.ChallengeTTL},
		{"SIWA_ACCESS_TTL", defaults.AccessTTL, &cfg.Service.AccessTTL},
		{"SIWA_REFRESH_TTL", defaults.RefreshTTL, &cfg.Service.RefreshTTL},
	}
	for _, d := range durations {
		*d.dst = d.def
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("invalid %s %q: must be a positive duration", d.key, v)
		}
		*d.dst = parsed
	}

	return cfg, nil
}
