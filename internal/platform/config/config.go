package config

import (
	"net/netip"
	"os"
	"strings"
	"time"

	dErrors "sayarat/pkg/domain-errors"
)

// MinSecretLength is the minimum signing secret size in bytes. A shorter
// secret is a fatal configuration error, not a per-request failure.
const MinSecretLength = 32

// Server captures process-wide configuration. It is read-only after startup
// and passed by reference to the components that need it.
type Server struct {
	Addr           string
	JWTSecret      string
	SessionTTL     time.Duration
	IdleTTL        time.Duration
	RefreshTTL     time.Duration
	TrustedProxies []netip.Prefix
	RedisAddr      string
	DatabaseURL    string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// It returns an error only for fatal misconfiguration; optional values fall
// back to defaults.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        getEnv("SAYARAT_ADDR", ":8000"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		SessionTTL:  getDuration("SESSION_TTL", 30*time.Minute),
		IdleTTL:     getDuration("IDLE_TTL", 15*time.Minute),
		RefreshTTL:  getDuration("REFRESH_TTL", 30*24*time.Hour),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	if len(cfg.JWTSecret) < MinSecretLength {
		return Server{}, dErrors.New(dErrors.CodeConfig, "JWT_SECRET must be set and at least 32 bytes")
	}

	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return Server{}, err
	}
	cfg.TrustedProxies = proxies

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// parsePrefixes parses a comma-separated list of CIDR prefixes. Bare addresses
// are accepted and treated as single-host prefixes.
func parsePrefixes(raw string) ([]netip.Prefix, error) {
	if raw == "" {
		return nil, nil
	}
	var prefixes []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.Contains(part, "/") {
			addr, err := netip.ParseAddr(part)
			if err != nil {
				return nil, dErrors.New(dErrors.CodeConfig, "TRUSTED_PROXIES contains an invalid address: "+part)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(part)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeConfig, "TRUSTED_PROXIES contains an invalid prefix: "+part)
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, nil
}
