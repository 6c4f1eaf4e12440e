package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"sayarat/internal/ratelimit/models"
)

// Limit defines the (max attempts, window length, block length) triple for a
// route class.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
	Block       time.Duration
}

// Config holds rate limiting configuration, read-only after startup.
type Config struct {
	Limits map[models.RouteClass]Limit
}

// DefaultConfig returns the per-class defaults: login is tight with a long
// block, reads are generous, writes and bids sit in between.
func DefaultConfig() *Config {
	return &Config{
		Limits: map[models.RouteClass]Limit{
			models.ClassLogin: {MaxAttempts: 5, Window: 15 * time.Minute, Block: 30 * time.Minute},
			models.ClassRead:  {MaxAttempts: 100, Window: time.Minute, Block: time.Minute},
			models.ClassWrite: {MaxAttempts: 50, Window: time.Minute, Block: 5 * time.Minute},
			models.ClassBid:   {MaxAttempts: 30, Window: time.Minute, Block: 2 * time.Minute},
		},
	}
}

// FromEnv returns the defaults with any per-class environment overrides
// applied. Override format: "attempts/window/block", e.g. RATE_LOGIN=5/15m/30m.
// Malformed values are ignored in favor of the default.
func FromEnv() *Config {
	cfg := DefaultConfig()
	for class, env := range map[models.RouteClass]string{
		models.ClassLogin: "RATE_LOGIN",
		models.ClassRead:  "RATE_READ",
		models.ClassWrite: "RATE_WRITE",
		models.ClassBid:   "RATE_BID",
	} {
		if raw := os.Getenv(env); raw != "" {
			if limit, ok := parseLimit(raw); ok {
				cfg.Limits[class] = limit
			}
		}
	}
	return cfg
}

// Class returns the limit for a route class and whether it is registered.
func (c *Config) Class(class models.RouteClass) (Limit, bool) {
	limit, ok := c.Limits[class]
	return limit, ok
}

func parseLimit(raw string) (Limit, bool) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return Limit{}, false
	}
	attempts, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || attempts <= 0 {
		return Limit{}, false
	}
	window, err := time.ParseDuration(strings.TrimSpace(parts[1]))
	if err != nil || window <= 0 {
		return Limit{}, false
	}
	block, err := time.ParseDuration(strings.TrimSpace(parts[2]))
	if err != nil || block <= 0 {
		return Limit{}, false
	}
	return Limit{MaxAttempts: attempts, Window: window, Block: block}, true
}
