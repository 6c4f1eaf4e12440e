package models

import "time"

// RouteClass names a category of endpoints sharing one rate-limit
// configuration.
type RouteClass string

const (
	// ClassLogin: credential submission. Few attempts, long block.
	ClassLogin RouteClass = "login"
	// ClassRead: generic reads.
	ClassRead RouteClass = "read"
	// ClassWrite: generic mutations.
	ClassWrite RouteClass = "write"
	// ClassBid: bid placement.
	ClassBid RouteClass = "bid"
)

func (c RouteClass) IsValid() bool {
	switch c {
	case ClassLogin, ClassRead, ClassWrite, ClassBid:
		return true
	}
	return false
}

func (c RouteClass) String() string {
	return string(c)
}

// Record is the per (client, route-class) counter. It is mutated only through
// the store's atomic operations.
type Record struct {
	Key          string     `json:"key"`
	WindowStart  time.Time  `json:"window_start"`
	Attempts     int        `json:"attempts"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// IsBlocked reports whether a block is active at the given instant.
func (r *Record) IsBlocked(now time.Time) bool {
	return r.BlockedUntil != nil && now.Before(*r.BlockedUntil)
}

// Result is the admission decision surfaced to the middleware and, through
// response headers, to the caller.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// ExceededResponse is the 429 response body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}
