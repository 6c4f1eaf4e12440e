// Package audit records authentication, admission, and bidding events.
// It is a passive collaborator: domain services emit into it and nothing in
// the request path depends on its results.
package audit

import (
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	UserID    string
	Action    Action
	ClientIP  string
	Device    string
	Reason    string
}

type Action string

const (
	ActionLoginSucceeded   Action = "login_succeeded"
	ActionLoginFailed      Action = "login_failed"
	ActionTokenRefreshed   Action = "token_refreshed"
	ActionRateLimitBlocked Action = "rate_limit_blocked"
	ActionBidAccepted      Action = "bid_accepted"
	ActionBidRejected      Action = "bid_rejected"
)

// DeviceLabel extracts a human-readable device name from a User-Agent string,
// in the form "Browser on OS" (e.g., "Chrome on macOS").
func DeviceLabel(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)
	if browser == "" && os == "" {
		return "Unknown Device"
	}
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		return browser
	}
	return browser + " on " + os
}
