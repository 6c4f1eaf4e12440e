package middleware

import (
	"context"
	"net/http"
	"net/netip"
	"strings"
)

// MaxForwardedHeaderLength bounds X-Forwarded-For / X-Real-IP values to
// prevent header injection through oversized values.
const MaxForwardedHeaderLength = 500

type clientIPKey struct{}
type userAgentKey struct{}

// Metadata extracts the client IP and User-Agent and stores them in the
// request context. Forwarded headers are honored only when the direct peer is
// inside one of the trusted proxy prefixes; any other peer is identified by
// its connection address.
type Metadata struct {
	trustedProxies []netip.Prefix
}

// NewMetadata creates the metadata middleware. An empty proxy list means
// forwarded headers are never trusted.
func NewMetadata(trustedProxies []netip.Prefix) *Metadata {
	return &Metadata{trustedProxies: trustedProxies}
}

// Handler attaches client metadata to the context for handlers and services.
func (m *Metadata) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, clientIPKey{}, m.extractClientIP(r))
		ctx = context.WithValue(ctx, userAgentKey{}, r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientIP retrieves the resolved client IP from the context.
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// GetUserAgent retrieves the request User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// extractClientIP resolves the caller identity: the first IP-shaped value in
// the trusted forwarded chain wins, falling back to the connection address.
func (m *Metadata) extractClientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := r.Header.Get("X-Real-IP"); xri != "" && m.isTrustedProxy(remoteIP) {
			xri = strings.TrimSpace(xri)
			if len(xri) <= MaxForwardedHeaderLength {
				if _, err := netip.ParseAddr(xri); err == nil {
					return xri
				}
			}
		}
		return remoteIP
	}

	if !m.isTrustedProxy(remoteIP) || len(xff) > MaxForwardedHeaderLength {
		return remoteIP
	}

	// First entry in the chain is the original client.
	clientIP := xff
	if before, _, ok := strings.Cut(xff, ","); ok {
		clientIP = before
	}
	clientIP = strings.TrimSpace(clientIP)

	if _, err := netip.ParseAddr(clientIP); err != nil {
		return remoteIP
	}
	return clientIP
}

func (m *Metadata) isTrustedProxy(ip string) bool {
	if len(m.trustedProxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range m.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// parseRemoteAddr extracts the IP from RemoteAddr (strips port).
func parseRemoteAddr(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}

	// IPv6 with brackets: [::1]:port
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(strings.Split(remoteAddr, "]:")[0], "[]")
	}

	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}
