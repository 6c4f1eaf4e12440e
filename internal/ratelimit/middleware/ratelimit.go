package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	platformMW "sayarat/internal/platform/middleware"
	"sayarat/internal/ratelimit/models"
	"sayarat/internal/transport/httputil"
	dErrors "sayarat/pkg/domain-errors"
)

// RateLimiter decides admission per (client, route-class).
type RateLimiter interface {
	Check(ctx context.Context, clientKey string, class models.RouteClass) (*models.Result, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{
		limiter: limiter,
		logger:  logger,
	}
}

// RateLimit returns middleware enforcing the given route class against the
// client IP resolved by the metadata middleware. A limiter failure allows the
// request through: admission control degrades open, it does not take the
// platform down with it.
func (m *Middleware) RateLimit(class models.RouteClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := platformMW.GetClientIP(ctx)

			result, err := m.limiter.Check(ctx, ip, class)
			if err != nil {
				m.logger.Error("rate limit check failed", "error", err, "class", class)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// addRateLimitHeaders surfaces remaining quota and window reset time on every
// decision, allowed or not.
func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil || result.Limit == 0 {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      string(dErrors.CodeRateLimited),
		Message:    "Too many requests from this client. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
