package middleware

import (
	"context"
	"net/http"
	"strings"

	dErrors "sayarat/pkg/domain-errors"
	"sayarat/internal/token"
	"sayarat/internal/transport/httputil"
)

// TokenVerifier validates a bearer credential and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
}

type claimsKey struct{}

// RequireAuth rejects requests without a valid bearer credential and stores
// the verified claims in the context. Bidder identity downstream comes from
// these claims, never from request bodies.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			claims, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the verified claims from the context, or nil when the
// request did not pass through RequireAuth.
func GetClaims(ctx context.Context) *token.Claims {
	if claims, ok := ctx.Value(claimsKey{}).(*token.Claims); ok {
		return claims
	}
	return nil
}

// GetUserID returns the authenticated subject, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}

func bearerToken(header string) (string, error) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", dErrors.New(dErrors.CodeAuthInvalid, "missing or malformed authorization header")
	}
	return header[len(prefix):], nil
}
