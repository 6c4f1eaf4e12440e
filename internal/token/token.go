// Package token issues, verifies, and refreshes the signed bearer credentials
// that establish caller identity. Tokens are self-contained HS256 JWTs; the
// server keeps no session table.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "sayarat/pkg/domain-errors"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
)

// MinSecretLength is the minimum HMAC secret size in bytes.
const MinSecretLength = 32

// Claims carries the authenticated subject plus registered timing claims.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and validates credentials. All methods are pure computation
// over the configured secret; the service holds no mutable state.
type Service struct {
	secret     []byte
	sessionTTL time.Duration
	idleTTL    time.Duration
	refreshTTL time.Duration
}

// New constructs the token service. A missing or short secret is a fatal
// configuration error surfaced here so server startup aborts.
func New(secret string, sessionTTL, idleTTL, refreshTTL time.Duration) (*Service, error) {
	if len(secret) < MinSecretLength {
		return nil, dErrors.New(dErrors.CodeConfig, "signing secret must be at least 32 bytes")
	}
	return &Service{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		idleTTL:    idleTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// Issue creates a signed credential for the subject. Expiry is issued-at plus
// the fixed session length; the idle window is enforced at verification time.
func (s *Service) Issue(ctx context.Context, subject, role string) (string, error) {
	if subject == "" {
		return "", dErrors.New(dErrors.CodeValidation, "subject cannot be empty")
	}
	now := requesttime.Now(ctx)

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	})

	signed, err := newToken.SignedString(s.secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// Verify checks the signature and timing claims of a credential. Timing is
// evaluated against the request-scoped clock: a token is rejected once past
// its hard expiry, or once issued-at is further back than the idle-timeout
// threshold, an inactivity window layered on the fixed lifetime.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parseSigned(tokenString)
	if err != nil {
		return nil, err
	}

	now := requesttime.Now(ctx)
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "token is missing timing claims")
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, dErrors.New(dErrors.CodeAuthExpired, "token expired")
	}
	if now.Sub(claims.IssuedAt.Time) >= s.idleTTL {
		return nil, dErrors.New(dErrors.CodeAuthExpired, "session idle timeout exceeded")
	}
	return claims, nil
}

// Refresh re-issues a credential from an existing one. Only the signature and
// subject must be intact; the old token may be past its idle window or hard
// expiry. A separate refresh horizon bounds how long an abandoned token can be
// traded in - beyond it the caller must log in again.
func (s *Service) Refresh(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.parseSigned(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeAuthInvalid, "token is missing subject")
	}

	now := requesttime.Now(ctx)
	if claims.IssuedAt == nil || now.Sub(claims.IssuedAt.Time) >= s.refreshTTL {
		return "", dErrors.New(dErrors.CodeAuthExpired, "token is past the refresh horizon")
	}

	return s.Issue(ctx, claims.Subject, claims.Role)
}

// parseSigned validates structure, algorithm, and signature but not timing
// claims, which are checked explicitly against the request clock. The
// signature comparison inside the JWT library is constant-time.
func (s *Service) parseSigned(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "empty token")
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, dErrors.New(dErrors.CodeAuthInvalid, "unexpected signing algorithm")
		}
		return s.secret, nil
	},
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, dErrors.New(dErrors.CodeAuthInvalid, "invalid token signature")
		}
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "malformed token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeAuthInvalid, "invalid token")
	}
	return claims, nil
}
