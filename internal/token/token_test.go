package token

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sayarat/pkg/domain-errors"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var (
	sessionTTL = 30 * time.Minute
	idleTTL    = 15 * time.Minute
	refreshTTL = 30 * 24 * time.Hour
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(testSecret, sessionTTL, idleTTL, refreshTTL)
	require.NoError(t, err)
	return svc
}

func TestNew_RejectsWeakSecret(t *testing.T) {
	for _, secret := range []string{"", "short", strings.Repeat("x", 31)} {
		_, err := New(secret, sessionTTL, idleTTL, refreshTTL)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfig))
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tokenString, err := svc.Issue(ctx, "user-42", "buyer")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)
	assert.Len(t, strings.Split(tokenString, "."), 3, "wire format is three dot-separated segments")

	claims, err := svc.Verify(ctx, tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "buyer", claims.Role)
	assert.WithinDuration(t, time.Now().Add(sessionTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestIssue_RejectsEmptySubject(t *testing.T) {
	svc := newService(t)
	_, err := svc.Issue(context.Background(), "", "buyer")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestVerify_TamperedSignature(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	tokenString, err := svc.Issue(ctx, "user-42", "buyer")
	require.NoError(t, err)

	// Flip one character of the signature segment.
	idx := strings.LastIndex(tokenString, ".") + 1
	sig := []byte(tokenString[idx:])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := tokenString[:idx] + string(sig)

	_, err = svc.Verify(ctx, tampered)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
}

func TestVerify_WrongKey(t *testing.T) {
	svc := newService(t)
	other, err := New(strings.Repeat("y", 32), sessionTTL, idleTTL, refreshTTL)
	require.NoError(t, err)

	ctx := context.Background()
	tokenString, err := other.Issue(ctx, "user-42", "buyer")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
}

func TestVerify_Expired(t *testing.T) {
	svc := newService(t)

	issuedAt := time.Now().Add(-sessionTTL - time.Minute)
	issueCtx := requesttime.WithTime(context.Background(), issuedAt)
	tokenString, err := svc.Issue(issueCtx, "user-42", "buyer")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthExpired))
}

func TestVerify_IdleTimeoutBeforeHardExpiry(t *testing.T) {
	svc := newService(t)

	// Issued 20 minutes ago: inside the 30 minute hard lifetime but past the
	// 15 minute idle threshold.
	issuedAt := time.Now().Add(-20 * time.Minute)
	issueCtx := requesttime.WithTime(context.Background(), issuedAt)
	tokenString, err := svc.Issue(issueCtx, "user-42", "buyer")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), tokenString)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthExpired))
}

func TestVerify_RejectsAlgorithmConfusion(t *testing.T) {
	svc := newService(t)
	claims := Claims{
		Role: "buyer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	cases := []struct {
		name       string
		signMethod jwt.SigningMethod
		signKey    any
	}{
		{
			name:       "hs512 header rejected",
			signMethod: jwt.SigningMethodHS512,
			signKey:    []byte(testSecret),
		},
		{
			name:       "alg none rejected",
			signMethod: jwt.SigningMethodNone,
			signKey:    jwt.UnsafeAllowNoneSignatureType,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tok := jwt.NewWithClaims(tt.signMethod, claims)
			tokenString, err := tok.SignedString(tt.signKey)
			require.NoError(t, err)

			_, err = svc.Verify(context.Background(), tokenString)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
		})
	}
}

func TestVerify_EmptyAndMalformed(t *testing.T) {
	svc := newService(t)
	for _, tokenString := range []string{"", "not-a-token", "a.b.c"} {
		_, err := svc.Verify(context.Background(), tokenString)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
	}
}

func TestRefresh(t *testing.T) {
	svc := newService(t)

	t.Run("re-issues past idle and hard expiry", func(t *testing.T) {
		issuedAt := time.Now().Add(-2 * time.Hour)
		issueCtx := requesttime.WithTime(context.Background(), issuedAt)
		old, err := svc.Issue(issueCtx, "user-42", "buyer")
		require.NoError(t, err)

		// Old token no longer verifies.
		_, err = svc.Verify(context.Background(), old)
		require.Error(t, err)

		// But it still refreshes: signature and subject are intact.
		fresh, err := svc.Refresh(context.Background(), old)
		require.NoError(t, err)
		assert.NotEqual(t, old, fresh)

		claims, err := svc.Verify(context.Background(), fresh)
		require.NoError(t, err)
		assert.Equal(t, "user-42", claims.Subject)
		assert.Equal(t, "buyer", claims.Role)
	})

	t.Run("rejects past the refresh horizon", func(t *testing.T) {
		issuedAt := time.Now().Add(-refreshTTL - time.Hour)
		issueCtx := requesttime.WithTime(context.Background(), issuedAt)
		old, err := svc.Issue(issueCtx, "user-42", "buyer")
		require.NoError(t, err)

		_, err = svc.Refresh(context.Background(), old)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthExpired))
	})

	t.Run("rejects tampered token", func(t *testing.T) {
		old, err := svc.Issue(context.Background(), "user-42", "buyer")
		require.NoError(t, err)

		_, err = svc.Refresh(context.Background(), old+"x")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
	})
}
