package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sayarat/internal/audit"
	"sayarat/internal/auth/store"
	platformMW "sayarat/internal/platform/middleware"
	rlmodels "sayarat/internal/ratelimit/models"
	"sayarat/internal/token"
	dErrors "sayarat/pkg/domain-errors"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTokens(t *testing.T) *token.Service {
	t.Helper()
	tokens, err := token.New(testSecret, 30*time.Minute, 15*time.Minute, 720*time.Hour)
	require.NoError(t, err)
	return tokens
}

func newService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(store.NewInMemoryUserStore(), newTokens(t), opts...)
	require.NoError(t, err)
	return svc
}

func seedUser(t *testing.T, svc *Service, email, password, role string) {
	t.Helper()
	_, err := svc.EnsureUser(context.Background(), email, password, "Test User", role)
	require.NoError(t, err)
}

// ctxWithClient runs a request through the metadata middleware so the context
// carries a resolved client IP and device, the way production requests do.
func ctxWithClient(t *testing.T) context.Context {
	t.Helper()
	var captured context.Context
	handler := platformMW.NewMetadata(nil).Handler(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured = r.Context()
	}))
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "9.8.7.6:1234"
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, captured)
	return captured
}

type fakeRateClearer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRateClearer) Clear(_ context.Context, clientKey string, class rlmodels.RouteClass) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(class)+":"+clientKey)
	return nil
}

func TestLogin_Succeeds(t *testing.T) {
	svc := newService(t)
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	result, err := svc.Login(context.Background(), "ali@example.com", "correct horse battery")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "ali@example.com", result.User.Email)
	assert.Equal(t, "buyer", result.User.Role)

	// The issued credential verifies immediately.
	claims, err := newTokens(t).Verify(context.Background(), result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.Subject)
	assert.Equal(t, "buyer", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newService(t)
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	_, err := svc.Login(context.Background(), "ali@example.com", "wrong")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	svc := newService(t)
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	_, wrongPass := svc.Login(context.Background(), "ali@example.com", "wrong")
	_, wrongMail := svc.Login(context.Background(), "nobody@example.com", "wrong")

	require.Error(t, wrongPass)
	require.Error(t, wrongMail)
	assert.Equal(t, wrongPass.Error(), wrongMail.Error(),
		"wrong email and wrong password must be indistinguishable")
}

func TestLogin_MissingFields(t *testing.T) {
	svc := newService(t)

	_, err := svc.Login(context.Background(), "", "secret")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Login(context.Background(), "ali@example.com", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLogin_ClearsRateRecord(t *testing.T) {
	rate := &fakeRateClearer{}
	svc := newService(t, WithRateClearer(rate))
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	ctx := ctxWithClient(t)
	_, err := svc.Login(ctx, "ali@example.com", "correct horse battery")
	require.NoError(t, err)

	require.Len(t, rate.calls, 1)
	assert.Equal(t, "login:9.8.7.6", rate.calls[0])

	t.Run("failed login does not clear", func(t *testing.T) {
		_, err := svc.Login(ctx, "ali@example.com", "wrong")
		require.Error(t, err)
		assert.Len(t, rate.calls, 1)
	})
}

func TestLogin_EmitsAuditEvents(t *testing.T) {
	sink := audit.NewInMemoryStore()
	svc := newService(t, WithAuditPublisher(audit.NewPublisher(sink)))
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	ctx := ctxWithClient(t)
	result, err := svc.Login(ctx, "ali@example.com", "correct horse battery")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "ali@example.com", "wrong")
	require.Error(t, err)

	succeeded, err := sink.ListByUser(ctx, result.User.ID)
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
	assert.Equal(t, audit.ActionLoginSucceeded, succeeded[0].Action)
	assert.Equal(t, "9.8.7.6", succeeded[0].ClientIP)
	assert.Contains(t, succeeded[0].Device, "Chrome")

	failed, err := sink.ListByUser(ctx, "")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, audit.ActionLoginFailed, failed[0].Action)
}

func TestRefresh(t *testing.T) {
	svc := newService(t)
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	result, err := svc.Login(context.Background(), "ali@example.com", "correct horse battery")
	require.NoError(t, err)

	t.Run("re-issues past hard expiry", func(t *testing.T) {
		later := requesttime.WithTime(context.Background(), time.Now().Add(24*time.Hour))
		refreshed, err := svc.Refresh(later, result.Token)
		require.NoError(t, err)
		assert.NotEmpty(t, refreshed.Token)
		assert.NotEqual(t, result.Token, refreshed.Token)
		assert.Equal(t, result.User.ID, refreshed.User.ID)
	})

	t.Run("rejects past the refresh horizon", func(t *testing.T) {
		tooLate := requesttime.WithTime(context.Background(), time.Now().Add(721*time.Hour))
		_, err := svc.Refresh(tooLate, result.Token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthExpired))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.Refresh(context.Background(), "not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
	})
}

func TestUserInfo(t *testing.T) {
	svc := newService(t)
	seedUser(t, svc, "ali@example.com", "correct horse battery", "buyer")

	result, err := svc.Login(context.Background(), "ali@example.com", "correct horse battery")
	require.NoError(t, err)

	info, err := svc.UserInfo(context.Background(), result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ali@example.com", info.Email)
	assert.Equal(t, "buyer", info.Role)

	t.Run("malformed subject", func(t *testing.T) {
		_, err := svc.UserInfo(context.Background(), "not-a-uuid")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthInvalid))
	})
}

func TestEnsureUser_Idempotent(t *testing.T) {
	svc := newService(t)

	first, err := svc.EnsureUser(context.Background(), "ali@example.com", "secret-pass", "Ali", "buyer")
	require.NoError(t, err)
	second, err := svc.EnsureUser(context.Background(), "ali@example.com", "different-pass", "Ali", "buyer")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
