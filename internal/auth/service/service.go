// Package service implements login, credential refresh, and user info for the
// auction platform.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"sayarat/internal/audit"
	"sayarat/internal/auth/models"
	"sayarat/internal/auth/store"
	"sayarat/internal/platform/metrics"
	platformMW "sayarat/internal/platform/middleware"
	rlmodels "sayarat/internal/ratelimit/models"
	"sayarat/internal/token"
	dErrors "sayarat/pkg/domain-errors"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
	"sayarat/pkg/secrets"
)

// TokenIssuer is the credential operations the auth flow needs.
type TokenIssuer interface {
	Issue(ctx context.Context, subject, role string) (string, error)
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
	Refresh(ctx context.Context, tokenString string) (string, error)
}

// RateClearer resets the rate record for a client after a successful login so
// earlier failed attempts stop counting against it.
type RateClearer interface {
	Clear(ctx context.Context, clientKey string, class rlmodels.RouteClass) error
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) {
		s.audit = p
	}
}

func WithRateClearer(r RateClearer) Option {
	return func(s *Service) {
		s.rate = r
	}
}

type Service struct {
	users   store.UserStore
	tokens  TokenIssuer
	rate    RateClearer
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
}

func New(users store.UserStore, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, dErrors.New(dErrors.CodeConfig, "user store is required")
	}
	if tokens == nil {
		return nil, dErrors.New(dErrors.CodeConfig, "token service is required")
	}
	s := &Service{
		users:  users,
		tokens: tokens,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoginResult is the successful login payload.
type LoginResult struct {
	Token string          `json:"token"`
	User  models.UserInfo `json:"user"`
}

// Login authenticates an email and password pair and issues a credential.
// Wrong email and wrong password are indistinguishable to the caller. A
// successful login clears the client's login rate record so earlier failures
// stop counting.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.rejectLogin(ctx, email)
	}
	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		return nil, s.rejectLogin(ctx, email)
	}

	signed, err := s.tokens.Issue(ctx, user.ID.String(), user.Role)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementLogins()
		s.metrics.IncrementTokensIssued()
	}
	s.emit(ctx, user.ID.String(), audit.ActionLoginSucceeded, "")
	s.clearLoginRate(ctx)

	s.logger.Info("login succeeded", "user_id", user.ID)
	return &LoginResult{Token: signed, User: user.Info()}, nil
}

// Refresh trades an existing credential for a fresh one.
func (s *Service) Refresh(ctx context.Context, tokenString string) (*LoginResult, error) {
	signed, err := s.tokens.Refresh(ctx, tokenString)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementAuthFailures()
		}
		return nil, err
	}

	// The fresh token always verifies; claims identify the subject.
	claims, err := s.tokens.Verify(ctx, signed)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{Token: signed}
	if userID, parseErr := uuid.Parse(claims.Subject); parseErr == nil {
		if user, findErr := s.users.FindByID(ctx, userID); findErr == nil {
			result.User = user.Info()
		}
	}

	if s.metrics != nil {
		s.metrics.IncrementTokensRefreshed()
	}
	s.emit(ctx, claims.Subject, audit.ActionTokenRefreshed, "")

	s.logger.Info("credential refreshed", "user_id", claims.Subject)
	return result, nil
}

// UserInfo returns the account behind an authenticated subject.
func (s *Service) UserInfo(ctx context.Context, subject string) (models.UserInfo, error) {
	userID, err := uuid.Parse(subject)
	if err != nil {
		return models.UserInfo{}, dErrors.New(dErrors.CodeAuthInvalid, "credential subject is not a user id")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.UserInfo{}, err
	}
	return user.Info(), nil
}

// EnsureUser creates an account when the email is not taken and returns the
// existing one otherwise. Used to seed accounts at startup.
func (s *Service) EnsureUser(ctx context.Context, email, password, name, role string) (*models.User, error) {
	if existing, err := s.users.FindByEmail(ctx, email); err == nil {
		return existing, nil
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    requesttime.Now(ctx),
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user seeded", "email", email, "role", role)
	return user, nil
}

func (s *Service) rejectLogin(ctx context.Context, email string) error {
	if s.metrics != nil {
		s.metrics.IncrementAuthFailures()
	}
	s.emit(ctx, "", audit.ActionLoginFailed, "invalid credentials")
	s.logger.Info("login failed", "email", email)
	return dErrors.New(dErrors.CodeAuthInvalid, "invalid email or password")
}

func (s *Service) clearLoginRate(ctx context.Context) {
	if s.rate == nil {
		return
	}
	clientIP := platformMW.GetClientIP(ctx)
	if clientIP == "" {
		return
	}
	if err := s.rate.Clear(ctx, clientIP, rlmodels.ClassLogin); err != nil {
		s.logger.Error("could not clear login rate record", "error", err, "client_ip", clientIP)
	}
}

func (s *Service) emit(ctx context.Context, userID string, action audit.Action, reason string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, audit.Event{
		UserID:   userID,
		Action:   action,
		ClientIP: platformMW.GetClientIP(ctx),
		Device:   audit.DeviceLabel(platformMW.GetUserAgent(ctx)),
		Reason:   reason,
	})
}
