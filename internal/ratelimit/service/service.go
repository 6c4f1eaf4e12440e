// Package service implements the admission controller: a fixed window with an
// escalating block, keyed by (client identity, route class).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sayarat/internal/audit"
	"sayarat/internal/platform/metrics"
	"sayarat/internal/ratelimit/config"
	"sayarat/internal/ratelimit/models"
	"sayarat/internal/ratelimit/store/record"
	dErrors "sayarat/pkg/domain-errors"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
)

// AuditPublisher receives block events. Optional.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store   record.Store
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
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

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

func New(store record.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rate record store is required")
	}

	svc := &Service{
		store:  store,
		config: config.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check admits or denies one request from clientKey against the class's
// window. The read-increment-write on the underlying record is atomic per
// key, so two concurrent requests can never both be admitted past the
// threshold.
//
// An unknown route class is a programming error and allows by default:
// availability is preferred over over-blocking for a mis-registered class.
func (s *Service) Check(ctx context.Context, clientKey string, class models.RouteClass) (*models.Result, error) {
	limit, ok := s.config.Class(class)
	if !ok {
		s.logger.Warn("unknown route class, allowing by policy", "class", class)
		return &models.Result{Allowed: true}, nil
	}

	now := requesttime.Now(ctx)
	key := recordKey(clientKey, class)

	current, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read rate record")
	}
	if current != nil && current.BlockedUntil != nil {
		if current.IsBlocked(now) {
			return s.denied(ctx, clientKey, class, limit, *current.BlockedUntil, now), nil
		}
		// The block has lapsed. Drop the record here, not in the store, so
		// every backend starts the client on a fresh window instead of
		// re-counting pre-block attempts still inside a longer window.
		if err := s.store.Reset(ctx, key); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate record")
		}
	}

	updated, err := s.store.Incr(ctx, key, limit.Window, retention(limit), now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to increment rate record")
	}

	if updated.Attempts > limit.MaxAttempts {
		until := updated.BlockedUntil
		if until == nil || !now.Before(*until) {
			blockUntil := now.Add(limit.Block)
			if err := s.store.Block(ctx, key, blockUntil, retention(limit)); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write block")
			}
			until = &blockUntil
		}
		return s.denied(ctx, clientKey, class, limit, *until, now), nil
	}

	if s.metrics != nil {
		s.metrics.IncrementRateLimitAllowed(class.String())
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit.MaxAttempts,
		Remaining: limit.MaxAttempts - updated.Attempts,
		ResetAt:   updated.WindowStart.Add(limit.Window),
	}, nil
}

// Clear removes the record for a (client, class) pair. Called after a
// successful login so earlier failed attempts stop counting.
func (s *Service) Clear(ctx context.Context, clientKey string, class models.RouteClass) error {
	if err := s.store.Reset(ctx, recordKey(clientKey, class)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear rate record")
	}
	return nil
}

func (s *Service) denied(ctx context.Context, clientKey string, class models.RouteClass, limit config.Limit, until time.Time, now time.Time) *models.Result {
	if s.metrics != nil {
		s.metrics.IncrementRateLimitBlocked(class.String())
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			Timestamp: now,
			ClientIP:  clientKey,
			Action:    audit.ActionRateLimitBlocked,
			Reason:    class.String(),
		})
	}
	return &models.Result{
		Allowed:    false,
		Limit:      limit.MaxAttempts,
		Remaining:  0,
		ResetAt:    until,
		RetryAfter: retryAfterSeconds(until, now),
	}
}

func recordKey(clientKey string, class models.RouteClass) string {
	return fmt.Sprintf("%s:%s", class, clientKey)
}

// retention keeps a record around long enough to cover its window and any
// block before the sweep may reclaim it.
func retention(limit config.Limit) time.Duration {
	return limit.Window + limit.Block
}

func retryAfterSeconds(until, now time.Time) int {
	seconds := int(until.Sub(now).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
