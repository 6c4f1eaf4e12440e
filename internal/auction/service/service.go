// Package service implements the auction bid ledger: admission of bids under
// concurrent callers with a strictly increasing price per auction.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sayarat/internal/audit"
	"sayarat/internal/auction/models"
	"sayarat/internal/auction/store"
	"sayarat/internal/auction/tracer"
	"sayarat/internal/platform/metrics"
	platformMW "sayarat/internal/platform/middleware"
	dErrors "sayarat/pkg/domain-errors"
	requesttime "sayarat/pkg/platform/middleware/requesttime"
)

// maxCASRetries bounds how many times a bid is re-attempted after losing the
// conditional write to a concurrent bid. Beyond this the caller resubmits.
const maxCASRetries = 2

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

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Service owns all writes to auction price and bid count. Handlers never touch
// the store directly.
type Service struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
	tracer  tracer.Tracer
}

func New(st store.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, dErrors.New(dErrors.CodeConfig, "auction store is required")
	}
	s := &Service{
		store:  st,
		logger: slog.Default(),
		tracer: tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateAuctionInput carries the fields an administrator supplies when
// listing a car.
type CreateAuctionInput struct {
	SellerID      string
	Title         string
	StartingPrice int64
	StartAt       time.Time
	EndAt         time.Time
}

// Create lists a new auction. It opens immediately when the start time has
// already passed, otherwise it is scheduled.
func (s *Service) Create(ctx context.Context, in CreateAuctionInput) (*models.Auction, error) {
	now := requesttime.Now(ctx)

	if in.Title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if in.StartingPrice <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "starting price must be positive")
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, dErrors.New(dErrors.CodeValidation, "end time must be after start time")
	}
	if !in.EndAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "end time is in the past")
	}

	status := models.StatusScheduled
	if !now.Before(in.StartAt) {
		status = models.StatusActive
	}

	auction := &models.Auction{
		ID:            uuid.New(),
		SellerID:      in.SellerID,
		Title:         in.Title,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		Status:        status,
		StartAt:       in.StartAt,
		EndAt:         in.EndAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateAuction(ctx, auction); err != nil {
		return nil, err
	}

	s.logger.Info("auction created",
		"auction_id", auction.ID,
		"status", auction.Status,
		"starting_price", auction.StartingPrice,
	)
	return auction, nil
}

// Get returns the auction with its clock-reconciled status.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, auction, requesttime.Now(ctx)), nil
}

// ListBids returns the accepted bids for an auction in acceptance order.
func (s *Service) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	return s.store.ListBids(ctx, auctionID)
}

// AcceptedBid is the outcome of a successful bid placement.
type AcceptedBid struct {
	Bid          *models.Bid
	CurrentPrice int64
}

// PlaceBid admits or rejects a bid. Preconditions are checked in a fixed
// order, each with its own reason code: the auction exists, it is accepting
// bids, the amount is positive, and the amount strictly exceeds the current
// price. Acceptance itself is a conditional write against the price read
// beforehand; when a concurrent bid wins that race the attempt is re-evaluated
// against the new price a bounded number of times and then rejected with
// BID_TOO_LOW so the caller decides whether to resubmit.
func (s *Service) PlaceBid(ctx context.Context, auctionID uuid.UUID, bidderID string, amount int64) (*AcceptedBid, error) {
	now := requesttime.Now(ctx)

	ctx, span := s.tracer.Start(ctx, tracer.SpanPlaceBid,
		tracer.String(tracer.AttrAuctionID, auctionID.String()),
		tracer.Int64(tracer.AttrBidAmount, amount),
	)

	retries := 0
	for {
		auction, err := s.store.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, s.rejectBid(ctx, span, auctionID, bidderID, err)
		}

		auction = s.reconcile(ctx, auction, now)
		if auction.Status != models.StatusActive {
			err := dErrors.New(dErrors.CodeAuctionClosed, "auction is not accepting bids")
			return nil, s.rejectBid(ctx, span, auctionID, bidderID, err)
		}
		if amount <= 0 {
			err := dErrors.New(dErrors.CodeInvalidAmount, "bid amount must be positive")
			return nil, s.rejectBid(ctx, span, auctionID, bidderID, err)
		}
		if amount <= auction.CurrentPrice {
			err := dErrors.New(dErrors.CodeBidTooLow, "bid must exceed the current price")
			return nil, s.rejectBid(ctx, span, auctionID, bidderID, err)
		}

		bid := &models.Bid{
			ID:        uuid.New(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			PlacedAt:  now,
		}

		err = s.store.ApplyBid(ctx, bid, auction.CurrentPrice)
		if err == nil {
			s.acceptBid(ctx, span, bid, retries)
			return &AcceptedBid{Bid: bid, CurrentPrice: bid.Amount}, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, s.rejectBid(ctx, span, auctionID, bidderID, err)
		}

		// Lost the conditional write to a concurrent bid.
		if s.metrics != nil {
			s.metrics.IncrementBidCASConflicts()
		}
		if retries >= maxCASRetries {
			err := dErrors.New(dErrors.CodeBidTooLow, "a concurrent bid raised the price")
			return nil, s.rejectBid(ctx, span, auctionID, bidderID, err)
		}
		retries++
	}
}

// Close ends an active auction by administrative action.
func (s *Service) Close(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return s.transition(ctx, id, models.StatusEnded)
}

// Cancel withdraws an auction that has not finished. Cancelled is terminal.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return s.transition(ctx, id, models.StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target models.Status) (*models.Auction, error) {
	now := requesttime.Now(ctx)

	auction, err := s.store.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	auction = s.reconcile(ctx, auction, now)

	if !auction.Status.CanTransitionTo(target) {
		return nil, dErrors.New(dErrors.CodeConflict,
			"auction cannot move from "+string(auction.Status)+" to "+string(target))
	}
	if err := s.store.SetStatus(ctx, id, auction.Status, target, now); err != nil {
		return nil, err
	}

	auction.Status = target
	auction.UpdatedAt = now
	s.logger.Info("auction status changed", "auction_id", id, "status", target)
	return auction, nil
}

// reconcile folds the clock into the stored status, persisting the transition
// best-effort. A write conflict means another request already reconciled; the
// effective status is correct either way.
func (s *Service) reconcile(ctx context.Context, auction *models.Auction, now time.Time) *models.Auction {
	effective := auction.EffectiveStatus(now)
	if effective == auction.Status {
		return auction
	}

	// A scheduled auction whose end time already passed walks the full
	// scheduled -> active -> ended path so every persisted step is a legal
	// transition.
	steps := []models.Status{effective}
	if auction.Status == models.StatusScheduled && effective == models.StatusEnded {
		steps = []models.Status{models.StatusActive, models.StatusEnded}
	}

	from := auction.Status
	for _, next := range steps {
		err := s.store.SetStatus(ctx, auction.ID, from, next, now)
		if err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			s.logger.Error("auction status reconcile failed", "error", err, "auction_id", auction.ID)
			break
		}
		from = next
	}
	auction.Status = effective
	return auction
}

func (s *Service) acceptBid(ctx context.Context, span tracer.Span, bid *models.Bid, retries int) {
	span.SetAttributes(
		tracer.Int(tracer.AttrCASRetries, retries),
		tracer.Int64(tracer.AttrFinalPrice, bid.Amount),
	)
	span.AddEvent(tracer.EventBidAccepted)
	span.End(nil)

	if s.metrics != nil {
		s.metrics.IncrementBidsAccepted()
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			UserID:   bid.BidderID,
			Action:   audit.ActionBidAccepted,
			ClientIP: platformMW.GetClientIP(ctx),
			Device:   audit.DeviceLabel(platformMW.GetUserAgent(ctx)),
		})
	}
	s.logger.Info("bid accepted",
		"auction_id", bid.AuctionID,
		"bid_id", bid.ID,
		"amount", bid.Amount,
	)
}

func (s *Service) rejectBid(ctx context.Context, span tracer.Span, auctionID uuid.UUID, bidderID string, err error) error {
	code := dErrors.CodeOf(err)
	span.AddEvent(tracer.EventBidRejected, tracer.String("reason", string(code)))
	span.End(err)

	if s.metrics != nil {
		s.metrics.IncrementBidsRejected(string(code))
	}
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			UserID:   bidderID,
			Action:   audit.ActionBidRejected,
			ClientIP: platformMW.GetClientIP(ctx),
			Device:   audit.DeviceLabel(platformMW.GetUserAgent(ctx)),
			Reason:   string(code),
		})
	}
	s.logger.Info("bid rejected", "auction_id", auctionID, "reason", code)
	return err
}
