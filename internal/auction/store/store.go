// Package store persists auctions and their accepted bids.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sayarat/internal/auction/models"
)

// Store is the persistence contract for the auction ledger.
//
// ApplyBid is the single write path for CurrentPrice and BidCount: it appends
// the bid and raises the price in one atomic step, conditional on the stored
// price still equalling expectedPrice and the auction still being active.
// A lost race surfaces as CONFLICT so the caller can re-read and decide.
type Store interface {
	CreateAuction(ctx context.Context, auction *models.Auction) error
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	ApplyBid(ctx context.Context, bid *models.Bid, expectedPrice int64) error
	// SetStatus transitions id from -> to; fails with CONFLICT when the stored
	// status is no longer `from`.
	SetStatus(ctx context.Context, id uuid.UUID, from, to models.Status, now time.Time) error
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error)
}
