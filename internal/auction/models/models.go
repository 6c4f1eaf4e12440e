// Package models defines the auction domain types and the status state machine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the auction lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// CanTransitionTo reports whether the state machine permits moving from the
// current status to the target. Ended and cancelled are terminal.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusScheduled:
		return target == StatusActive || target == StatusCancelled
	case StatusActive:
		return target == StatusEnded || target == StatusCancelled
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Auction is a car listing open for bidding. CurrentPrice and BidCount change
// only through the store's conditional bid write; every other field is fixed
// after creation except Status.
//
// Prices are whole rials. Bids below the starting price never clear because
// CurrentPrice starts at StartingPrice.
type Auction struct {
	ID            uuid.UUID `json:"id"`
	SellerID      string    `json:"seller_id"`
	Title         string    `json:"title"`
	StartingPrice int64     `json:"starting_price"`
	CurrentPrice  int64     `json:"current_price"`
	BidCount      int       `json:"bid_count"`
	Status        Status    `json:"status"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EffectiveStatus folds the clock into the stored status: a scheduled auction
// whose start time has passed is active, an active auction whose end time has
// passed is ended. The stored status lags until the service reconciles it.
func (a *Auction) EffectiveStatus(now time.Time) Status {
	switch a.Status {
	case StatusScheduled:
		if !now.Before(a.StartAt) {
			if !now.Before(a.EndAt) {
				return StatusEnded
			}
			return StatusActive
		}
	case StatusActive:
		if !now.Before(a.EndAt) {
			return StatusEnded
		}
	}
	return a.Status
}

// Bid is an accepted bid. Bids are created only through bid placement and are
// never mutated or deleted afterwards.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}
