package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sayarat/internal/auction/models"
	dErrors "sayarat/pkg/domain-errors"
)

// InMemoryStore keeps auctions and bids in mutex-guarded maps. The single
// mutex makes ApplyBid atomic relative to all other writers, which is the
// property the ledger's price invariant rests on.
type InMemoryStore struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*models.Auction
	bids     map[uuid.UUID][]*models.Bid
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		auctions: make(map[uuid.UUID]*models.Auction),
		bids:     make(map[uuid.UUID][]*models.Bid),
	}
}

func (s *InMemoryStore) CreateAuction(_ context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.auctions[auction.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "auction already exists")
	}
	copied := *auction
	s.auctions[auction.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetAuction(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	auction, exists := s.auctions[id]
	if !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "auction not found")
	}
	copied := *auction
	return &copied, nil
}

func (s *InMemoryStore) ApplyBid(_ context.Context, bid *models.Bid, expectedPrice int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, exists := s.auctions[bid.AuctionID]
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "auction not found")
	}
	if auction.Status != models.StatusActive {
		return dErrors.New(dErrors.CodeAuctionClosed, "auction is not accepting bids")
	}
	if auction.CurrentPrice != expectedPrice || auction.CurrentPrice >= bid.Amount {
		return dErrors.New(dErrors.CodeConflict, "price changed since last read")
	}

	auction.CurrentPrice = bid.Amount
	auction.BidCount++
	auction.UpdatedAt = bid.PlacedAt

	copied := *bid
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], &copied)
	return nil
}

func (s *InMemoryStore) SetStatus(_ context.Context, id uuid.UUID, from, to models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, exists := s.auctions[id]
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "auction not found")
	}
	if auction.Status != from {
		return dErrors.New(dErrors.CodeConflict, "auction status changed since last read")
	}
	auction.Status = to
	auction.UpdatedAt = now
	return nil
}

func (s *InMemoryStore) ListBids(_ context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.auctions[auctionID]; !exists {
		return nil, dErrors.New(dErrors.CodeNotFound, "auction not found")
	}

	stored := s.bids[auctionID]
	bids := make([]*models.Bid, 0, len(stored))
	for _, bid := range stored {
		copied := *bid
		bids = append(bids, &copied)
	}
	// Acceptance order and placement time agree; sort keeps the contract
	// explicit for callers.
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Amount < bids[j].Amount
	})
	return bids, nil
}
