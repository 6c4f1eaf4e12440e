package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sayarat/internal/auction/models"
	dErrors "sayarat/pkg/domain-errors"
)

// PostgresStore persists auctions and bids in PostgreSQL. The conditional
// UPDATE in ApplyBid carries the atomicity guarantee; row-level locking inside
// the transaction serializes concurrent bids on the same auction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateAuction(ctx context.Context, auction *models.Auction) error {
	query := `
		INSERT INTO auctions (id, seller_id, title, starting_price, current_price, bid_count, status, start_at, end_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		auction.ID, auction.SellerID, auction.Title,
		auction.StartingPrice, auction.CurrentPrice, auction.BidCount,
		string(auction.Status), auction.StartAt, auction.EndAt,
		auction.CreatedAt, auction.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create auction: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeConflict, "auction already exists")
	}
	return nil
}

func (s *PostgresStore) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	query := `
		SELECT id, seller_id, title, starting_price, current_price, bid_count, status, start_at, end_at, created_at, updated_at
		FROM auctions
		WHERE id = $1
	`
	auction, err := scanAuction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, dErrors.New(dErrors.CodeNotFound, "auction not found")
		}
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return auction, nil
}

func (s *PostgresStore) ApplyBid(ctx context.Context, bid *models.Bid, expectedPrice int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bid tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	update := `
		UPDATE auctions
		SET current_price = $1, bid_count = bid_count + 1, updated_at = $2
		WHERE id = $3 AND status = 'active' AND current_price = $4 AND current_price < $1
	`
	result, err := tx.ExecContext(ctx, update, bid.Amount, bid.PlacedAt, bid.AuctionID, expectedPrice)
	if err != nil {
		return fmt.Errorf("apply bid: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply bid: %w", err)
	}
	if affected == 0 {
		return s.classifyBidFailure(ctx, tx, bid.AuctionID)
	}

	insert := `
		INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.ExecContext(ctx, insert, bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.PlacedAt); err != nil {
		return fmt.Errorf("record bid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bid: %w", err)
	}
	return nil
}

// classifyBidFailure distinguishes why the conditional update matched nothing.
func (s *PostgresStore) classifyBidFailure(ctx context.Context, tx *sql.Tx, auctionID uuid.UUID) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM auctions WHERE id = $1`, auctionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return dErrors.New(dErrors.CodeNotFound, "auction not found")
	}
	if err != nil {
		return fmt.Errorf("classify bid failure: %w", err)
	}
	if models.Status(status) != models.StatusActive {
		return dErrors.New(dErrors.CodeAuctionClosed, "auction is not accepting bids")
	}
	return dErrors.New(dErrors.CodeConflict, "price changed since last read")
}

func (s *PostgresStore) SetStatus(ctx context.Context, id uuid.UUID, from, to models.Status, now time.Time) error {
	query := `
		UPDATE auctions
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := s.db.ExecContext(ctx, query, string(to), now, id, string(from))
	if err != nil {
		return fmt.Errorf("set auction status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set auction status: %w", err)
	}
	if affected == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, `SELECT status FROM auctions WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return dErrors.New(dErrors.CodeNotFound, "auction not found")
		}
		if err != nil {
			return fmt.Errorf("set auction status: %w", err)
		}
		return dErrors.New(dErrors.CodeConflict, "auction status changed since last read")
	}
	return nil
}

func (s *PostgresStore) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, auction_id, bidder_id, amount, placed_at
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount ASC
	`
	rows, err := s.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid := &models.Bid{}
		if err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.BidderID, &bid.Amount, &bid.PlacedAt); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	auction := &models.Auction{}
	var status string
	err := row.Scan(
		&auction.ID, &auction.SellerID, &auction.Title,
		&auction.StartingPrice, &auction.CurrentPrice, &auction.BidCount,
		&status, &auction.StartAt, &auction.EndAt,
		&auction.CreatedAt, &auction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	auction.Status = models.Status(status)
	return auction, nil
}
