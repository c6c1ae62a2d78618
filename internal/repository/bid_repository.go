package repository

import (
	"context"
	"database/sql"
	"fmt"

	"bidmarket/internal/domain"

	"github.com/google/uuid"
)

// BidRepository is the append-only audit trail of accepted bids.
// Entries are never updated or deleted.
type BidRepository interface {
	Append(ctx context.Context, bid *domain.Bid) error
	FindByListingID(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error)
	CountByListingID(ctx context.Context, listingID uuid.UUID) (int, error)
}

type bidRepository struct {
	db *sql.DB
}

// NewBidRepository creates a new instance of BidRepository
func NewBidRepository(db *sql.DB) BidRepository {
	return &bidRepository{db: db}
}

// Append inserts a new bid record
func (r *bidRepository) Append(ctx context.Context, bid *domain.Bid) error {
	query := `
		INSERT INTO bids (id, listing_id, bidder_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		bid.ID,
		bid.ListingID,
		bid.BidderID,
		bid.Amount,
		bid.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to append bid: %w", err)
	}

	return nil
}

// FindByListingID retrieves all bids for a listing ordered by placement time ascending
func (r *bidRepository) FindByListingID(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	query := `
		SELECT id, listing_id, bidder_id, amount, placed_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY placed_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bid history: %w", err)
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		bid := &domain.Bid{}
		err := rows.Scan(
			&bid.ID,
			&bid.ListingID,
			&bid.BidderID,
			&bid.Amount,
			&bid.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return bids, nil
}

// CountByListingID returns the number of recorded bids for a listing
func (r *bidRepository) CountByListingID(ctx context.Context, listingID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM bids WHERE listing_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, listingID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}

	return count, nil
}
