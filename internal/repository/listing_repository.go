package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bidmarket/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrListingNotFound = errors.New("listing not found")

	// ErrListingConflict is returned by ApplyBid when the stored current bid
	// no longer matches the caller's baseline, i.e. another bid was accepted
	// between the caller's read and this write.
	ErrListingConflict = errors.New("listing was modified concurrently")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ListingRepository defines the interface for listing data access.
// It is the single writer for listing records; the auction engine mutates
// the auction sub-record only through ApplyBid.
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Listing, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Listing, int, error)
	Archive(ctx context.Context, id uuid.UUID, now time.Time) error

	// ApplyBid records an accepted bid against the listing's auction
	// sub-record. The write is gated on current_bid still equaling
	// expectedCurrentBid; the monotonicity of accepted bids makes the
	// current bid itself a sufficient version token. Returns
	// ErrListingConflict when the gate fails.
	ApplyBid(ctx context.Context, id uuid.UUID, expectedCurrentBid, newBid decimal.Decimal, now time.Time) error

	// RevertBid undoes an ApplyBid whose history append failed, restoring
	// the previous current bid and bid count. Gated on the accepted bid
	// still being in place.
	RevertBid(ctx context.Context, id uuid.UUID, acceptedBid, previousBid decimal.Decimal, now time.Time) error

	// ListActiveAuctions returns all non-archived auction listings ordered
	// by end time ascending, auctions without an end time last.
	ListActiveAuctions(ctx context.Context) ([]*domain.Listing, error)
}

type listingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new instance of ListingRepository
func NewListingRepository(db *sql.DB) ListingRepository {
	return &listingRepository{db: db}
}

const listingColumns = `id, title, description, price, buy_now_price, category_id, seller_id,
		condition, image_url, location, is_archived, is_auction, current_bid, bid_count,
		auction_end, created_at, updated_at`

// Create inserts a new listing into the database
func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (id, title, description, price, buy_now_price, category_id, seller_id,
			condition, image_url, location, is_archived, is_auction, current_bid, bid_count,
			auction_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	var (
		isAuction  bool
		currentBid decimal.NullDecimal
		bidCount   int
		auctionEnd sql.NullTime
	)
	if listing.Auction != nil {
		isAuction = true
		currentBid = decimal.NullDecimal{Decimal: listing.Auction.CurrentBid, Valid: true}
		bidCount = listing.Auction.BidCount
		if listing.Auction.EndTime != nil {
			auctionEnd = sql.NullTime{Time: *listing.Auction.EndTime, Valid: true}
		}
	}

	var buyNow decimal.NullDecimal
	if listing.BuyNowPrice != nil {
		buyNow = decimal.NullDecimal{Decimal: *listing.BuyNowPrice, Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.Title,
		listing.Description,
		listing.Price,
		buyNow,
		listing.CategoryID,
		listing.SellerID,
		listing.Condition,
		listing.ImageURL,
		listing.Location,
		listing.IsArchived,
		isAuction,
		currentBid,
		bidCount,
		auctionEnd,
		listing.CreatedAt,
		listing.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// FindByID retrieves a listing by ID. The read is always served from
// storage so the auction engine never validates against a stale bid.
func (r *listingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)

	listing, err := scanListing(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}

	return listing, nil
}

// ApplyBid performs the optimistic single-statement write for an accepted bid.
func (r *listingRepository) ApplyBid(ctx context.Context, id uuid.UUID, expectedCurrentBid, newBid decimal.Decimal, now time.Time) error {
	query := `
		UPDATE listings
		SET current_bid = $3, bid_count = bid_count + 1, updated_at = $4
		WHERE id = $1 AND is_auction AND NOT is_archived AND current_bid = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, expectedCurrentBid, newBid, now)
	if err != nil {
		return fmt.Errorf("failed to apply bid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Distinguish a vanished listing from a lost race.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM listings WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check listing existence: %w", err)
		}
		if !exists {
			return ErrListingNotFound
		}
		return ErrListingConflict
	}

	return nil
}

// RevertBid rolls the auction sub-record back to its pre-bid state.
func (r *listingRepository) RevertBid(ctx context.Context, id uuid.UUID, acceptedBid, previousBid decimal.Decimal, now time.Time) error {
	query := `
		UPDATE listings
		SET current_bid = $3, bid_count = bid_count - 1, updated_at = $4
		WHERE id = $1 AND is_auction AND current_bid = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, acceptedBid, previousBid, now)
	if err != nil {
		return fmt.Errorf("failed to revert bid: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrListingConflict
	}

	return nil
}

// Archive flags a listing as archived, removing it from active consideration.
// Archived listings are retained so bid history stays queryable.
func (r *listingRepository) Archive(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE listings
		SET is_archived = TRUE, updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("failed to archive listing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrListingNotFound
	}

	return nil
}

// ListActiveAuctions retrieves all non-archived auction listings ordered by
// end time ascending with perpetual auctions last.
func (r *listingRepository) ListActiveAuctions(ctx context.Context) ([]*domain.Listing, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE is_auction AND NOT is_archived
		ORDER BY auction_end ASC NULLS LAST, created_at DESC
	`, listingColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active auctions: %w", err)
	}
	defer rows.Close()

	return collectListings(rows)
}

// List retrieves non-archived listings with optional category filtering,
// pagination, and sorting
func (r *listingRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Listing, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"title":       true,
		"price":       true,
		"created_at":  true,
		"auction_end": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	whereClause := "WHERE NOT is_archived"
	args := []interface{}{}
	argIndex := 1

	if categoryID != nil {
		whereClause = fmt.Sprintf("%s AND category_id = $%d", whereClause, argIndex)
		args = append(args, *categoryID)
		argIndex++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, listingColumns, whereClause, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings, err := collectListings(rows)
	if err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

// Search searches non-archived listings by title or description with pagination
func (r *listingRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Listing, int, error) {
	// An empty query degrades to a plain listing
	if strings.TrimSpace(query) == "" {
		return r.List(ctx, nil, page, pageSize, "created_at", SortOrderDesc)
	}

	searchPattern := "%" + query + "%"

	countQuery := `
		SELECT COUNT(*)
		FROM listings
		WHERE NOT is_archived AND (title ILIKE $1 OR description ILIKE $1)
	`
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, searchPattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	offset := (page - 1) * pageSize

	searchQuery := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE NOT is_archived AND (title ILIKE $1 OR description ILIKE $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, listingColumns)

	rows, err := r.db.QueryContext(ctx, searchQuery, searchPattern, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search listings: %w", err)
	}
	defer rows.Close()

	listings, err := collectListings(rows)
	if err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanListing maps one row onto a Listing, reconstructing the auction
// sub-record from its flattened columns.
func scanListing(row rowScanner) (*domain.Listing, error) {
	var (
		listing    domain.Listing
		buyNow     decimal.NullDecimal
		isAuction  bool
		currentBid decimal.NullDecimal
		bidCount   int
		auctionEnd sql.NullTime
	)

	err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Description,
		&listing.Price,
		&buyNow,
		&listing.CategoryID,
		&listing.SellerID,
		&listing.Condition,
		&listing.ImageURL,
		&listing.Location,
		&listing.IsArchived,
		&isAuction,
		&currentBid,
		&bidCount,
		&auctionEnd,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if buyNow.Valid {
		listing.BuyNowPrice = &buyNow.Decimal
	}

	if isAuction {
		auction := &domain.AuctionState{
			CurrentBid: currentBid.Decimal,
			BidCount:   bidCount,
		}
		if auctionEnd.Valid {
			end := auctionEnd.Time
			auction.EndTime = &end
		}
		listing.Auction = auction
	}

	return &listing, nil
}

func collectListings(rows *sql.Rows) ([]*domain.Listing, error) {
	listings := []*domain.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, nil
}
