package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bidmarket/internal/domain"
	"bidmarket/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotListingOwner = errors.New("only the seller can archive a listing")
	ErrInvalidPrice    = errors.New("price must be non-negative")
	ErrInvalidEndTime  = errors.New("auction end time must be in the future")
)

// NewListingInput carries the caller-supplied fields for listing creation.
type NewListingInput struct {
	Title       string
	Description string
	Price       decimal.Decimal
	BuyNowPrice *decimal.Decimal
	CategoryID  uuid.UUID
	SellerID    uuid.UUID
	Condition   domain.Condition
	ImageURL    string
	Location    string
	IsAuction   bool
	EndTime     *time.Time
}

// ListingService owns listing lifecycle outside of bidding: creation,
// lookup, browsing, and archival.
type ListingService interface {
	CreateListing(ctx context.Context, input NewListingInput, now time.Time) (*domain.Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	ListListings(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Listing, int, error)
	SearchListings(ctx context.Context, query string, page, pageSize int) ([]*domain.Listing, int, error)
	ArchiveListing(ctx context.Context, id, requesterID uuid.UUID, now time.Time) error
}

type listingService struct {
	listingRepo  repository.ListingRepository
	categoryRepo repository.CategoryRepository
}

// NewListingService creates a new instance of ListingService
func NewListingService(
	listingRepo repository.ListingRepository,
	categoryRepo repository.CategoryRepository,
) ListingService {
	return &listingService{
		listingRepo:  listingRepo,
		categoryRepo: categoryRepo,
	}
}

// CreateListing validates and stores a new listing. Auction listings get
// their auction sub-record seeded with the starting price and a zero bid
// count.
func (s *listingService) CreateListing(ctx context.Context, input NewListingInput, now time.Time) (*domain.Listing, error) {
	if input.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if input.BuyNowPrice != nil && input.BuyNowPrice.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if input.EndTime != nil && !input.EndTime.After(now) {
		return nil, ErrInvalidEndTime
	}

	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}

	listing := &domain.Listing{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		Price:       input.Price,
		BuyNowPrice: input.BuyNowPrice,
		CategoryID:  input.CategoryID,
		SellerID:    input.SellerID,
		Condition:   input.Condition,
		ImageURL:    input.ImageURL,
		Location:    input.Location,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if input.IsAuction {
		listing.Auction = &domain.AuctionState{
			CurrentBid: input.Price,
			BidCount:   0,
			EndTime:    input.EndTime,
		}
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

// GetListing retrieves a listing by ID
func (s *listingService) GetListing(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return listing, nil
}

// ListListings retrieves non-archived listings with filtering and pagination
func (s *listingService) ListListings(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Listing, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.listingRepo.List(ctx, categoryID, page, pageSize, sortBy, sortOrder)
}

// SearchListings searches listings by title or description
func (s *listingService) SearchListings(ctx context.Context, query string, page, pageSize int) ([]*domain.Listing, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.listingRepo.Search(ctx, query, page, pageSize)
}

// ArchiveListing archives a listing on behalf of its seller. Bid history
// stays queryable after archival.
func (s *listingService) ArchiveListing(ctx context.Context, id, requesterID uuid.UUID, now time.Time) error {
	listing, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return err
		}
		return fmt.Errorf("failed to get listing: %w", err)
	}

	if listing.SellerID != requesterID {
		return ErrNotListingOwner
	}

	if err := s.listingRepo.Archive(ctx, id, now); err != nil {
		return fmt.Errorf("failed to archive listing: %w", err)
	}

	return nil
}
