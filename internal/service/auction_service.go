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
	"go.uber.org/zap"
)

const (
	// maxBidAttempts bounds the internal re-read/re-validate loop taken
	// when an optimistic write loses a race. The retry is invisible to
	// the caller.
	maxBidAttempts = 3
)

var (
	ErrNotAnAuction    = errors.New("listing is not an auction")
	ErrAuctionEnded    = errors.New("auction has ended")
	ErrListingArchived = errors.New("listing is archived")
	ErrOwnListingBid   = errors.New("sellers cannot bid on their own listings")
	ErrNoBuyNowPrice   = errors.New("listing has no buy-now price")

	// ErrInvalidBidAmount rejects amounts finer than cent granularity.
	// The catalog stores money in cents; a sub-cent amount would be
	// rounded on write and the stored current bid would stop strictly
	// increasing.
	ErrInvalidBidAmount = errors.New("bid amount must be in whole cents")

	// ErrStorageUnavailable marks persistence failures so they are never
	// mistaken for domain rejections. Wrapped errors carry the cause.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// BidTooLowError rejects a bid that does not strictly exceed the current
// bid. It carries the minimum acceptable amount so callers can present a
// corrected value.
type BidTooLowError struct {
	CurrentBid decimal.Decimal
	Minimum    decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: current bid is %s, minimum acceptable bid is %s",
		e.CurrentBid.StringFixed(2), e.Minimum.StringFixed(2))
}

// AuctionView pairs a listing with its derived auction status for display.
type AuctionView struct {
	Listing        *domain.Listing
	Status         domain.AuctionStatus
	MinimumNextBid decimal.Decimal
}

// AuctionService is the sole authority for accepting bids and deriving
// auction state. Time is always injected by the caller; the engine never
// reads the ambient clock.
type AuctionService interface {
	PlaceBid(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error)
	BuyNow(ctx context.Context, listingID, buyerID uuid.UUID, now time.Time) (*domain.Listing, error)
	GetHistory(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error)
	ListAuctions(ctx context.Context, now time.Time, endingSoonOnly bool) ([]*AuctionView, error)
}

type auctionService struct {
	listingRepo repository.ListingRepository
	bidRepo     repository.BidRepository
	logger      *zap.Logger
}

// NewAuctionService creates a new instance of AuctionService
func NewAuctionService(
	listingRepo repository.ListingRepository,
	bidRepo repository.BidRepository,
	logger *zap.Logger,
) AuctionService {
	return &auctionService{
		listingRepo: listingRepo,
		bidRepo:     bidRepo,
		logger:      logger,
	}
}

// PlaceBid validates and applies a bid. Preconditions are checked in
// order, each producing a distinct failure; on success exactly one
// catalog write and one history append happen and the updated auction
// state is returned.
//
// Two bidders racing against the same stale current bid are resolved by
// the optimistic write: the loser is re-read and re-validated against the
// winner's state, succeeding only if it still strictly exceeds it.
func (s *auctionService) PlaceBid(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error) {
	if !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidBidAmount
	}

	for attempt := 1; attempt <= maxBidAttempts; attempt++ {
		listing, err := s.loadListing(ctx, listingID)
		if err != nil {
			return nil, err
		}

		if err := s.validateBid(listing, bidderID, amount, now); err != nil {
			return nil, err
		}

		baseline := listing.Auction.CurrentBid
		err = s.listingRepo.ApplyBid(ctx, listingID, baseline, amount, now)
		if err != nil {
			if errors.Is(err, repository.ErrListingConflict) {
				s.logger.Debug("Bid lost optimistic race, re-validating",
					zap.String("listing_id", listingID.String()),
					zap.Int("attempt", attempt),
				)
				continue
			}
			if errors.Is(err, repository.ErrListingNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		bid := &domain.Bid{
			ID:        uuid.New(),
			ListingID: listingID,
			BidderID:  bidderID,
			Amount:    amount,
			Timestamp: now,
		}

		if err := s.bidRepo.Append(ctx, bid); err != nil {
			// The catalog write already landed; undo it so the bid count
			// and history never diverge.
			if revertErr := s.listingRepo.RevertBid(ctx, listingID, amount, baseline, now); revertErr != nil {
				s.logger.Error("Failed to revert catalog write after history append failure",
					zap.String("listing_id", listingID.String()),
					zap.Error(revertErr),
				)
			}
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}

		s.logger.Info("Bid accepted",
			zap.String("listing_id", listingID.String()),
			zap.String("bidder_id", bidderID.String()),
			zap.String("amount", amount.StringFixed(2)),
			zap.Int("bid_count", listing.Auction.BidCount+1),
		)

		return &domain.AuctionState{
			CurrentBid: amount,
			BidCount:   listing.Auction.BidCount + 1,
			EndTime:    listing.Auction.EndTime,
		}, nil
	}

	// Retries exhausted: a final re-validation decides whether the bid is
	// genuinely too low now, or storage is flapping.
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.validateBid(listing, bidderID, amount, now); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: bid conflict retries exhausted", ErrStorageUnavailable)
}

// loadListing reads a fresh listing, mapping storage failures distinctly
// from a missing listing.
func (s *auctionService) loadListing(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return listing, nil
}

// validateBid checks the bid preconditions in order against a fresh
// listing read. It never mutates anything.
func (s *auctionService) validateBid(listing *domain.Listing, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if listing.IsArchived {
		return ErrListingArchived
	}
	if !listing.IsAuction() {
		return ErrNotAnAuction
	}
	if listing.SellerID == bidderID {
		return ErrOwnListingBid
	}
	if listing.Auction.HasEnded(now) {
		return ErrAuctionEnded
	}
	if !amount.GreaterThan(listing.Auction.CurrentBid) {
		return &BidTooLowError{
			CurrentBid: listing.Auction.CurrentBid,
			Minimum:    domain.MinimumNextBid(listing.Auction),
		}
	}
	return nil
}

// BuyNow purchases a listing at its buy-now price, bypassing bidding.
// The listing is archived; no payment handling happens here.
func (s *auctionService) BuyNow(ctx context.Context, listingID, buyerID uuid.UUID, now time.Time) (*domain.Listing, error) {
	listing, err := s.loadListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	if listing.IsArchived {
		return nil, ErrListingArchived
	}
	if listing.BuyNowPrice == nil {
		return nil, ErrNoBuyNowPrice
	}
	if listing.SellerID == buyerID {
		return nil, ErrOwnListingBid
	}
	if listing.Auction != nil && listing.Auction.HasEnded(now) {
		return nil, ErrAuctionEnded
	}

	if err := s.listingRepo.Archive(ctx, listingID, now); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.logger.Info("Listing bought at buy-now price",
		zap.String("listing_id", listingID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("price", listing.BuyNowPrice.StringFixed(2)),
	)

	listing.IsArchived = true
	listing.UpdatedAt = now
	return listing, nil
}

// GetHistory returns all accepted bids for a listing ordered by placement
// time ascending.
func (s *auctionService) GetHistory(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	bids, err := s.bidRepo.FindByListingID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return bids, nil
}

// ListAuctions returns active auctions with derived status, ordered with
// the soonest-ending first. With endingSoonOnly set, auctions outside the
// ending-soon window are dropped.
func (s *auctionService) ListAuctions(ctx context.Context, now time.Time, endingSoonOnly bool) ([]*AuctionView, error) {
	listings, err := s.listingRepo.ListActiveAuctions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	views := []*AuctionView{}
	for _, listing := range listings {
		status := domain.ComputeStatus(listing.Auction, now)
		if status == domain.AuctionStatusEnded {
			continue
		}
		if endingSoonOnly && status != domain.AuctionStatusEndingSoon {
			continue
		}
		views = append(views, &AuctionView{
			Listing:        listing,
			Status:         status,
			MinimumNextBid: domain.MinimumNextBid(listing.Auction),
		})
	}

	return views, nil
}
