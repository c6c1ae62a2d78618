package transport

import (
	"errors"
	"net/http"
	"time"

	"bidmarket/internal/domain"
	"bidmarket/internal/middleware"
	"bidmarket/internal/repository"
	"bidmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlaceBidRequest represents the bid placement payload. The amount comes
// in as a string so no precision is lost before decimal parsing.
type PlaceBidRequest struct {
	Amount string `json:"amount" validate:"required"`
}

// AuctionStateResponse represents the auction sub-record after an operation
type AuctionStateResponse struct {
	CurrentBid     string  `json:"current_bid"`
	BidCount       int     `json:"bid_count"`
	EndTime        *string `json:"end_time,omitempty"`
	Status         string  `json:"status"`
	MinimumNextBid string  `json:"minimum_next_bid"`
}

// BidResponse represents one bid history entry
type BidResponse struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	BidderID  string `json:"bidder_id"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

// AuctionListItem represents one entry of the active-auction listing
type AuctionListItem struct {
	Listing        ListingResponse `json:"listing"`
	Status         string          `json:"status"`
	MinimumNextBid string          `json:"minimum_next_bid"`
}

// AuctionHandler handles HTTP requests for bidding operations
type AuctionHandler struct {
	auctionService service.AuctionService
	logger         *zap.Logger
}

// NewAuctionHandler creates a new AuctionHandler
func NewAuctionHandler(auctionService service.AuctionService, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		logger:         logger,
	}
}

// RegisterRoutes registers all auction routes
func (h *AuctionHandler) RegisterRoutes(r chi.Router, authMiddleware, bidRateLimit func(http.Handler) http.Handler) {
	r.Get("/api/auctions", h.ListAuctions)

	r.Route("/api/listings/{listingID}", func(r chi.Router) {
		r.Get("/bids", h.GetHistory)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.With(bidRateLimit).Post("/bids", h.PlaceBid)
			r.Post("/buy-now", h.BuyNow)
		})
	})
}

// PlaceBid handles bid placement
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	bidderID, ok := requesterID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PlaceBidRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Bid validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid bid amount")
		return
	}

	auction, err := h.auctionService.PlaceBid(r.Context(), listingID, bidderID, amount, time.Now().UTC())
	if err != nil {
		h.respondBidError(w, listingID, err)
		return
	}

	h.logger.Info("Bid placed",
		zap.String("listing_id", listingID.String()),
		zap.String("bidder_id", bidderID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, auctionStateResponse(auction, time.Now().UTC()))
}

// respondBidError maps engine rejections onto distinct HTTP responses.
// A too-low bid carries the minimum acceptable amount so the UI can
// pre-fill a corrected value.
func (h *AuctionHandler) respondBidError(w http.ResponseWriter, listingID uuid.UUID, err error) {
	var tooLow *service.BidTooLowError
	switch {
	case errors.Is(err, repository.ErrListingNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
	case errors.Is(err, service.ErrListingArchived):
		middleware.RespondWithError(w, http.StatusGone, "listing is archived")
	case errors.Is(err, service.ErrNotAnAuction):
		middleware.RespondWithError(w, http.StatusBadRequest, "listing is not an auction")
	case errors.Is(err, service.ErrOwnListingBid):
		middleware.RespondWithError(w, http.StatusForbidden, "you cannot bid on your own listing")
	case errors.Is(err, service.ErrAuctionEnded):
		middleware.RespondWithError(w, http.StatusConflict, "auction has ended")
	case errors.Is(err, service.ErrNoBuyNowPrice):
		middleware.RespondWithError(w, http.StatusBadRequest, "listing has no buy-now price")
	case errors.Is(err, service.ErrInvalidBidAmount):
		middleware.RespondWithError(w, http.StatusBadRequest, "bid amount must be in whole cents")
	case errors.As(err, &tooLow):
		middleware.RespondWithErrorDetails(w, http.StatusUnprocessableEntity, "bid too low", map[string]interface{}{
			"current_bid": tooLow.CurrentBid.StringFixed(2),
			"minimum_bid": tooLow.Minimum.StringFixed(2),
		})
	case errors.Is(err, service.ErrStorageUnavailable):
		h.logger.Error("Storage unavailable during bid operation",
			zap.String("listing_id", listingID.String()),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		h.logger.Error("Bid operation failed",
			zap.String("listing_id", listingID.String()),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process bid")
	}
}

// BuyNow handles immediate purchase at the buy-now price
func (h *AuctionHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	buyerID, ok := requesterID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	listing, err := h.auctionService.BuyNow(r.Context(), listingID, buyerID, time.Now().UTC())
	if err != nil {
		h.respondBidError(w, listingID, err)
		return
	}

	h.logger.Info("Buy-now completed",
		zap.String("listing_id", listingID.String()),
		zap.String("buyer_id", buyerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, listingResponse(listing, time.Now().UTC()))
}

// GetHistory returns the bid history for a listing, oldest first
func (h *AuctionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	bids, err := h.auctionService.GetHistory(r.Context(), listingID)
	if err != nil {
		h.logger.Error("Failed to get bid history",
			zap.String("listing_id", listingID.String()),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}

	response := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		response = append(response, BidResponse{
			ID:        bid.ID.String(),
			ListingID: bid.ListingID.String(),
			BidderID:  bid.BidderID.String(),
			Amount:    bid.Amount.StringFixed(2),
			Timestamp: bid.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// ListAuctions returns active auctions ordered soonest-ending first.
// Pass ?filter=ending-soon for only auctions inside the ending-soon window.
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	endingSoonOnly := r.URL.Query().Get("filter") == "ending-soon"

	now := time.Now().UTC()
	views, err := h.auctionService.ListAuctions(r.Context(), now, endingSoonOnly)
	if err != nil {
		h.logger.Error("Failed to list auctions", zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
		return
	}

	response := make([]AuctionListItem, 0, len(views))
	for _, view := range views {
		response = append(response, AuctionListItem{
			Listing:        listingResponse(view.Listing, now),
			Status:         string(view.Status),
			MinimumNextBid: view.MinimumNextBid.StringFixed(2),
		})
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// requesterID pulls the authenticated user out of the request context.
func requesterID(r *http.Request) (uuid.UUID, bool) {
	idStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func auctionStateResponse(a *domain.AuctionState, now time.Time) AuctionStateResponse {
	resp := AuctionStateResponse{
		CurrentBid:     a.CurrentBid.StringFixed(2),
		BidCount:       a.BidCount,
		Status:         string(domain.ComputeStatus(a, now)),
		MinimumNextBid: domain.MinimumNextBid(a).StringFixed(2),
	}
	if a.EndTime != nil {
		end := a.EndTime.UTC().Format(time.RFC3339)
		resp.EndTime = &end
	}
	return resp
}
