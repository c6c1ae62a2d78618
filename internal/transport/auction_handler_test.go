package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
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

type mockAuctionService struct {
	placeBidFn     func(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error)
	buyNowFn       func(ctx context.Context, listingID, buyerID uuid.UUID, now time.Time) (*domain.Listing, error)
	getHistoryFn   func(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error)
	listAuctionsFn func(ctx context.Context, now time.Time, endingSoonOnly bool) ([]*service.AuctionView, error)
}

func (m *mockAuctionService) PlaceBid(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error) {
	return m.placeBidFn(ctx, listingID, bidderID, amount, now)
}

func (m *mockAuctionService) BuyNow(ctx context.Context, listingID, buyerID uuid.UUID, now time.Time) (*domain.Listing, error) {
	return m.buyNowFn(ctx, listingID, buyerID, now)
}

func (m *mockAuctionService) GetHistory(ctx context.Context, listingID uuid.UUID) ([]*domain.Bid, error) {
	return m.getHistoryFn(ctx, listingID)
}

func (m *mockAuctionService) ListAuctions(ctx context.Context, now time.Time, endingSoonOnly bool) ([]*service.AuctionView, error) {
	return m.listAuctionsFn(ctx, now, endingSoonOnly)
}

// stubAuth injects a fixed authenticated user, standing in for the JWT
// middleware.
func stubAuth(userID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func newAuctionTestRouter(svc service.AuctionService, userID uuid.UUID) chi.Router {
	r := chi.NewRouter()
	handler := NewAuctionHandler(svc, zap.NewNop())
	handler.RegisterRoutes(r, stubAuth(userID), passthrough)
	return r
}

func postBid(t *testing.T, router chi.Router, listingID uuid.UUID, amount string) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(PlaceBidRequest{Amount: amount})
	req := httptest.NewRequest("POST", fmt.Sprintf("/api/listings/%s/bids", listingID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPlaceBidHandler_Accepted(t *testing.T) {
	listingID := uuid.New()
	bidderID := uuid.New()
	end := time.Now().UTC().Add(48 * time.Hour)

	svc := &mockAuctionService{
		placeBidFn: func(ctx context.Context, gotListing, gotBidder uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error) {
			if gotListing != listingID {
				t.Errorf("listing ID = %s, want %s", gotListing, listingID)
			}
			if gotBidder != bidderID {
				t.Errorf("bidder ID = %s, want %s", gotBidder, bidderID)
			}
			if !amount.Equal(decimal.RequireFromString("760.00")) {
				t.Errorf("amount = %s, want 760.00", amount)
			}
			return &domain.AuctionState{
				CurrentBid: amount,
				BidCount:   13,
				EndTime:    &end,
			}, nil
		},
	}

	router := newAuctionTestRouter(svc, bidderID)
	w := postBid(t, router, listingID, "760.00")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp AuctionStateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.CurrentBid != "760.00" {
		t.Errorf("current_bid = %s, want 760.00", resp.CurrentBid)
	}
	if resp.BidCount != 13 {
		t.Errorf("bid_count = %d, want 13", resp.BidCount)
	}
	if resp.MinimumNextBid != "760.01" {
		t.Errorf("minimum_next_bid = %s, want 760.01", resp.MinimumNextBid)
	}
}

func TestPlaceBidHandler_TooLowCarriesDetails(t *testing.T) {
	svc := &mockAuctionService{
		placeBidFn: func(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error) {
			return nil, &service.BidTooLowError{
				CurrentBid: decimal.RequireFromString("750.00"),
				Minimum:    decimal.RequireFromString("750.01"),
			}
		},
	}

	router := newAuctionTestRouter(svc, uuid.New())
	w := postBid(t, router, uuid.New(), "750.00")

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}

	var resp middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error.Details["current_bid"] != "750.00" {
		t.Errorf("current_bid detail = %v, want 750.00", resp.Error.Details["current_bid"])
	}
	if resp.Error.Details["minimum_bid"] != "750.01" {
		t.Errorf("minimum_bid detail = %v, want 750.01", resp.Error.Details["minimum_bid"])
	}
}

func TestPlaceBidHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"listing not found", repository.ErrListingNotFound, http.StatusNotFound},
		{"archived", service.ErrListingArchived, http.StatusGone},
		{"not an auction", service.ErrNotAnAuction, http.StatusBadRequest},
		{"own listing", service.ErrOwnListingBid, http.StatusForbidden},
		{"auction ended", service.ErrAuctionEnded, http.StatusConflict},
		{"sub-cent amount", service.ErrInvalidBidAmount, http.StatusBadRequest},
		{"storage unavailable", service.ErrStorageUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockAuctionService{
				placeBidFn: func(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error) {
					return nil, tc.serviceErr
				},
			}

			router := newAuctionTestRouter(svc, uuid.New())
			w := postBid(t, router, uuid.New(), "100.00")

			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestPlaceBidHandler_BadInput(t *testing.T) {
	svc := &mockAuctionService{
		placeBidFn: func(ctx context.Context, listingID, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) (*domain.AuctionState, error) {
			t.Error("service should not be called for invalid input")
			return nil, nil
		},
	}
	router := newAuctionTestRouter(svc, uuid.New())

	t.Run("malformed listing ID", func(t *testing.T) {
		body, _ := json.Marshal(PlaceBidRequest{Amount: "10.00"})
		req := httptest.NewRequest("POST", "/api/listings/not-a-uuid/bids", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("non-numeric amount", func(t *testing.T) {
		w := postBid(t, router, uuid.New(), "ten dollars")
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("missing amount", func(t *testing.T) {
		req := httptest.NewRequest("POST", fmt.Sprintf("/api/listings/%s/bids", uuid.New()), bytes.NewReader([]byte("{}")))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestGetHistoryHandler(t *testing.T) {
	listingID := uuid.New()
	placedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	svc := &mockAuctionService{
		getHistoryFn: func(ctx context.Context, gotListing uuid.UUID) ([]*domain.Bid, error) {
			return []*domain.Bid{
				{ID: uuid.New(), ListingID: gotListing, BidderID: uuid.New(), Amount: decimal.RequireFromString("100.00"), Timestamp: placedAt},
				{ID: uuid.New(), ListingID: gotListing, BidderID: uuid.New(), Amount: decimal.RequireFromString("110.00"), Timestamp: placedAt.Add(time.Minute)},
			}, nil
		},
	}

	router := newAuctionTestRouter(svc, uuid.New())

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/listings/%s/bids", listingID), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp []BidResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("got %d bids, want 2", len(resp))
	}
	if resp[0].Amount != "100.00" || resp[1].Amount != "110.00" {
		t.Errorf("history out of order: %s then %s", resp[0].Amount, resp[1].Amount)
	}
	if resp[0].Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %s, want RFC3339 UTC", resp[0].Timestamp)
	}
}

func TestListAuctionsHandler(t *testing.T) {
	end := time.Now().UTC().Add(2 * time.Hour)

	listing := &domain.Listing{
		ID:       uuid.New(),
		Title:    "Vintage Rolex Submariner",
		Price:    decimal.RequireFromString("500.00"),
		SellerID: uuid.New(),
		Auction: &domain.AuctionState{
			CurrentBid: decimal.RequireFromString("750.00"),
			BidCount:   12,
			EndTime:    &end,
		},
	}

	var gotEndingSoonOnly bool
	svc := &mockAuctionService{
		listAuctionsFn: func(ctx context.Context, now time.Time, endingSoonOnly bool) ([]*service.AuctionView, error) {
			gotEndingSoonOnly = endingSoonOnly
			return []*service.AuctionView{
				{
					Listing:        listing,
					Status:         domain.AuctionStatusEndingSoon,
					MinimumNextBid: decimal.RequireFromString("750.01"),
				},
			}, nil
		},
	}

	router := newAuctionTestRouter(svc, uuid.New())

	req := httptest.NewRequest("GET", "/api/auctions?filter=ending-soon", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !gotEndingSoonOnly {
		t.Error("filter=ending-soon was not forwarded to the service")
	}

	var resp []AuctionListItem
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("got %d items, want 1", len(resp))
	}
	if resp[0].Status != string(domain.AuctionStatusEndingSoon) {
		t.Errorf("status = %s, want %s", resp[0].Status, domain.AuctionStatusEndingSoon)
	}
	if resp[0].MinimumNextBid != "750.01" {
		t.Errorf("minimum_next_bid = %s, want 750.01", resp[0].MinimumNextBid)
	}
}
