package transport

import (
	"errors"
	"net/http"
	"strconv"
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

// CreateListingRequest represents the listing creation payload
type CreateListingRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"max=4000"`
	Price       string  `json:"price" validate:"required"`
	BuyNowPrice *string `json:"buy_now_price,omitempty"`
	CategoryID  string  `json:"category_id" validate:"required,uuid"`
	Condition   string  `json:"condition" validate:"required,oneof=New 'Like New' Good Fair Poor"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url"`
	Location    string  `json:"location" validate:"max=255"`
	IsAuction   bool    `json:"is_auction"`
	EndTime     *string `json:"end_time,omitempty"`
}

// CreateCategoryRequest represents the category creation payload
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// ListingResponse represents a listing in API responses
type ListingResponse struct {
	ID          string                `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Price       string                `json:"price"`
	BuyNowPrice *string               `json:"buy_now_price,omitempty"`
	CategoryID  string                `json:"category_id"`
	SellerID    string                `json:"seller_id"`
	Condition   string                `json:"condition"`
	ImageURL    string                `json:"image_url"`
	Location    string                `json:"location"`
	IsArchived  bool                  `json:"is_archived"`
	Auction     *AuctionStateResponse `json:"auction,omitempty"`
	CreatedAt   string                `json:"created_at"`
}

// ListingPageResponse wraps a paginated listing result
type ListingPageResponse struct {
	Listings []ListingResponse `json:"listings"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ListingHandler handles HTTP requests for catalog operations
type ListingHandler struct {
	listingService service.ListingService
	categoryRepo   repository.CategoryRepository
	logger         *zap.Logger
}

// NewListingHandler creates a new ListingHandler
func NewListingHandler(listingService service.ListingService, categoryRepo repository.CategoryRepository, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{
		listingService: listingService,
		categoryRepo:   categoryRepo,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *ListingHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/listings", func(r chi.Router) {
		r.Get("/", h.ListListings)
		r.Get("/{listingID}", h.GetListing)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateListing)
			r.Delete("/{listingID}", h.ArchiveListing)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.With(authMiddleware, adminOnly).Post("/", h.CreateCategory)
	})
}

// CreateListing handles listing creation
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := requesterID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateListingRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Listing validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input, err := h.buildListingInput(req, sellerID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.listingService.CreateListing(r.Context(), input, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCategoryNotFound):
			middleware.RespondWithError(w, http.StatusBadRequest, "category not found")
		case errors.Is(err, service.ErrInvalidPrice),
			errors.Is(err, service.ErrInvalidEndTime):
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("Listing creation failed", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create listing")
		}
		return
	}

	h.logger.Info("Listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("seller_id", sellerID.String()),
		zap.Bool("is_auction", listing.IsAuction()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, listingResponse(listing, time.Now().UTC()))
}

// buildListingInput parses the string-typed request fields into domain values.
func (h *ListingHandler) buildListingInput(req CreateListingRequest, sellerID uuid.UUID) (service.NewListingInput, error) {
	input := service.NewListingInput{
		Title:       req.Title,
		Description: req.Description,
		SellerID:    sellerID,
		Condition:   domain.Condition(req.Condition),
		ImageURL:    req.ImageURL,
		Location:    req.Location,
		IsAuction:   req.IsAuction,
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return input, errors.New("invalid price")
	}
	input.Price = price

	if req.BuyNowPrice != nil {
		buyNow, err := decimal.NewFromString(*req.BuyNowPrice)
		if err != nil {
			return input, errors.New("invalid buy-now price")
		}
		input.BuyNowPrice = &buyNow
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return input, errors.New("invalid category ID")
	}
	input.CategoryID = categoryID

	if req.EndTime != nil {
		end, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			return input, errors.New("invalid end time, expected RFC 3339")
		}
		input.EndTime = &end
	}

	return input, nil
}

// GetListing handles single listing lookup
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	listing, err := h.listingService.GetListing(r.Context(), listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
			return
		}
		h.logger.Error("Failed to get listing", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get listing")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, listingResponse(listing, time.Now().UTC()))
}

// ListListings handles browsing and searching listings. A q parameter
// switches to search mode; otherwise category/sort/pagination apply.
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseIntParam(query.Get("page"), 1)
	pageSize := parseIntParam(query.Get("page_size"), 20)

	var (
		listings []*domain.Listing
		total    int
		err      error
	)

	if q := query.Get("q"); q != "" {
		listings, total, err = h.listingService.SearchListings(r.Context(), q, page, pageSize)
	} else {
		var categoryID *uuid.UUID
		if c := query.Get("category_id"); c != "" {
			id, parseErr := uuid.Parse(c)
			if parseErr != nil {
				middleware.RespondWithError(w, http.StatusBadRequest, "invalid category ID")
				return
			}
			categoryID = &id
		}

		sortOrder := repository.SortOrderDesc
		if query.Get("order") == "asc" {
			sortOrder = repository.SortOrderAsc
		}

		listings, total, err = h.listingService.ListListings(r.Context(), categoryID, page, pageSize, query.Get("sort"), sortOrder)
	}

	if err != nil {
		h.logger.Error("Failed to list listings", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}

	now := time.Now().UTC()
	response := ListingPageResponse{
		Listings: make([]ListingResponse, 0, len(listings)),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}
	for _, listing := range listings {
		response.Listings = append(response.Listings, listingResponse(listing, now))
	}

	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// ArchiveListing handles seller-initiated archival
func (h *ListingHandler) ArchiveListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid listing ID")
		return
	}

	userID, ok := requesterID(r)
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.listingService.ArchiveListing(r.Context(), listingID, userID, time.Now().UTC()); err != nil {
		switch {
		case errors.Is(err, repository.ErrListingNotFound):
			middleware.RespondWithError(w, http.StatusNotFound, "listing not found")
		case errors.Is(err, service.ErrNotListingOwner):
			middleware.RespondWithError(w, http.StatusForbidden, "only the seller can archive a listing")
		default:
			h.logger.Error("Failed to archive listing", zap.Error(err))
			middleware.RespondWithError(w, http.StatusInternalServerError, "failed to archive listing")
		}
		return
	}

	h.logger.Info("Listing archived",
		zap.String("listing_id", listingID.String()),
		zap.String("user_id", userID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "listing archived"})
}

// ListCategories returns all categories
func (h *ListingHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryRepo.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// CreateCategory adds a new category (admin only)
func (h *ListingHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.categoryRepo.Create(r.Context(), category); err != nil {
		if errors.Is(err, repository.ErrCategoryAlreadyExists) {
			middleware.RespondWithError(w, http.StatusConflict, "category with this name already exists")
			return
		}
		h.logger.Error("Failed to create category", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to create category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

func parseIntParam(raw string, fallback int) int {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func listingResponse(l *domain.Listing, now time.Time) ListingResponse {
	resp := ListingResponse{
		ID:          l.ID.String(),
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price.StringFixed(2),
		CategoryID:  l.CategoryID.String(),
		SellerID:    l.SellerID.String(),
		Condition:   string(l.Condition),
		ImageURL:    l.ImageURL,
		Location:    l.Location,
		IsArchived:  l.IsArchived,
		CreatedAt:   l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.BuyNowPrice != nil {
		buyNow := l.BuyNowPrice.StringFixed(2)
		resp.BuyNowPrice = &buyNow
	}
	if l.Auction != nil {
		auction := auctionStateResponse(l.Auction, now)
		resp.Auction = &auction
	}
	return resp
}
