package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Condition describes the physical state of a listed item
type Condition string

const (
	ConditionNew     Condition = "New"
	ConditionLikeNew Condition = "Like New"
	ConditionGood    Condition = "Good"
	ConditionFair    Condition = "Fair"
	ConditionPoor    Condition = "Poor"
)

// Listing represents an item for sale, optionally auctioned.
// When Auction is nil the listing is fixed-price only.
type Listing struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	Title       string           `json:"title" db:"title"`
	Description string           `json:"description" db:"description"`
	Price       decimal.Decimal  `json:"price" db:"price"`
	BuyNowPrice *decimal.Decimal `json:"buy_now_price,omitempty" db:"buy_now_price"`
	CategoryID  uuid.UUID        `json:"category_id" db:"category_id"`
	SellerID    uuid.UUID        `json:"seller_id" db:"seller_id"`
	Condition   Condition        `json:"condition" db:"condition"`
	ImageURL    string           `json:"image_url" db:"image_url"`
	Location    string           `json:"location" db:"location"`
	IsArchived  bool             `json:"is_archived" db:"is_archived"`
	Auction     *AuctionState    `json:"auction,omitempty"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// IsAuction reports whether the listing carries an auction sub-record.
func (l *Listing) IsAuction() bool {
	return l.Auction != nil
}

// Category represents a listing category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
