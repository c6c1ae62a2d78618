package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an immutable accepted offer against a listing. Timestamp is
// assigned by the engine at acceptance, never taken from the client.
type Bid struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ListingID uuid.UUID       `json:"listing_id" db:"listing_id"`
	BidderID  uuid.UUID       `json:"bidder_id" db:"bidder_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Timestamp time.Time       `json:"timestamp" db:"placed_at"`
}
