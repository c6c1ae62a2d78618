package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the derived display state of an auction
type AuctionStatus string

const (
	AuctionStatusOpen       AuctionStatus = "open"
	AuctionStatusEndingSoon AuctionStatus = "ending-soon"
	AuctionStatusEnded      AuctionStatus = "ended"
)

// EndingSoonWindow is how close to its end time an auction must be
// before it is reported as ending-soon.
const EndingSoonWindow = 24 * time.Hour

// MinimumIncrement is the canonical amount by which a new bid must
// exceed the current one: a single cent. The strict greater-than rule
// already forces a positive increase, so the smallest currency unit is
// the only defensible floor.
var MinimumIncrement = decimal.New(1, -2)

// AuctionState is the bidding sub-record embedded in an auctioned Listing.
// CurrentBid is seeded to the starting price at listing creation and is
// monotonically non-decreasing; BidCount equals the number of accepted bids.
type AuctionState struct {
	CurrentBid decimal.Decimal `json:"current_bid" db:"current_bid"`
	BidCount   int             `json:"bid_count" db:"bid_count"`
	EndTime    *time.Time      `json:"end_time,omitempty" db:"auction_end"`
}

// ComputeStatus derives the auction status at the given instant.
// An auction with no end time never ends. The end boundary is inclusive
// on the ended side: a bid at exactly the end time is too late.
func ComputeStatus(a *AuctionState, now time.Time) AuctionStatus {
	if a.EndTime == nil {
		return AuctionStatusOpen
	}
	if !now.Before(*a.EndTime) {
		return AuctionStatusEnded
	}
	if a.EndTime.Sub(now) <= EndingSoonWindow {
		return AuctionStatusEndingSoon
	}
	return AuctionStatusOpen
}

// MinimumNextBid returns the lowest amount the next bid may carry.
func MinimumNextBid(a *AuctionState) decimal.Decimal {
	return a.CurrentBid.Add(MinimumIncrement)
}

// HasEnded reports whether the auction's end time has passed at the given instant.
func (a *AuctionState) HasEnded(now time.Time) bool {
	return a.EndTime != nil && !now.Before(*a.EndTime)
}
