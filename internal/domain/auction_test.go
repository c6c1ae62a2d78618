package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestComputeStatus_Boundaries(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	endIn := func(d time.Duration) *time.Time {
		end := now.Add(d)
		return &end
	}

	tests := []struct {
		name    string
		endTime *time.Time
		want    AuctionStatus
	}{
		{"no end time is always open", nil, AuctionStatusOpen},
		{"well before the window", endIn(72 * time.Hour), AuctionStatusOpen},
		{"just outside the window", endIn(EndingSoonWindow + time.Second), AuctionStatusOpen},
		{"exactly at the window boundary", endIn(EndingSoonWindow), AuctionStatusEndingSoon},
		{"inside the window", endIn(2 * time.Hour), AuctionStatusEndingSoon},
		{"one second left", endIn(time.Second), AuctionStatusEndingSoon},
		{"exactly at end time", endIn(0), AuctionStatusEnded},
		{"one second past end", endIn(-time.Second), AuctionStatusEnded},
		{"long past end", endIn(-48 * time.Hour), AuctionStatusEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &AuctionState{
				CurrentBid: decimal.NewFromInt(100),
				BidCount:   3,
				EndTime:    tt.endTime,
			}
			if got := ComputeStatus(a, now); got != tt.want {
				t.Errorf("ComputeStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMinimumNextBid_OneCentAboveCurrent(t *testing.T) {
	a := &AuctionState{CurrentBid: decimal.RequireFromString("2100.00")}

	got := MinimumNextBid(a)
	want := decimal.RequireFromString("2100.01")

	if !got.Equal(want) {
		t.Errorf("MinimumNextBid() = %s, want %s", got, want)
	}
}

// Property: the minimum next bid is always strictly above the current bid
// by exactly one cent, for any non-negative current bid.
func TestProperty_MinimumNextBidStrictlyAboveCurrent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("minimum next bid exceeds current bid by one cent", prop.ForAll(
		func(cents int64) bool {
			current := decimal.New(cents, -2)
			a := &AuctionState{CurrentBid: current}

			min := MinimumNextBid(a)
			if !min.GreaterThan(current) {
				return false
			}
			return min.Sub(current).Equal(MinimumIncrement)
		},
		gen.Int64Range(0, 1_000_000_000),
	))

	properties.TestingRun(t)
}

// Property: an auction with no end time reports open at every instant.
func TestProperty_NoEndTimeNeverEnds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("nil end time always derives open", prop.ForAll(
		func(offsetHours int) bool {
			a := &AuctionState{CurrentBid: decimal.NewFromInt(10)}
			now := base.Add(time.Duration(offsetHours) * time.Hour)
			return ComputeStatus(a, now) == AuctionStatusOpen
		},
		gen.IntRange(-100_000, 100_000),
	))

	properties.TestingRun(t)
}

func TestHasEnded(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	end := now.Add(time.Hour)

	open := &AuctionState{EndTime: &end}
	if open.HasEnded(now) {
		t.Error("auction ending in an hour reported as ended")
	}
	if !open.HasEnded(end) {
		t.Error("auction at exactly its end time must be ended")
	}

	perpetual := &AuctionState{}
	if perpetual.HasEnded(now.Add(1000 * time.Hour)) {
		t.Error("auction with no end time reported as ended")
	}
}
