package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaultIncrementPolicy(t *testing.T) {
	p := DefaultIncrementPolicy()
	tests := []struct {
		price int64
		want  int64
	}{
		{0, 500},
		{9_999, 500},
		{10_000, 1_000},
		{99_999, 1_000},
		{100_000, 5_000},
		{999_999, 5_000},
		{1_000_000, 10_000},
		{10_000_000, 50_000},
		{20_000_000, 100_000},
		{20_100_001, 101_000}, // 0.5% rounded up to the next 1,000
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.MinIncrement(tt.price), "price %d", tt.price)
	}
}

func TestIncrementPolicy_Deterministic(t *testing.T) {
	p := DefaultIncrementPolicy()
	for i := 0; i < 100; i++ {
		assert.Equal(t, p.MinIncrement(123_456_789), p.MinIncrement(123_456_789))
	}
}

func TestIncrementPolicy_EdgeCases(t *testing.T) {
	assert.Equal(t, int64(1), IncrementPolicy{}.MinIncrement(1_000))

	zeroStep := IncrementPolicy{Tiers: []IncrementTier{{UpTo: 100, Step: 0}}}
	assert.Equal(t, int64(1), zeroStep.MinIncrement(50))
	// prices past the last bounded tier fall back to it
	assert.Equal(t, int64(1), zeroStep.MinIncrement(500))

	pct := IncrementPolicy{Tiers: []IncrementTier{{Percent: decimal.RequireFromString("0.1")}}}
	assert.Equal(t, int64(11), pct.MinIncrement(101))
}

func TestAuction_ExplicitIncrementOverridesPolicy(t *testing.T) {
	a := &Auction{StartingPrice: 100_000, MinBidIncrement: int64p(5_000)}
	assert.Equal(t, int64(105_000), a.MinNextBid(DefaultIncrementPolicy()))

	a.MinBidIncrement = nil
	a.CurrentBid = int64p(1_000_000)
	assert.Equal(t, int64(1_010_000), a.MinNextBid(DefaultIncrementPolicy()))
}
