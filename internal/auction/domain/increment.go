package domain

import "github.com/shopspring/decimal"

// IncrementTier applies to prices below UpTo (UpTo == 0 means unbounded).
// The step is max(Step, Percent of the price rounded up to RoundTo).
type IncrementTier struct {
	UpTo    int64
	Step    int64
	Percent decimal.Decimal
	RoundTo int64
}

// IncrementPolicy maps price magnitude to the minimum bid step.
// Pure and deterministic so client hints and server validation agree.
type IncrementPolicy struct {
	Tiers []IncrementTier
}

func DefaultIncrementPolicy() IncrementPolicy {
	return IncrementPolicy{Tiers: []IncrementTier{
		{UpTo: 10_000, Step: 500},
		{UpTo: 100_000, Step: 1_000},
		{UpTo: 1_000_000, Step: 5_000},
		{UpTo: 10_000_000, Step: 10_000},
		{Step: 50_000, Percent: decimal.RequireFromString("0.005"), RoundTo: 1_000},
	}}
}

// MinIncrement returns the step for the given current price, never less than 1
func (p IncrementPolicy) MinIncrement(price int64) int64 {
	if len(p.Tiers) == 0 {
		return 1
	}
	for _, t := range p.Tiers {
		if t.UpTo == 0 || price < t.UpTo {
			return t.increment(price)
		}
	}
	return p.Tiers[len(p.Tiers)-1].increment(price)
}

func (t IncrementTier) increment(price int64) int64 {
	step := t.Step
	if !t.Percent.IsZero() {
		roundTo := t.RoundTo
		if roundTo < 1 {
			roundTo = 1
		}
		unit := decimal.NewFromInt(roundTo)
		pct := decimal.NewFromInt(price).Mul(t.Percent).Div(unit).Ceil().Mul(unit).IntPart()
		if pct > step {
			step = pct
		}
	}
	if step < 1 {
		return 1
	}
	return step
}
