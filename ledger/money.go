package ledger

import "github.com/shopspring/decimal"

// Money values are exact fixed-point decimals at scale 2. Binary floats
// never touch an amount.

// RoundMoney rounds to scale 2, half away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DailyInterest computes round(balance * rate / 36500, 2) - simple daily
// interest on a 365-day year, rate in percent.
func DailyInterest(balance, rate decimal.Decimal) decimal.Decimal {
	return balance.Mul(rate).DivRound(decimal.NewFromInt(36500), 2)
}

// MoneyEq compares two amounts exactly at scale 2.
func MoneyEq(a, b decimal.Decimal) bool {
	return RoundMoney(a).Equal(RoundMoney(b))
}

// Zero is the canonical zero amount.
var Zero = decimal.Zero
