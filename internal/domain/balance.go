package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Quantities go over the wire as JSON numbers with their exact decimal digits.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Balance one asset's holding within one account.
// Quantities are decimals so totals never drift through float rounding.
type Balance struct {
	Asset    string          `json:"asset"`
	Free     decimal.Decimal `json:"free"`
	Locked   decimal.Decimal `json:"locked"`
	Total    decimal.Decimal `json:"total"`
	USDValue decimal.Decimal `json:"usdValue"`
	// Unvalued is set when a non-zero quantity had no usable price.
	// USDValue is zero in that case.
	Unvalued bool `json:"unvalued,omitempty"`
}

// NewSpotBalance builds a balance from a free/locked split, total = free + locked.
func NewSpotBalance(asset string, free, locked decimal.Decimal) Balance {
	return Balance{
		Asset:  normalizeAsset(asset),
		Free:   free,
		Locked: locked,
		Total:  free.Add(locked),
	}
}

// NewWalletBalance builds a balance for futures-style wallets that only report the
// wallet balance and the available part of it.
func NewWalletBalance(asset string, wallet, available decimal.Decimal) Balance {
	locked := wallet.Sub(available)
	if locked.IsNegative() {
		locked = decimal.Zero
	}
	return Balance{
		Asset:  normalizeAsset(asset),
		Free:   available,
		Locked: locked,
		Total:  wallet,
	}
}

// NewLiquidBalance builds a fully liquid balance: free = total, locked = 0.
func NewLiquidBalance(asset string, total decimal.Decimal) Balance {
	return Balance{
		Asset:  normalizeAsset(asset),
		Free:   total,
		Locked: decimal.Zero,
		Total:  total,
	}
}

// IsZero reports whether the balance holds nothing.
func (b Balance) IsZero() bool {
	return b.Total.IsZero()
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
