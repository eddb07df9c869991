package pricer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/holdings/internal/domain"
)

// DefaultStablecoins assets valued 1:1 in USD without a lookup.
var DefaultStablecoins = []string{"USDT", "USDC", "BUSD", "FDUSD", "USD1", "USDE"}

// quoteFallback order in which quote currencies are tried.
var quoteFallback = []string{"USDT", "BUSD", "FDUSD"}

// Valuator converts asset quantities to USD.
type Valuator struct {
	stablecoins map[string]struct{}
}

// NewValuator creates a valuator with the default stablecoin set plus extra.
func NewValuator(extraStablecoins ...string) *Valuator {
	v := &Valuator{stablecoins: make(map[string]struct{}, len(DefaultStablecoins)+len(extraStablecoins))}
	for _, s := range DefaultStablecoins {
		v.stablecoins[s] = struct{}{}
	}
	for _, s := range extraStablecoins {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			v.stablecoins[s] = struct{}{}
		}
	}
	return v
}

// IsStablecoin reports whether asset is pegged 1:1 to USD.
func (v *Valuator) IsStablecoin(asset string) bool {
	_, ok := v.stablecoins[strings.ToUpper(asset)]
	return ok
}

// ValueUSD returns the USD value of qty units of asset.
// priced is false when no quote pair exists; the value is zero then.
func (v *Valuator) ValueUSD(asset string, qty decimal.Decimal, table domain.PriceTable) (value decimal.Decimal, priced bool) {
	if qty.IsZero() {
		return decimal.Zero, true
	}
	if v.IsStablecoin(asset) {
		return qty, true
	}
	for _, quote := range quoteFallback {
		if price, ok := table.Price(domain.NewPair(asset, quote).Symbol()); ok {
			return qty.Mul(price), true
		}
	}
	return decimal.Zero, false
}

// Value fills USDValue and Unvalued of b from its total.
func (v *Valuator) Value(b domain.Balance, table domain.PriceTable) domain.Balance {
	value, priced := v.ValueUSD(b.Asset, b.Total, table)
	b.USDValue = value
	b.Unvalued = !priced
	return b
}

// ValueAll values every balance.
func (v *Valuator) ValueAll(balances []domain.Balance, table domain.PriceTable) []domain.Balance {
	out := make([]domain.Balance, len(balances))
	for i, b := range balances {
		out[i] = v.Value(b, table)
	}
	return out
}
