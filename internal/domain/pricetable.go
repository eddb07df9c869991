package domain

import "github.com/shopspring/decimal"

// PriceTable symbol -> last price, e.g. "BTCUSDT" -> 50000.
// Rebuilt every cycle, read-only once constructed, safe for concurrent reads.
type PriceTable map[string]decimal.Decimal

// Price looks up a symbol.
func (t PriceTable) Price(symbol string) (decimal.Decimal, bool) {
	p, ok := t[symbol]
	return p, ok
}

// Len number of symbols.
func (t PriceTable) Len() int {
	return len(t)
}
