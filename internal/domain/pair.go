package domain

import (
	"fmt"
	"strings"
)

// Pair cryptocurrency trading pair.
type Pair struct {
	// From base currency symbol.
	From string
	// To quote currency symbol.
	To string
}

// NewPair builds a pair with upper-cased asset codes.
func NewPair(from, to string) Pair {
	return Pair{From: strings.ToUpper(from), To: strings.ToUpper(to)}
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the exchange ticker symbol, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return p.From + p.To
}
