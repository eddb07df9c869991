package domain

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// AccountSnapshot one product line or one sub-account's view of holdings.
// Built once per refresh cycle and not modified afterwards.
type AccountSnapshot struct {
	Type          AccountType     `json:"accountType"`
	Name          string          `json:"accountName"`
	Balances      []Balance       `json:"balances"`
	TotalUSDValue decimal.Decimal `json:"totalUsdValue"`
}

// NewAccountSnapshot sorts balances by USD value (desc) and sums the account total.
// Ties are ordered by asset code so equal input always yields equal output.
func NewAccountSnapshot(accountType AccountType, name string, balances []Balance) AccountSnapshot {
	sorted := make([]Balance, len(balances))
	copy(sorted, balances)
	sort.SliceStable(sorted, func(i, j int) bool {
		if cmp := sorted[i].USDValue.Cmp(sorted[j].USDValue); cmp != 0 {
			return cmp > 0
		}
		return sorted[i].Asset < sorted[j].Asset
	})

	total := lo.Reduce(sorted, func(acc decimal.Decimal, b Balance, _ int) decimal.Decimal {
		return acc.Add(b.USDValue)
	}, decimal.Zero)

	return AccountSnapshot{
		Type:          accountType,
		Name:          name,
		Balances:      sorted,
		TotalUSDValue: total,
	}
}

// EmptyAccountSnapshot is what a failed or empty product line degrades to.
func EmptyAccountSnapshot(accountType AccountType, name string) AccountSnapshot {
	return AccountSnapshot{
		Type:          accountType,
		Name:          name,
		Balances:      []Balance{},
		TotalUSDValue: decimal.Zero,
	}
}

// IsEmpty reports whether the snapshot has no non-zero balance.
func (a AccountSnapshot) IsEmpty() bool {
	return !lo.SomeBy(a.Balances, func(b Balance) bool { return !b.IsZero() })
}
