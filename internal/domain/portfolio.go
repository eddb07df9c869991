package domain

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ScopeTotals accounts of one scope (master or sub-accounts) and their sum.
type ScopeTotals struct {
	Accounts      []AccountSnapshot `json:"accounts"`
	TotalUSDValue decimal.Decimal   `json:"totalUsdValue"`
}

// NewScopeTotals keeps only snapshots with at least one non-zero balance and sums them.
func NewScopeTotals(accounts []AccountSnapshot) ScopeTotals {
	kept := lo.Filter(accounts, func(a AccountSnapshot, _ int) bool {
		return !a.IsEmpty()
	})
	total := lo.Reduce(kept, func(acc decimal.Decimal, a AccountSnapshot, _ int) decimal.Decimal {
		return acc.Add(a.TotalUSDValue)
	}, decimal.Zero)

	return ScopeTotals{Accounts: kept, TotalUSDValue: total}
}

// SourceFailure records why a source contributed nothing to a snapshot.
type SourceFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// PortfolioSnapshot consolidated holdings of a master account and its sub-accounts.
type PortfolioSnapshot struct {
	Master      ScopeTotals     `json:"master"`
	SubAccounts ScopeTotals     `json:"subAccounts"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Timestamp   time.Time       `json:"timestamp"`
	Failures    []SourceFailure `json:"failures,omitempty"`
}

// NewPortfolioSnapshot assembles the snapshot; grand total = master + sub-accounts.
func NewPortfolioSnapshot(master, sub []AccountSnapshot, failures []SourceFailure, ts time.Time) PortfolioSnapshot {
	m := NewScopeTotals(master)
	s := NewScopeTotals(sub)
	return PortfolioSnapshot{
		Master:      m,
		SubAccounts: s,
		GrandTotal:  m.TotalUSDValue.Add(s.TotalUSDValue),
		Timestamp:   ts.UTC(),
		Failures:    failures,
	}
}

// SubAccountLabel returns the local part of an email-shaped identifier,
// or the identifier itself.
func SubAccountLabel(identifier string) string {
	if i := strings.Index(identifier, "@"); i > 0 {
		return identifier[:i]
	}
	return identifier
}
