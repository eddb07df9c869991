package accounts

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/holdings/internal/domain"
)

const (
	flexibleEarnPath = "/sapi/v1/simple-earn/flexible/position"
	lockedEarnPath   = "/sapi/v1/simple-earn/locked/position"
	earnPageSize     = 100
	earnMaxPages     = 50
)

type earnFlexiblePage struct {
	Rows  []earnFlexibleRow `json:"rows" validate:"required,dive"`
	Total int               `json:"total" validate:"gte=0"`
}

type earnFlexibleRow struct {
	Asset       string          `json:"asset" validate:"required"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type earnLockedPage struct {
	Rows  []earnLockedRow `json:"rows" validate:"required,dive"`
	Total int             `json:"total" validate:"gte=0"`
}

type earnLockedRow struct {
	Asset  string          `json:"asset" validate:"required"`
	Amount decimal.Decimal `json:"amount"`
}

type earnHolding struct {
	asset  string
	amount decimal.Decimal
}

// EarnFetcher reads simple earn flexible and locked positions.
// Positions are treated as fully liquid.
type EarnFetcher struct {
	api      signedAPI
	valuator valuer
	logger   *zap.Logger
}

// NewEarnFetcher creates an earn fetcher. api must point at the spot (sapi) host.
func NewEarnFetcher(api signedAPI, valuator valuer, logger *zap.Logger) *EarnFetcher {
	return &EarnFetcher{api: api, valuator: valuator, logger: logger}
}

func (f *EarnFetcher) Type() domain.AccountType { return domain.AccountTypeEarn }
func (f *EarnFetcher) Name() string             { return "Earn" }

// Fetch merges flexible and locked rows per asset. A failing locked query keeps the
// flexible result; a failing flexible query fails the fetch.
func (f *EarnFetcher) Fetch(ctx context.Context, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	flexible, err := f.flexible(ctx)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}

	locked, err := f.locked(ctx)
	if err != nil {
		f.logger.Warn("locked earn positions unavailable", zap.Error(err))
	}

	holdings := lo.Filter(append(flexible, locked...), func(h earnHolding, _ int) bool {
		return h.amount.IsPositive()
	})
	grouped := lo.GroupBy(holdings, func(h earnHolding) string { return h.asset })
	balances := lo.MapToSlice(grouped, func(asset string, rows []earnHolding) domain.Balance {
		total := lo.Reduce(rows, func(acc decimal.Decimal, h earnHolding, _ int) decimal.Decimal {
			return acc.Add(h.amount)
		}, decimal.Zero)
		return domain.NewLiquidBalance(asset, total)
	})

	return domain.NewAccountSnapshot(f.Type(), f.Name(), f.valuator.ValueAll(balances, prices)), nil
}

func (f *EarnFetcher) flexible(ctx context.Context) ([]earnHolding, error) {
	var out []earnHolding
	err := paginate(ctx, func(ctx context.Context, params url.Values) (int, int, error) {
		var page earnFlexiblePage
		if err := getValidated(ctx, f.api, flexibleEarnPath, params, &page); err != nil {
			return 0, 0, err
		}
		for _, r := range page.Rows {
			out = append(out, earnHolding{asset: r.Asset, amount: r.TotalAmount})
		}
		return len(page.Rows), page.Total, nil
	})
	return out, err
}

func (f *EarnFetcher) locked(ctx context.Context) ([]earnHolding, error) {
	var out []earnHolding
	err := paginate(ctx, func(ctx context.Context, params url.Values) (int, int, error) {
		var page earnLockedPage
		if err := getValidated(ctx, f.api, lockedEarnPath, params, &page); err != nil {
			return 0, 0, err
		}
		for _, r := range page.Rows {
			out = append(out, earnHolding{asset: r.Asset, amount: r.Amount})
		}
		return len(page.Rows), page.Total, nil
	})
	return out, err
}

// paginate walks current=1.. until total rows are read or a page comes back empty.
// Hitting the page limit first is an error: the holdings would be incomplete.
func paginate(ctx context.Context, fetchPage func(ctx context.Context, params url.Values) (rows, total int, err error)) error {
	read, total := 0, 0
	for current := 1; current <= earnMaxPages; current++ {
		params := url.Values{}
		params.Set("current", strconv.Itoa(current))
		params.Set("size", strconv.Itoa(earnPageSize))

		rows, t, err := fetchPage(ctx, params)
		if err != nil {
			return errors.Wrapf(err, "page %d", current)
		}
		total = t
		read += rows
		if rows == 0 || read >= total {
			return nil
		}
	}
	return errors.Errorf("page limit %d reached with %d of %d rows read", earnMaxPages, read, total)
}
