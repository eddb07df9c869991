package accounts

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/holdings/internal/domain"
)

const (
	usdFuturesAccountPath  = "/fapi/v2/account"
	coinFuturesAccountPath = "/dapi/v1/account"
)

type futuresAccountResponse struct {
	Assets []futuresAsset `json:"assets" validate:"required,dive"`
}

type futuresAsset struct {
	Asset            string          `json:"asset" validate:"required"`
	WalletBalance    decimal.Decimal `json:"walletBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
}

// FuturesFetcher reads a futures wallet; the same shape serves USD-M and coin-M.
type FuturesFetcher struct {
	api         signedAPI
	valuator    valuer
	path        string
	accountType domain.AccountType
	name        string
}

// NewFuturesFetcher creates a USD-margined futures fetcher. api must point at the fapi host.
func NewFuturesFetcher(api signedAPI, valuator valuer) *FuturesFetcher {
	return &FuturesFetcher{
		api:         api,
		valuator:    valuator,
		path:        usdFuturesAccountPath,
		accountType: domain.AccountTypeFutures,
		name:        "Futures",
	}
}

// NewCoinFuturesFetcher creates a coin-margined futures fetcher. api must point at the dapi host.
func NewCoinFuturesFetcher(api signedAPI, valuator valuer) *FuturesFetcher {
	return &FuturesFetcher{
		api:         api,
		valuator:    valuator,
		path:        coinFuturesAccountPath,
		accountType: domain.AccountTypeCoinFutures,
		name:        "Coin Futures",
	}
}

func (f *FuturesFetcher) Type() domain.AccountType { return f.accountType }
func (f *FuturesFetcher) Name() string             { return f.name }

// Fetch keeps assets with a positive wallet balance.
func (f *FuturesFetcher) Fetch(ctx context.Context, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	var resp futuresAccountResponse
	if err := getValidated(ctx, f.api, f.path, nil, &resp); err != nil {
		return domain.AccountSnapshot{}, err
	}

	balances := walletBalances(resp.Assets, func(a futuresAsset) (string, decimal.Decimal, decimal.Decimal) {
		return a.Asset, a.WalletBalance, a.AvailableBalance
	})
	return domain.NewAccountSnapshot(f.accountType, f.name, f.valuator.ValueAll(balances, prices)), nil
}

// walletBalances keeps entries with wallet > 0; free = available, locked = max(wallet-available, 0).
func walletBalances[T any](items []T, fields func(T) (asset string, wallet, available decimal.Decimal)) []domain.Balance {
	balances := make([]domain.Balance, 0, len(items))
	for _, item := range items {
		asset, wallet, available := fields(item)
		if !wallet.IsPositive() {
			continue
		}
		balances = append(balances, domain.NewWalletBalance(asset, wallet, available))
	}
	return balances
}
