package accounts

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/holdings/internal/domain"
)

// SpotFetcher reads the spot wallet.
type SpotFetcher struct {
	client   *binance.Client
	valuator valuer
	sdk      sdkCaller
}

// NewSpotFetcher creates a spot fetcher.
func NewSpotFetcher(client *binance.Client, valuator valuer, opts ...SDKOption) *SpotFetcher {
	return &SpotFetcher{client: client, valuator: valuator, sdk: newSDKCaller(opts)}
}

func (f *SpotFetcher) Type() domain.AccountType { return domain.AccountTypeSpot }
func (f *SpotFetcher) Name() string             { return "Spot" }

// Fetch keeps assets with free > 0 or locked > 0.
func (f *SpotFetcher) Fetch(ctx context.Context, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	account, err := callSDK(ctx, f.sdk, f.client.NewGetAccountService().Do)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "failed to get binance spot account")
	}

	balances := make([]domain.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		balance, err := freeLockedBalance(b.Asset, b.Free, b.Locked)
		if err != nil {
			return domain.AccountSnapshot{}, err
		}
		if balance.Free.IsPositive() || balance.Locked.IsPositive() {
			balances = append(balances, balance)
		}
	}

	return domain.NewAccountSnapshot(f.Type(), f.Name(), f.valuator.ValueAll(balances, prices)), nil
}

// MarginFetcher reads the cross margin wallet. Borrowed and interest amounts are ignored.
type MarginFetcher struct {
	client   *binance.Client
	valuator valuer
	sdk      sdkCaller
}

// NewMarginFetcher creates a cross margin fetcher.
func NewMarginFetcher(client *binance.Client, valuator valuer, opts ...SDKOption) *MarginFetcher {
	return &MarginFetcher{client: client, valuator: valuator, sdk: newSDKCaller(opts)}
}

func (f *MarginFetcher) Type() domain.AccountType { return domain.AccountTypeMargin }
func (f *MarginFetcher) Name() string             { return "Margin" }

// Fetch keeps user assets with free > 0 or locked > 0.
func (f *MarginFetcher) Fetch(ctx context.Context, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	account, err := callSDK(ctx, f.sdk, f.client.NewGetMarginAccountService().Do)
	if err != nil {
		return domain.AccountSnapshot{}, errors.Wrap(err, "failed to get binance margin account")
	}

	balances := make([]domain.Balance, 0, len(account.UserAssets))
	for _, a := range account.UserAssets {
		balance, err := freeLockedBalance(a.Asset, a.Free, a.Locked)
		if err != nil {
			return domain.AccountSnapshot{}, err
		}
		if balance.Free.IsPositive() || balance.Locked.IsPositive() {
			balances = append(balances, balance)
		}
	}

	return domain.NewAccountSnapshot(f.Type(), f.Name(), f.valuator.ValueAll(balances, prices)), nil
}

func freeLockedBalance(asset, rawFree, rawLocked string) (domain.Balance, error) {
	if asset == "" {
		return domain.Balance{}, errors.New("balance entry without asset")
	}
	free, err := parseAmount(asset+" free", rawFree)
	if err != nil {
		return domain.Balance{}, err
	}
	locked, err := parseAmount(asset+" locked", rawLocked)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.NewSpotBalance(asset, free, locked), nil
}
