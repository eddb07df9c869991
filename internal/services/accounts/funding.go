package accounts

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/holdings/internal/domain"
)

const fundingAssetPath = "/sapi/v1/asset/get-funding-asset"

type fundingAsset struct {
	Asset  string          `json:"asset" validate:"required"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// FundingFetcher reads the funding wallet.
type FundingFetcher struct {
	api      signedAPI
	valuator valuer
}

// NewFundingFetcher creates a funding fetcher. api must point at the spot (sapi) host.
func NewFundingFetcher(api signedAPI, valuator valuer) *FundingFetcher {
	return &FundingFetcher{api: api, valuator: valuator}
}

func (f *FundingFetcher) Type() domain.AccountType { return domain.AccountTypeFunding }
func (f *FundingFetcher) Name() string             { return "Funding" }

// Fetch keeps rows with free > 0; a missing locked field counts as zero.
func (f *FundingFetcher) Fetch(ctx context.Context, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	var rows []fundingAsset
	if err := f.api.Post(ctx, fundingAssetPath, nil, &rows); err != nil {
		return domain.AccountSnapshot{}, err
	}
	if err := validatePayload(fundingAssetPath, rows); err != nil {
		return domain.AccountSnapshot{}, err
	}

	balances := make([]domain.Balance, 0, len(rows))
	for _, r := range rows {
		if !r.Free.IsPositive() {
			continue
		}
		balances = append(balances, domain.NewSpotBalance(r.Asset, r.Free, r.Locked))
	}

	return domain.NewAccountSnapshot(f.Type(), f.Name(), f.valuator.ValueAll(balances, prices)), nil
}
