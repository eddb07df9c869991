package accounts

import (
	"context"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/holdings/internal/domain"
)

const (
	subAccountListPath    = "/sapi/v1/sub-account/list"
	subAccountSpotPath    = "/sapi/v3/sub-account/assets"
	subAccountFuturesPath = "/sapi/v2/sub-account/futures/account"
	subAccountPageSize    = 200
	subAccountMaxPages    = 50
	usdMarginedFutures    = "1"
)

type subAccountListResponse struct {
	SubAccounts []subAccountEntry `json:"subAccounts" validate:"required,dive"`
}

type subAccountEntry struct {
	Email string `json:"email" validate:"required"`
}

type subAccountSpotResponse struct {
	Balances []subAccountSpotAsset `json:"balances" validate:"required,dive"`
}

// v3 reports free/locked as JSON numbers, decimal accepts both forms
type subAccountSpotAsset struct {
	Asset  string          `json:"asset" validate:"required"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

type subAccountFuturesResponse struct {
	FutureAccountResp struct {
		Assets []subAccountFuturesAsset `json:"assets" validate:"required,dive"`
	} `json:"futureAccountResp"`
}

type subAccountFuturesAsset struct {
	Asset             string          `json:"asset" validate:"required"`
	WalletBalance     decimal.Decimal `json:"walletBalance"`
	MaxWithdrawAmount decimal.Decimal `json:"maxWithdrawAmount"`
}

// SubAccounts discovers sub-accounts and reads their spot and futures wallets
// through the master account's key.
type SubAccounts struct {
	api      signedAPI
	valuator valuer
	logger   *zap.Logger
}

// NewSubAccounts creates the sub-account reader. api must point at the spot (sapi) host.
func NewSubAccounts(api signedAPI, valuator valuer, logger *zap.Logger) *SubAccounts {
	return &SubAccounts{api: api, valuator: valuator, logger: logger}
}

// List returns the email identifiers of all sub-accounts in listing order.
func (s *SubAccounts) List(ctx context.Context) ([]string, error) {
	var emails []string
	for page := 1; ; page++ {
		if page > subAccountMaxPages {
			s.logger.Warn("sub-account list truncated at page limit",
				zap.Int("pages", subAccountMaxPages), zap.Int("sub_accounts", len(emails)))
			break
		}
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(subAccountPageSize))

		var resp subAccountListResponse
		if err := getValidated(ctx, s.api, subAccountListPath, params, &resp); err != nil {
			return nil, errors.Wrap(err, "list sub-accounts")
		}
		for _, sa := range resp.SubAccounts {
			emails = append(emails, sa.Email)
		}
		if len(resp.SubAccounts) < subAccountPageSize {
			break
		}
	}
	return emails, nil
}

// Fetch reads spot and futures of one sub-account concurrently.
// Each side fails on its own; only non-empty snapshots are returned, spot first.
func (s *SubAccounts) Fetch(ctx context.Context, email string, prices domain.PriceTable) ([]domain.AccountSnapshot, []domain.SourceFailure) {
	label := domain.SubAccountLabel(email)
	logger := s.logger.With(zap.String("sub_account", email))

	var (
		g                   errgroup.Group
		spot, futures       domain.AccountSnapshot
		spotErr, futuresErr error
	)
	// errors stay per side, the group only joins
	g.Go(func() error {
		spot, spotErr = s.spot(ctx, email, label, prices)
		return nil
	})
	g.Go(func() error {
		futures, futuresErr = s.futures(ctx, email, label, prices)
		return nil
	})
	_ = g.Wait()

	var (
		snapshots []domain.AccountSnapshot
		failures  []domain.SourceFailure
	)
	for _, r := range []struct {
		accountType domain.AccountType
		snapshot    domain.AccountSnapshot
		err         error
	}{
		{domain.AccountTypeSubSpot, spot, spotErr},
		{domain.AccountTypeSubFutures, futures, futuresErr},
	} {
		if r.err != nil {
			logger.Warn("sub-account fetch failed", zap.String("source", r.accountType.String()), zap.Error(r.err))
			failures = append(failures, domain.SourceFailure{
				Source: r.accountType.String() + ":" + email,
				Reason: r.err.Error(),
			})
			continue
		}
		if len(r.snapshot.Balances) > 0 {
			snapshots = append(snapshots, r.snapshot)
		}
	}
	return snapshots, failures
}

func (s *SubAccounts) spot(ctx context.Context, email, label string, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	params := url.Values{}
	params.Set("email", email)

	var resp subAccountSpotResponse
	if err := getValidated(ctx, s.api, subAccountSpotPath, params, &resp); err != nil {
		return domain.AccountSnapshot{}, err
	}

	balances := make([]domain.Balance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		if b.Free.IsPositive() || b.Locked.IsPositive() {
			balances = append(balances, domain.NewSpotBalance(b.Asset, b.Free, b.Locked))
		}
	}
	return domain.NewAccountSnapshot(domain.AccountTypeSubSpot, label+" - Spot", s.valuator.ValueAll(balances, prices)), nil
}

func (s *SubAccounts) futures(ctx context.Context, email, label string, prices domain.PriceTable) (domain.AccountSnapshot, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("futuresType", usdMarginedFutures)

	var resp subAccountFuturesResponse
	if err := getValidated(ctx, s.api, subAccountFuturesPath, params, &resp); err != nil {
		return domain.AccountSnapshot{}, err
	}

	balances := walletBalances(resp.FutureAccountResp.Assets, func(a subAccountFuturesAsset) (string, decimal.Decimal, decimal.Decimal) {
		return a.Asset, a.WalletBalance, a.MaxWithdrawAmount
	})
	return domain.NewAccountSnapshot(domain.AccountTypeSubFutures, label+" - Futures", s.valuator.ValueAll(balances, prices)), nil
}
