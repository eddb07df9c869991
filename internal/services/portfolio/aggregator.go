// Package portfolio assembles the consolidated portfolio snapshot.
package portfolio

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/holdings/internal/domain"
	"github.com/vadiminshakov/holdings/internal/services/accounts"
	"github.com/vadiminshakov/holdings/internal/services/pricer"
)

const defaultSubAccountConcurrency = 4

type subAccountService interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, email string, prices domain.PriceTable) ([]domain.AccountSnapshot, []domain.SourceFailure)
}

// Aggregator runs one stateless refresh cycle per call.
type Aggregator struct {
	pricer                pricer.Pricer
	fetchers              []accounts.Fetcher
	subAccounts           subAccountService
	hasCredentials        bool
	subAccountConcurrency int
	cycleTimeout          time.Duration
	now                   func() time.Time
	logger                *zap.Logger
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithSubAccountConcurrency bounds parallel sub-account fetches.
func WithSubAccountConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.subAccountConcurrency = n
		}
	}
}

// WithCycleTimeout bounds the wall-clock time of one Snapshot call. Zero disables it.
func WithCycleTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.cycleTimeout = d
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		a.logger = l
	}
}

// Credentials are only checked for presence; the exchange validates them.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Present reports whether both parts are set.
func (c Credentials) Present() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// NewAggregator creates an aggregator over the master fetchers and the sub-account reader.
func NewAggregator(creds Credentials, p pricer.Pricer, fetchers []accounts.Fetcher, subAccounts subAccountService, opts ...Option) *Aggregator {
	a := &Aggregator{
		pricer:                p,
		fetchers:              fetchers,
		subAccounts:           subAccounts,
		hasCredentials:        creds.Present(),
		subAccountConcurrency: defaultSubAccountConcurrency,
		now:                   time.Now,
		logger:                zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Prices returns the current price table.
func (a *Aggregator) Prices(ctx context.Context) (domain.PriceTable, error) {
	table, err := a.pricer.FetchPrices(ctx)
	if err != nil {
		return nil, &PortfolioFetchError{Reason: "price table unavailable", Err: err}
	}
	return table, nil
}

// Snapshot fetches prices once, fans out all master fetchers, then all sub-accounts,
// and merges everything into one snapshot. Only missing credentials, a missing price
// table or every master fetcher failing are returned as errors.
func (a *Aggregator) Snapshot(ctx context.Context) (domain.PortfolioSnapshot, error) {
	if !a.hasCredentials {
		return domain.PortfolioSnapshot{}, ErrMissingCredentials
	}
	if a.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cycleTimeout)
		defer cancel()
	}

	logger := a.logger.With(zap.String("cycle_id", uuid.NewString()))
	started := a.now()

	prices, err := a.pricer.FetchPrices(ctx)
	if err != nil {
		logger.Error("price table unavailable, aborting cycle", zap.Error(err))
		return domain.PortfolioSnapshot{}, &PortfolioFetchError{Reason: "price table unavailable", Err: err}
	}

	master, failures := a.collectMaster(ctx, prices, logger)
	if len(a.fetchers) > 0 && len(failures) == len(a.fetchers) {
		return domain.PortfolioSnapshot{}, &PortfolioFetchError{
			Reason: "all master account fetches failed",
			Err:    errors.New(joinReasons(failures)),
		}
	}

	sub, subFailures := a.collectSubAccounts(ctx, prices, logger)
	failures = append(failures, subFailures...)

	snapshot := domain.NewPortfolioSnapshot(master, sub, failures, a.now())
	logger.Info("portfolio snapshot ready",
		zap.Int("master_accounts", len(snapshot.Master.Accounts)),
		zap.Int("sub_accounts", len(snapshot.SubAccounts.Accounts)),
		zap.Int("failures", len(failures)),
		zap.String("grand_total_usd", snapshot.GrandTotal.StringFixed(2)),
		zap.Duration("took", a.now().Sub(started)))

	return snapshot, nil
}

// collectMaster runs every fetcher concurrently and joins them; results keep fetcher order.
func (a *Aggregator) collectMaster(ctx context.Context, prices domain.PriceTable, logger *zap.Logger) ([]domain.AccountSnapshot, []domain.SourceFailure) {
	results := make([]accounts.Result, len(a.fetchers))

	var g errgroup.Group
	for i, f := range a.fetchers {
		i, f := i, f
		g.Go(func() error {
			results[i] = accounts.Collect(ctx, f, prices, logger)
			return nil
		})
	}
	_ = g.Wait()

	snapshots := make([]domain.AccountSnapshot, 0, len(results))
	var failures []domain.SourceFailure
	for _, r := range results {
		snapshots = append(snapshots, r.Snapshot)
		if r.Failed() {
			failures = append(failures, *r.Failure)
		}
	}
	return snapshots, failures
}

// collectSubAccounts degrades a discovery failure to zero sub-accounts.
func (a *Aggregator) collectSubAccounts(ctx context.Context, prices domain.PriceTable, logger *zap.Logger) ([]domain.AccountSnapshot, []domain.SourceFailure) {
	if a.subAccounts == nil {
		return nil, nil
	}

	emails, err := a.subAccounts.List(ctx)
	if err != nil {
		logger.Warn("sub-account discovery failed, continuing without sub-accounts", zap.Error(err))
		return nil, []domain.SourceFailure{{Source: "sub_accounts", Reason: err.Error()}}
	}
	logger.Debug("sub-accounts discovered", zap.Int("count", len(emails)))

	type subResult struct {
		snapshots []domain.AccountSnapshot
		failures  []domain.SourceFailure
	}
	results := make([]subResult, len(emails))

	g := new(errgroup.Group)
	g.SetLimit(a.subAccountConcurrency)
	for i, email := range emails {
		i, email := i, email
		g.Go(func() error {
			snapshots, failures := a.subAccounts.Fetch(ctx, email, prices)
			results[i] = subResult{snapshots: snapshots, failures: failures}
			return nil
		})
	}
	_ = g.Wait()

	var (
		snapshots []domain.AccountSnapshot
		failures  []domain.SourceFailure
	)
	for _, r := range results {
		snapshots = append(snapshots, r.snapshots...)
		failures = append(failures, r.failures...)
	}
	return snapshots, failures
}

func joinReasons(failures []domain.SourceFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, f.Source+": "+f.Reason)
	}
	return strings.Join(parts, "; ")
}
