package internal

import (
	"net/http"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/vadiminshakov/holdings/config"
	"github.com/vadiminshakov/holdings/internal/clients"
	"github.com/vadiminshakov/holdings/internal/services/accounts"
	"github.com/vadiminshakov/holdings/internal/services/portfolio"
	"github.com/vadiminshakov/holdings/internal/services/pricer"
)

// serviceProvider builds the per-wallet services on top of the exchange clients.
type serviceProvider interface {
	Pricer() pricer.Pricer
	Fetchers() []accounts.Fetcher
	SubAccounts() *accounts.SubAccounts
}

// binanceProvider owns one go-binance client for the SDK-covered wallets and
// one signed REST client per host for everything else.
type binanceProvider struct {
	client      *binance.Client
	spot        *clients.SignedClient
	futures     *clients.SignedClient
	coinFutures *clients.SignedClient
	sdkOpts     []accounts.SDKOption
	valuator    *pricer.Valuator
	logger      *zap.Logger
}

func newBinanceProvider(conf config.Config, logger *zap.Logger) *binanceProvider {
	httpClient := &http.Client{Timeout: conf.RequestTimeout}
	signed := func(baseURL string) *clients.SignedClient {
		return clients.NewSignedClient(baseURL, conf.APIKey, conf.APISecret,
			clients.WithHTTPClient(httpClient),
			clients.WithRetries(conf.MaxRetries, conf.RetryInterval),
			clients.WithRecvWindow(conf.RecvWindow),
			clients.WithLogger(logger),
		)
	}

	sdkOpts := []accounts.SDKOption{
		accounts.WithSDKRetries(conf.MaxRetries, conf.RetryInterval),
		accounts.WithSDKRecvWindow(conf.RecvWindow),
	}

	return &binanceProvider{
		client:      clients.NewBinanceClient(conf.APIKey, conf.APISecret, conf.SpotBaseURL, httpClient),
		spot:        signed(conf.SpotBaseURL),
		futures:     signed(conf.FuturesBaseURL),
		coinFutures: signed(conf.CoinFuturesBaseURL),
		sdkOpts:     sdkOpts,
		valuator:    pricer.NewValuator(conf.ExtraStablecoins...),
		logger:      logger,
	}
}

func (p *binanceProvider) Pricer() pricer.Pricer {
	return pricer.NewBinancePricer(p.client)
}

// Fetchers master wallets in report order.
func (p *binanceProvider) Fetchers() []accounts.Fetcher {
	return []accounts.Fetcher{
		accounts.NewSpotFetcher(p.client, p.valuator, p.sdkOpts...),
		accounts.NewMarginFetcher(p.client, p.valuator, p.sdkOpts...),
		accounts.NewFuturesFetcher(p.futures, p.valuator),
		accounts.NewCoinFuturesFetcher(p.coinFutures, p.valuator),
		accounts.NewEarnFetcher(p.spot, p.valuator, p.logger),
		accounts.NewFundingFetcher(p.spot, p.valuator),
	}
}

func (p *binanceProvider) SubAccounts() *accounts.SubAccounts {
	return accounts.NewSubAccounts(p.spot, p.valuator, p.logger)
}

// NewAggregator wires the whole portfolio pipeline from configuration.
func NewAggregator(conf config.Config, logger *zap.Logger) *portfolio.Aggregator {
	var provider serviceProvider = newBinanceProvider(conf, logger)

	return portfolio.NewAggregator(
		portfolio.Credentials{APIKey: conf.APIKey, APISecret: conf.APISecret},
		provider.Pricer(),
		provider.Fetchers(),
		provider.SubAccounts(),
		portfolio.WithSubAccountConcurrency(conf.SubAccountConcurrency),
		portfolio.WithCycleTimeout(conf.CycleTimeout),
		portfolio.WithLogger(logger),
	)
}
