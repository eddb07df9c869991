package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/holdings/internal/domain"
)

// BinancePricer loads every ticker price with one unauthenticated call.
type BinancePricer struct {
	client *binance.Client
}

// NewBinancePricer creates a pricer on top of a go-binance client.
func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

// FetchPrices returns symbol -> price for all traded pairs.
func (p *BinancePricer) FetchPrices(ctx context.Context) (domain.PriceTable, error) {
	prices, err := p.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, &PriceFetchError{Err: errors.Wrap(err, "list prices")}
	}
	if len(prices) == 0 {
		return nil, &PriceFetchError{Err: errors.New("empty ticker list")}
	}

	table := make(domain.PriceTable, len(prices))
	for _, sp := range prices {
		if sp == nil || sp.Symbol == "" {
			return nil, &PriceFetchError{Err: errors.New("ticker entry without symbol")}
		}
		price, err := decimal.NewFromString(sp.Price)
		if err != nil {
			return nil, &PriceFetchError{Err: errors.Wrapf(err, "parse price of %s", sp.Symbol)}
		}
		table[sp.Symbol] = price
	}

	return table, nil
}
