// Package pricer builds the USD price table and values balances against it.
package pricer

import (
	"context"
	"fmt"

	"github.com/vadiminshakov/holdings/internal/domain"
)

// Pricer returns the full price table for one refresh cycle.
type Pricer interface {
	FetchPrices(ctx context.Context) (domain.PriceTable, error)
}

// PriceFetchError the price table could not be fetched or decoded.
type PriceFetchError struct {
	Err error
}

func (e *PriceFetchError) Error() string {
	return fmt.Sprintf("fetch price table: %v", e.Err)
}

func (e *PriceFetchError) Unwrap() error {
	return e.Err
}
