// Package accounts fetches and normalizes balances of every Binance product line.
package accounts

import (
	"context"
	"net/url"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/holdings/internal/clients"
	"github.com/vadiminshakov/holdings/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Fetcher loads one product line of the master account.
type Fetcher interface {
	Type() domain.AccountType
	Name() string
	Fetch(ctx context.Context, prices domain.PriceTable) (domain.AccountSnapshot, error)
}

// signedAPI is implemented by clients.SignedClient.
type signedAPI interface {
	Get(ctx context.Context, path string, params url.Values, dest any) error
	Post(ctx context.Context, path string, params url.Values, dest any) error
}

type valuer interface {
	ValueAll(balances []domain.Balance, table domain.PriceTable) []domain.Balance
}

// Result outcome of one fetcher run. Failure is nil on success.
type Result struct {
	Snapshot domain.AccountSnapshot
	Failure  *domain.SourceFailure
}

// Failed reports whether the fetch degraded to an empty snapshot because of an error.
func (r Result) Failed() bool {
	return r.Failure != nil
}

// Collect runs f and never fails: an error becomes an empty snapshot of the
// fetcher's type plus a recorded failure.
func Collect(ctx context.Context, f Fetcher, prices domain.PriceTable, logger *zap.Logger) Result {
	snapshot, err := f.Fetch(ctx, prices)
	if err != nil {
		logger.Warn("account fetch failed, using empty snapshot",
			zap.String("source", f.Type().String()), zap.Error(err))
		return Result{
			Snapshot: domain.EmptyAccountSnapshot(f.Type(), f.Name()),
			Failure:  &domain.SourceFailure{Source: f.Type().String(), Reason: err.Error()},
		}
	}
	logger.Debug("account fetched",
		zap.String("source", f.Type().String()),
		zap.Int("balances", len(snapshot.Balances)),
		zap.String("total_usd", snapshot.TotalUSDValue.String()))
	return Result{Snapshot: snapshot}
}

// validatePayload checks struct tags of a decoded response.
func validatePayload(path string, payload any) error {
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			if err := validate.Struct(v.Index(i).Interface()); err != nil {
				return &clients.DecodeError{Path: path, Err: err}
			}
		}
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		return &clients.DecodeError{Path: path, Err: err}
	}
	return nil
}

// getValidated performs a signed GET, decodes into dest and validates it.
func getValidated(ctx context.Context, api signedAPI, path string, params url.Values, dest any) error {
	if err := api.Get(ctx, path, params, dest); err != nil {
		return err
	}
	return validatePayload(path, dest)
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s", field)
	}
	return v, nil
}
