package portfolio

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMissingCredentials API key or secret is not configured.
var ErrMissingCredentials = errors.New("binance api key and secret must be set")

// PortfolioFetchError the cycle produced no meaningful result.
type PortfolioFetchError struct {
	Reason string
	Err    error
}

func (e *PortfolioFetchError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *PortfolioFetchError) Unwrap() error {
	return e.Err
}
