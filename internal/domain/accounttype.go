// Package domain defines core data structures used throughout the portfolio service.
package domain

// AccountType product line or sub-account view a snapshot belongs to.
type AccountType string

const (
	// AccountTypeSpot spot wallet.
	AccountTypeSpot AccountType = "spot"
	// AccountTypeMargin cross margin wallet.
	AccountTypeMargin AccountType = "margin"
	// AccountTypeFutures USD-margined futures wallet.
	AccountTypeFutures AccountType = "futures"
	// AccountTypeCoinFutures coin-margined futures wallet.
	AccountTypeCoinFutures AccountType = "coin_futures"
	// AccountTypeEarn simple earn positions.
	AccountTypeEarn AccountType = "earn"
	// AccountTypeFunding funding wallet.
	AccountTypeFunding AccountType = "funding"
	// AccountTypeSubSpot spot wallet of a sub-account.
	AccountTypeSubSpot AccountType = "sub_spot"
	// AccountTypeSubFutures USD-margined futures wallet of a sub-account.
	AccountTypeSubFutures AccountType = "sub_futures"
)

// String returns the string representation.
func (t AccountType) String() string {
	return string(t)
}

// IsValid checks if the AccountType value is valid.
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeSpot, AccountTypeMargin, AccountTypeFutures, AccountTypeCoinFutures,
		AccountTypeEarn, AccountTypeFunding, AccountTypeSubSpot, AccountTypeSubFutures:
		return true
	}
	return false
}

// IsSubAccount reports whether the type describes a sub-account view.
func (t AccountType) IsSubAccount() bool {
	return t == AccountTypeSubSpot || t == AccountTypeSubFutures
}
