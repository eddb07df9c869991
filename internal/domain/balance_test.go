package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewSpotBalance(t *testing.T) {
	b := NewSpotBalance("btc", decimal.RequireFromString("0.5"), decimal.RequireFromString("0.1"))

	assert.Equal(t, "BTC", b.Asset)
	assert.True(t, b.Total.Equal(decimal.RequireFromString("0.6")))
	assert.True(t, b.Total.Equal(b.Free.Add(b.Locked)))
}

func TestNewWalletBalance(t *testing.T) {
	tests := []struct {
		name           string
		wallet         string
		available      string
		expectedLocked string
	}{
		{name: "part of wallet in positions", wallet: "100", available: "60", expectedLocked: "40"},
		{name: "fully available", wallet: "100", available: "100", expectedLocked: "0"},
		{name: "available above wallet (unrealized pnl)", wallet: "100", available: "120", expectedLocked: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewWalletBalance("USDT", decimal.RequireFromString(tt.wallet), decimal.RequireFromString(tt.available))
			assert.True(t, b.Locked.Equal(decimal.RequireFromString(tt.expectedLocked)), b.Locked.String())
			assert.True(t, b.Total.Equal(decimal.RequireFromString(tt.wallet)))
			assert.True(t, b.Free.Equal(decimal.RequireFromString(tt.available)))
			assert.False(t, b.Locked.IsNegative())
		})
	}
}

func TestNewLiquidBalance(t *testing.T) {
	b := NewLiquidBalance("ETH", decimal.RequireFromString("2.5"))
	assert.True(t, b.Free.Equal(b.Total))
	assert.True(t, b.Locked.IsZero())
	assert.False(t, b.IsZero())
}
