package accounts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/holdings/internal/clients"
	"github.com/vadiminshakov/holdings/internal/domain"
	"github.com/vadiminshakov/holdings/internal/exchangetest"
	"github.com/vadiminshakov/holdings/internal/services/pricer"
)

var testPrices = domain.PriceTable{
	"BTCUSDT": decimal.RequireFromString("50000"),
	"ETHUSDT": decimal.RequireFromString("3000"),
	"BNBBUSD": decimal.RequireFromString("600"),
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func signed(srv *exchangetest.Server) *clients.SignedClient {
	return clients.NewSignedClient(srv.URL, "key", "secret")
}

func assertTotals(t *testing.T, s domain.AccountSnapshot) {
	t.Helper()
	sum := decimal.Zero
	for i, b := range s.Balances {
		sum = sum.Add(b.USDValue)
		assert.True(t, b.Total.Equal(b.Free.Add(b.Locked)), "total != free+locked for %s", b.Asset)
		assert.False(t, b.USDValue.IsNegative())
		if i > 0 {
			assert.True(t, s.Balances[i-1].USDValue.GreaterThanOrEqual(b.USDValue))
		}
	}
	assert.True(t, s.TotalUSDValue.Equal(sum))
}

func TestSpotFetcher(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/api/v3/account", http.StatusOK, `{"balances":[
		{"asset":"BTC","free":"0.5","locked":"0.1"},
		{"asset":"USDT","free":"100","locked":"0"},
		{"asset":"LTC","free":"0.00000000","locked":"0.00000000"}
	]}`)

	f := NewSpotFetcher(clients.NewBinanceClient("key", "secret", srv.URL, nil), pricer.NewValuator())
	s, err := f.Fetch(context.Background(), testPrices)
	require.NoError(t, err)

	assert.Equal(t, domain.AccountTypeSpot, s.Type)
	require.Len(t, s.Balances, 2)
	btc := s.Balances[0]
	assert.Equal(t, "BTC", btc.Asset)
	assert.True(t, btc.Free.Equal(d("0.5")))
	assert.True(t, btc.Locked.Equal(d("0.1")))
	assert.True(t, btc.Total.Equal(d("0.6")))
	assert.True(t, btc.USDValue.Equal(d("30000")))
	assert.True(t, s.Balances[1].USDValue.Equal(d("100")))
	assert.True(t, s.TotalUSDValue.Equal(d("30100")))
	assertTotals(t, s)
}

func TestMarginFetcher(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/sapi/v1/margin/account", http.StatusOK, `{"userAssets":[
		{"asset":"ETH","free":"1","locked":"0.5","borrowed":"3","interest":"0.01","netAsset":"-1.51"},
		{"asset":"BNB","free":"0","locked":"0","borrowed":"1","interest":"0","netAsset":"-1"}
	]}`)

	f := NewMarginFetcher(clients.NewBinanceClient("key", "secret", srv.URL, nil), pricer.NewValuator())
	s, err := f.Fetch(context.Background(), testPrices)
	require.NoError(t, err)

	require.Len(t, s.Balances, 1)
	assert.Equal(t, "ETH", s.Balances[0].Asset)
	assert.True(t, s.Balances[0].Total.Equal(d("1.5")))
	assert.True(t, s.TotalUSDValue.Equal(d("4500")))
}

func TestSpotFetcher_RetriesThrottledCalls(t *testing.T) {
	var calls atomic.Int32
	srv := exchangetest.New(t)
	srv.HandleFunc("/api/v3/account", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5000", r.URL.Query().Get("recvWindow"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
			return
		}
		_, _ = w.Write([]byte(`{"balances":[{"asset":"USDT","free":"10","locked":"0"}]}`))
	})

	f := NewSpotFetcher(clients.NewBinanceClient("key", "secret", srv.URL, nil), pricer.NewValuator(),
		WithSDKRetries(2, time.Millisecond), WithSDKRecvWindow(5*time.Second))
	s, err := f.Fetch(context.Background(), testPrices)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, s.TotalUSDValue.Equal(d("10")))
}

func TestMarginFetcher_DoesNotRetryRejectedKey(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/sapi/v1/margin/account", http.StatusUnauthorized, `{"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}`)

	f := NewMarginFetcher(clients.NewBinanceClient("key", "secret", srv.URL, nil), pricer.NewValuator(),
		WithSDKRetries(3, time.Millisecond))
	_, err := f.Fetch(context.Background(), testPrices)
	require.Error(t, err)
	assert.Equal(t, 1, srv.Calls("/sapi/v1/margin/account"))
}

func TestSpotFetcher_NoRecvWindowByDefault(t *testing.T) {
	srv := exchangetest.New(t)
	srv.HandleFunc("/api/v3/account", func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("recvWindow"))
		_, _ = w.Write([]byte(`{"balances":[]}`))
	})

	f := NewSpotFetcher(clients.NewBinanceClient("key", "secret", srv.URL, nil), pricer.NewValuator())
	s, err := f.Fetch(context.Background(), testPrices)
	require.NoError(t, err)
	assert.Empty(t, s.Balances)
}

func TestFuturesFetchers(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/fapi/v2/account", http.StatusOK, `{"assets":[
		{"asset":"USDT","walletBalance":"1000","availableBalance":"400"},
		{"asset":"BNB","walletBalance":"0.00000000","availableBalance":"0"}
	]}`)
	srv.Handle("/dapi/v1/account", http.StatusOK, `{"assets":[
		{"asset":"BTC","walletBalance":"0.2","availableBalance":"0.25"}
	]}`)

	valuator := pricer.NewValuator()

	usd, err := NewFuturesFetcher(signed(srv), valuator).Fetch(context.Background(), testPrices)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeFutures, usd.Type)
	require.Len(t, usd.Balances, 1)
	assert.True(t, usd.Balances[0].Free.Equal(d("400")))
	assert.True(t, usd.Balances[0].Locked.Equal(d("600")))
	assert.True(t, usd.TotalUSDValue.Equal(d("1000")))
	assertTotals(t, usd)

	coin, err := NewCoinFuturesFetcher(signed(srv), valuator).Fetch(context.Background(), testPrices)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeCoinFutures, coin.Type)
	require.Len(t, coin.Balances, 1)
	// available above wallet: nothing locked, total stays the wallet balance
	assert.True(t, coin.Balances[0].Locked.IsZero())
	assert.True(t, coin.Balances[0].Total.Equal(d("0.2")))
	assert.True(t, coin.TotalUSDValue.Equal(d("10000")))
}

func TestFuturesFetcher_RejectsMalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing assets", body: `{"totalWalletBalance":"1"}`},
		{name: "asset without code", body: `{"assets":[{"walletBalance":"1","availableBalance":"1"}]}`},
		{name: "non numeric balance", body: `{"assets":[{"asset":"USDT","walletBalance":"abc","availableBalance":"1"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := exchangetest.New(t)
			srv.Handle("/fapi/v2/account", http.StatusOK, tt.body)

			_, err := NewFuturesFetcher(signed(srv), pricer.NewValuator()).Fetch(context.Background(), testPrices)
			require.Error(t, err)

			var decodeErr *clients.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestEarnFetcher(t *testing.T) {
	srv := exchangetest.New(t)
	srv.HandleFunc("/sapi/v1/simple-earn/flexible/position", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("current") {
		case "1":
			_, _ = w.Write([]byte(`{"rows":[{"asset":"USDT","totalAmount":"75.5"},{"asset":"ETH","totalAmount":"0"}],"total":3}`))
		default:
			_, _ = w.Write([]byte(`{"rows":[{"asset":"BNB","totalAmount":"1"}],"total":3}`))
		}
	})
	srv.Handle("/sapi/v1/simple-earn/locked/position", http.StatusOK,
		`{"rows":[{"asset":"USDT","amount":"24.5"},{"asset":"ETH","amount":"2"}],"total":2}`)

	s, err := NewEarnFetcher(signed(srv), pricer.NewValuator(), zap.NewNop()).Fetch(context.Background(), testPrices)
	require.NoError(t, err)

	assert.Equal(t, 2, srv.Calls("/sapi/v1/simple-earn/flexible/position"))
	require.Len(t, s.Balances, 3)
	assert.Equal(t, "ETH", s.Balances[0].Asset)
	assert.True(t, s.Balances[0].USDValue.Equal(d("6000")))
	assert.Equal(t, "BNB", s.Balances[1].Asset)
	assert.True(t, s.Balances[1].USDValue.Equal(d("600")))
	assert.Equal(t, "USDT", s.Balances[2].Asset)
	assert.True(t, s.Balances[2].Total.Equal(d("100")))
	for _, b := range s.Balances {
		assert.True(t, b.Free.Equal(b.Total))
		assert.True(t, b.Locked.IsZero())
	}
	assertTotals(t, s)
}

func TestEarnFetcher_LockedFailureKeepsFlexible(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/sapi/v1/simple-earn/flexible/position", http.StatusOK, `{"rows":[{"asset":"USDT","totalAmount":"10"}],"total":1}`)
	srv.Handle("/sapi/v1/simple-earn/locked/position", http.StatusForbidden, `{"code":-2015,"msg":"no permission"}`)

	s, err := NewEarnFetcher(signed(srv), pricer.NewValuator(), zap.NewNop()).Fetch(context.Background(), testPrices)
	require.NoError(t, err)
	require.Len(t, s.Balances, 1)
	assert.True(t, s.TotalUSDValue.Equal(d("10")))
}

func TestEarnFetcher_RejectsMalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing rows", body: `{"total":1}`},
		{name: "row without asset", body: `{"rows":[{"totalAmount":"1"}],"total":1}`},
		{name: "negative total", body: `{"rows":[],"total":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := exchangetest.New(t)
			srv.Handle("/sapi/v1/simple-earn/flexible/position", http.StatusOK, tt.body)
			srv.Handle("/sapi/v1/simple-earn/locked/position", http.StatusOK, `{"rows":[],"total":0}`)

			_, err := NewEarnFetcher(signed(srv), pricer.NewValuator(), zap.NewNop()).Fetch(context.Background(), testPrices)
			require.Error(t, err)

			var decodeErr *clients.DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestEarnFetcher_PageLimitIsAnError(t *testing.T) {
	rows := make([]string, earnPageSize)
	for i := range rows {
		rows[i] = `{"asset":"USDT","totalAmount":"1"}`
	}
	total := earnPageSize*earnMaxPages + 1

	srv := exchangetest.New(t)
	srv.Handle("/sapi/v1/simple-earn/flexible/position", http.StatusOK,
		fmt.Sprintf(`{"rows":[%s],"total":%d}`, strings.Join(rows, ","), total))
	srv.Handle("/sapi/v1/simple-earn/locked/position", http.StatusOK, `{"rows":[],"total":0}`)

	_, err := NewEarnFetcher(signed(srv), pricer.NewValuator(), zap.NewNop()).Fetch(context.Background(), testPrices)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page limit")
	assert.Equal(t, earnMaxPages, srv.Calls("/sapi/v1/simple-earn/flexible/position"))

	res := Collect(context.Background(), NewEarnFetcher(signed(srv), pricer.NewValuator(), zap.NewNop()), testPrices, zap.NewNop())
	require.True(t, res.Failed())
	assert.Equal(t, "earn", res.Failure.Source)
}

func TestFundingFetcher(t *testing.T) {
	srv := exchangetest.New(t)
	srv.HandleFunc("/sapi/v1/asset/get-funding-asset", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`[
			{"asset":"USDT","free":"50","locked":"5","freeze":"0"},
			{"asset":"BTC","free":"0.01"},
			{"asset":"ETH","free":"0","locked":"3"}
		]`))
	})

	s, err := NewFundingFetcher(signed(srv), pricer.NewValuator()).Fetch(context.Background(), testPrices)
	require.NoError(t, err)

	require.Len(t, s.Balances, 2)
	assert.Equal(t, "BTC", s.Balances[0].Asset)
	assert.True(t, s.Balances[0].Locked.IsZero())
	assert.True(t, s.Balances[0].USDValue.Equal(d("500")))
	assert.True(t, s.Balances[1].Total.Equal(d("55")))
	assertTotals(t, s)
}

func TestCollect_DegradesToEmptySnapshot(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/fapi/v2/account", http.StatusInternalServerError, `{"code":-1001,"msg":"Internal error"}`)

	r := Collect(context.Background(), NewFuturesFetcher(signed(srv), pricer.NewValuator()), testPrices, zap.NewNop())

	assert.True(t, r.Failed())
	assert.Equal(t, domain.AccountTypeFutures, r.Snapshot.Type)
	assert.Equal(t, "Futures", r.Snapshot.Name)
	assert.Empty(t, r.Snapshot.Balances)
	assert.True(t, r.Snapshot.TotalUSDValue.IsZero())
	assert.Equal(t, "futures", r.Failure.Source)
	assert.Contains(t, r.Failure.Reason, "Internal error")
}

func TestCollect_Success(t *testing.T) {
	srv := exchangetest.New(t)
	srv.Handle("/sapi/v1/asset/get-funding-asset", http.StatusOK, `[{"asset":"USDT","free":"1"}]`)

	r := Collect(context.Background(), NewFundingFetcher(signed(srv), pricer.NewValuator()), testPrices, zap.NewNop())
	assert.False(t, r.Failed())
	assert.Nil(t, r.Failure)
	assert.Len(t, r.Snapshot.Balances, 1)
}
