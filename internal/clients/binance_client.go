// Package clients builds authenticated exchange clients.
package clients

import (
	"net/http"

	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates a go-binance client. Empty baseURL keeps the library default,
// nil httpClient keeps the library's client.
func NewBinanceClient(apiKey, apiSecret, baseURL string, httpClient *http.Client) *binance.Client {
	client := binance.NewClient(apiKey, apiSecret)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	return client
}
