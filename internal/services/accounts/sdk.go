package accounts

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/vadiminshakov/holdings/internal/clients"
	"github.com/vadiminshakov/holdings/pkg/retrier"
)

// SDKOption configures calls made through the go-binance client.
type SDKOption func(*sdkCaller)

// sdkCaller gives go-binance calls the retry and recvWindow policy of clients.SignedClient.
type sdkCaller struct {
	retrier    *retrier.Retrier
	recvWindow time.Duration
}

// WithSDKRetries retries clients.IsRetryable errors up to maxRetries times.
func WithSDKRetries(maxRetries int, initialInterval time.Duration) SDKOption {
	return func(c *sdkCaller) {
		c.retrier = retrier.New(
			retrier.WithMaxRetries(maxRetries),
			retrier.WithInitialInterval(initialInterval),
			retrier.WithRetryIf(clients.IsRetryable),
		)
	}
}

// WithSDKRecvWindow sends recvWindow with every signed call; zero keeps the server default.
func WithSDKRecvWindow(d time.Duration) SDKOption {
	return func(c *sdkCaller) {
		c.recvWindow = d
	}
}

func newSDKCaller(opts []SDKOption) sdkCaller {
	c := sdkCaller{retrier: retrier.New(retrier.WithMaxRetries(0))}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func callSDK[T any](ctx context.Context, c sdkCaller, do func(ctx context.Context, opts ...binance.RequestOption) (T, error)) (T, error) {
	var opts []binance.RequestOption
	if c.recvWindow > 0 {
		opts = append(opts, binance.WithRecvWindow(c.recvWindow.Milliseconds()))
	}
	return retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (T, error) {
		return do(ctx, opts...)
	})
}
