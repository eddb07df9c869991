package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/holdings/pkg/retrier"
)

const (
	apiKeyHeader      = "X-MBX-APIKEY"
	defaultTimeout    = 10 * time.Second
	defaultRecvWindow = 5 * time.Second
	maxErrorBodyBytes = 512
)

// APIError non-2xx answer from the exchange.
type APIError struct {
	StatusCode int
	Code       int64
	Msg        string
	Path       string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: http %d, code %d: %s", e.Path, e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Path, e.StatusCode, e.Msg)
}

// Temporary reports whether repeating the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusTeapot || // binance IP ban after ignoring 429
		e.StatusCode >= http.StatusInternalServerError
}

// DecodeError response body did not match the expected schema.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// binance error codes worth repeating; the SDK error carries no http status.
var temporaryCodes = map[int64]bool{
	-1000: true, // unknown
	-1001: true, // disconnected
	-1003: true, // too many requests
	-1006: true, // unexpected response
	-1007: true, // timeout
	-1008: true, // server busy
}

// IsRetryable classifies errors returned by SignedClient requests and the go-binance SDK.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var sdkErr *common.APIError
	if errors.As(err, &sdkErr) {
		return temporaryCodes[sdkErr.Code]
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// SignedClient calls HMAC-signed REST endpoints under one base URL.
type SignedClient struct {
	baseURL    string
	apiKey     string
	secret     string
	httpClient *http.Client
	retrier    *retrier.Retrier
	recvWindow time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// SignedClientOption configures a SignedClient.
type SignedClientOption func(*SignedClient)

// WithHTTPClient replaces the default http client (10s timeout).
func WithHTTPClient(c *http.Client) SignedClientOption {
	return func(s *SignedClient) {
		s.httpClient = c
	}
}

// WithRetries retries IsRetryable errors up to maxRetries times with exponential backoff.
func WithRetries(maxRetries int, initialInterval time.Duration) SignedClientOption {
	return func(s *SignedClient) {
		s.retrier = retrier.New(
			retrier.WithMaxRetries(maxRetries),
			retrier.WithInitialInterval(initialInterval),
			retrier.WithRetryIf(IsRetryable),
		)
	}
}

// WithRecvWindow sets the recvWindow parameter; zero omits it.
func WithRecvWindow(d time.Duration) SignedClientOption {
	return func(s *SignedClient) {
		s.recvWindow = d
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) SignedClientOption {
	return func(s *SignedClient) {
		s.now = now
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) SignedClientOption {
	return func(s *SignedClient) {
		s.logger = l
	}
}

// NewSignedClient creates a client for baseURL, e.g. https://fapi.binance.com.
func NewSignedClient(baseURL, apiKey, secret string, opts ...SignedClientOption) *SignedClient {
	c := &SignedClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		secret:     secret,
		httpClient: &http.Client{Timeout: defaultTimeout},
		recvWindow: defaultRecvWindow,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retrier == nil {
		c.retrier = retrier.New(retrier.WithMaxRetries(0), retrier.WithRetryIf(IsRetryable))
	}
	return c
}

// Get performs a signed GET and decodes the JSON response into dest.
func (c *SignedClient) Get(ctx context.Context, path string, params url.Values, dest any) error {
	return c.call(ctx, http.MethodGet, path, params, dest)
}

// Post performs a signed POST (parameters in the query string) and decodes into dest.
func (c *SignedClient) Post(ctx context.Context, path string, params url.Values, dest any) error {
	return c.call(ctx, http.MethodPost, path, params, dest)
}

func (c *SignedClient) call(ctx context.Context, method, path string, params url.Values, dest any) error {
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		err := c.do(ctx, method, path, params, dest)
		if err != nil && IsRetryable(err) {
			c.logger.Debug("retryable exchange error", zap.String("path", path), zap.Error(err))
		}
		return err
	})
	return errors.Wrapf(err, "%s %s", method, path)
}

// signedQuery appends timestamp (taken right before signing) and the signature.
func (c *SignedClient) signedQuery(params url.Values) string {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	if c.recvWindow > 0 {
		q.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	}
	q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))

	payload := q.Encode()
	return payload + "&signature=" + Sign(payload, c.secret)
}

func (c *SignedClient) do(ctx context.Context, method, path string, params url.Values, dest any) error {
	endpoint := c.baseURL + path + "?" + c.signedQuery(params)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set(apiKeyHeader, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(path, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func parseAPIError(path string, status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Path: path}
	var envelope struct {
		Code int64  `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Msg != "" {
		apiErr.Code = envelope.Code
		apiErr.Msg = envelope.Msg
		return apiErr
	}

	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyBytes {
		text = text[:maxErrorBodyBytes]
	}
	if text == "" {
		text = http.StatusText(status)
	}
	apiErr.Msg = text
	return apiErr
}
