package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
	"github.com/dejobratic/coursepay/internal/telemetry"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config carries the connection settings for the gateway.
type Config struct {
	BaseURL     string
	SecretKey   string
	Timeout     time.Duration
	MaxAttempts int
}

// Client talks to the Paystack transaction API.
type Client struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
	http      *http.Client
	retry     RetryPolicy
}

var _ ports.PaymentGateway = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetryPolicy overrides the retry behaviour derived from Config.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient builds a gateway client. Zero values in cfg fall back to defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retry := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	c := &Client{
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
		timeout:   timeout,
		http:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		retry:     retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializePayload struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	GatewayResponse string     `json:"gateway_response"`
	PaidAt          *time.Time `json:"paid_at"`
}

// Initialize starts a transaction and returns the hosted checkout URL.
func (c *Client) Initialize(ctx context.Context, req ports.InitializeRequest) (*ports.InitializeResult, error) {
	payload := initializePayload{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	}

	env, err := call[initializeData](ctx, c, "initialize", http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	return &ports.InitializeResult{
		AuthorizationURL: env.Data.AuthorizationURL,
		AccessCode:       env.Data.AccessCode,
		Reference:        env.Data.Reference,
		Message:          env.Message,
	}, nil
}

// Verify fetches the authoritative outcome of a transaction.
func (c *Client) Verify(ctx context.Context, reference string) (*ports.VerifyResult, error) {
	path := "/transaction/verify/" + url.PathEscape(reference)

	env, err := call[verifyData](ctx, c, "verify", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	return &ports.VerifyResult{
		Status:          env.Data.Status,
		Reference:       env.Data.Reference,
		AmountMinor:     env.Data.Amount,
		GatewayResponse: env.Data.GatewayResponse,
		PaidAt:          env.Data.PaidAt,
		Message:         env.Message,
	}, nil
}

func call[T any](ctx context.Context, c *Client, op, method, path string, payload any) (*envelope[T], error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "PaymentGateway."+op, attribute.String("gateway.operation", op))

	var result *envelope[T]
	err := c.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		env, err := attemptCall[T](ctx, c, op, method, path, body)
		if err != nil {
			telemetry.AddSpanEvent(span, "gateway.attempt_failed",
				attribute.Int("attempt", attempt),
				attribute.Bool("retryable", IsRetryable(err)),
			)
			slog.WarnContext(ctx, "gateway attempt failed",
				"operation", op,
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		result = env
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrGatewayRejected) {
		err = fmt.Errorf("%w: %w", domain.ErrGatewayUnavailable, err)
	}
	telemetry.Finish(span, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// attemptCall performs one request. Caller cancellation is ignored so a
// client disconnect cannot abort an in-flight gateway call; the per-attempt
// timeout still applies.
func attemptCall[T any](ctx context.Context, c *Client, op, method, path string, body []byte) (*envelope[T], error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{op: op, err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &transportError{op: op, err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &transportError{op: op, status: resp.StatusCode}
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &domain.RejectedError{Operation: op, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, &transportError{op: op, err: fmt.Errorf("decode response: %w", err)}
	}

	if !env.Status || resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &domain.RejectedError{Operation: op, Message: msg}
	}

	return &env, nil
}
