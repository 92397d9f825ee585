package ledgerclient

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
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/dto"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker in front of the remote ledger.
type BreakerSettings struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// DefaultBreakerSettings trips after five consecutive transport failures and lets a trial request through after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// HTTPTransport calls the ledger HTTP API of a remote instance.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewHTTPTransport creates a transport for the ledger at baseURL, e.g. http://ledger:8080.
func NewHTTPTransport(baseURL string, client *http.Client, settings BreakerSettings) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "account-ledger",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		// Only transport failures count against the breaker; the ledger saying no is a healthy answer.
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.Classify(err) != apperrors.KindTransient
		},
	})
	return &HTTPTransport{baseURL: baseURL, client: client, breaker: breaker}
}

var _ portssvc.LedgerClient = (*HTTPTransport)(nil)

func (t *HTTPTransport) Reserve(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return t.operate(ctx, "reserve", req)
}

func (t *HTTPTransport) Release(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return t.operate(ctx, "release", req)
}

func (t *HTTPTransport) Debit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return t.operate(ctx, "debit", req)
}

func (t *HTTPTransport) Credit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return t.operate(ctx, "credit", req)
}

func (t *HTTPTransport) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var body dto.AccountResponse
	path := "/api/v1/ledger/accounts/" + url.PathEscape(accountID)
	if err := t.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	return body.ToDomainAccount(), nil
}

func (t *HTTPTransport) FindOperation(ctx context.Context, accountID, correlationID string, op domain.LedgerOperation) (*domain.LedgerResult, error) {
	var result domain.LedgerResult
	path := fmt.Sprintf("/api/v1/ledger/accounts/%s/operations/%s/%s",
		url.PathEscape(accountID), url.PathEscape(correlationID), url.PathEscape(string(op)))
	if err := t.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) operate(ctx context.Context, action string, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	payload := dto.LedgerOperationRequest{
		Amount:        req.Amount,
		CorrelationID: req.CorrelationID,
		Reason:        req.Reason,
	}
	var result domain.LedgerResult
	path := fmt.Sprintf("/api/v1/ledger/accounts/%s/%s", url.PathEscape(req.AccountID), action)
	if err := t.do(ctx, http.MethodPost, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do performs one request through the breaker and decodes a 2xx body into out.
func (t *HTTPTransport) do(ctx context.Context, method, path string, in any, out any) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, t.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: account ledger unavailable: %w", apperrors.ErrTransient, err)
	}
	return err
}

func (t *HTTPTransport) roundTrip(ctx context.Context, method, path string, in any, out any) error {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encoding ledger request: %v", apperrors.ErrValidation, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building ledger request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if requestID := middleware.GetRequestIDFromCtx(ctx); requestID != "" {
		httpReq.Header.Set(middleware.RequestIDHeader, requestID)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		// refused connections, resets and timeouts alike leave the outcome open
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decoding ledger response: %v", apperrors.ErrTransient, err)
		}
		return nil
	}

	return decodeError(resp)
}

// decodeError turns a non-2xx ledger response into a typed error.
func decodeError(resp *http.Response) error {
	var body dto.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: ledger responded %d: %s", apperrors.ErrTransient, resp.StatusCode, msg)
	}

	kind := apperrors.KindFromString(body.Code)
	if kind == apperrors.KindInternal {
		switch resp.StatusCode {
		case http.StatusBadRequest:
			kind = apperrors.KindValidation
		case http.StatusNotFound:
			kind = apperrors.KindNotFound
		case http.StatusConflict:
			kind = apperrors.KindConcurrentModification
		}
	}
	return fmt.Errorf("%w: %s", apperrors.SentinelFor(kind), msg)
}
