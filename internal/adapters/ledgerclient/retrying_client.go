// Package ledgerclient is how the transfer orchestrator reaches the account ledger.
//
// A transport performs single calls (in process or over HTTP); RetryingClient adds
// per-attempt timeouts and exponential backoff with full jitter for transient failures.
package ledgerclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/funds_transfer_app/internal/apperrors"
	"github.com/SscSPs/funds_transfer_app/internal/core/domain"
	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
	"github.com/SscSPs/funds_transfer_app/internal/middleware"
	"github.com/SscSPs/funds_transfer_app/internal/platform/metrics"
	"github.com/SscSPs/funds_transfer_app/internal/utils/backoff"
)

// RetryPolicy bounds the retries of one logical ledger call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	StepTimeout time.Duration // per attempt; 0 disables
}

// DefaultRetryPolicy is used for zero fields of a supplied policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		StepTimeout: 5 * time.Second,
	}
}

// RetryingClient retries transient failures of a transport. Business rejections are returned at once.
type RetryingClient struct {
	transport portssvc.LedgerClient
	policy    RetryPolicy
}

// NewRetryingClient wraps transport with policy.
func NewRetryingClient(transport portssvc.LedgerClient, policy RetryPolicy) *RetryingClient {
	def := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = def.BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = def.MaxDelay
	}
	return &RetryingClient{transport: transport, policy: policy}
}

var _ portssvc.LedgerClient = (*RetryingClient)(nil)

func (c *RetryingClient) Reserve(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return retry(ctx, c, string(domain.OpReserve), true, func(ctx context.Context) (*domain.LedgerResult, error) {
		return c.transport.Reserve(ctx, req)
	})
}

func (c *RetryingClient) Release(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return retry(ctx, c, string(domain.OpRelease), true, func(ctx context.Context) (*domain.LedgerResult, error) {
		return c.transport.Release(ctx, req)
	})
}

func (c *RetryingClient) Debit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return retry(ctx, c, string(domain.OpDebit), true, func(ctx context.Context) (*domain.LedgerResult, error) {
		return c.transport.Debit(ctx, req)
	})
}

func (c *RetryingClient) Credit(ctx context.Context, req domain.LedgerRequest) (*domain.LedgerResult, error) {
	return retry(ctx, c, string(domain.OpCredit), true, func(ctx context.Context) (*domain.LedgerResult, error) {
		return c.transport.Credit(ctx, req)
	})
}

func (c *RetryingClient) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return retry(ctx, c, "GET_ACCOUNT", false, func(ctx context.Context) (*domain.Account, error) {
		return c.transport.GetAccount(ctx, accountID)
	})
}

func (c *RetryingClient) FindOperation(ctx context.Context, accountID, correlationID string, op domain.LedgerOperation) (*domain.LedgerResult, error) {
	return retry(ctx, c, "FIND_"+string(op), false, func(ctx context.Context) (*domain.LedgerResult, error) {
		return c.transport.FindOperation(ctx, accountID, correlationID, op)
	})
}

// retry runs call until it succeeds, fails with a non-transient error, or the attempts
// run out. For mutations the exhausted error also matches apperrors.ErrOutcomeUnknown.
func retry[T any](ctx context.Context, c *RetryingClient, name string, mutation bool, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	logger := middleware.GetLoggerFromCtx(ctx)

	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.LedgerClientRetriesTotal.WithLabelValues(name).Inc()
			delay := backoff.Delay(c.policy.BaseDelay, c.policy.MaxDelay, attempt-1)
			logger.Debug("Retrying ledger call",
				slog.String("call", name),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			if err := backoff.Sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		result, err := callOnce(ctx, c.policy.StepTimeout, call)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if apperrors.Classify(err) != apperrors.KindTransient {
			return zero, err
		}
		if ctx.Err() != nil {
			break
		}
	}

	if mutation {
		return zero, fmt.Errorf("%s: %w: %w: %w", name, apperrors.ErrTransient, apperrors.ErrOutcomeUnknown, lastErr)
	}
	return zero, fmt.Errorf("%s: %w: %w", name, apperrors.ErrTransient, lastErr)
}

func callOnce[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return call(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return call(attemptCtx)
}
