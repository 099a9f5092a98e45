package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/openfactory/designcore/internal/types"
	"go.uber.org/zap"
)

// Postgres error classes that retrying can never fix.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// RetryPolicy is a reusable backoff combinator: up to MaxAttempts tries with
// delay = BaseDelay × 2^(attempt−1) between them. Non-retryable errors fail
// on the spot; a retryable error that survives the last attempt comes back
// wrapped in a TransactionError carrying the last underlying cause.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

// NonRetryable reports whether an error belongs to a failure class that must
// not be retried: constraint violations, validation failures, and anything
// smelling of authentication.
func NonRetryable(err error) bool {
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid") || strings.Contains(msg, "authentication")
}

// Execute runs fn under the policy. The operation name tags the wrapping
// TransactionError so callers can tell which write gave up.
func (p RetryPolicy) Execute(ctx context.Context, logger *zap.Logger, operation string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if NonRetryable(err) {
			return err
		}

		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay * (1 << (attempt - 1))
		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &types.TransactionError{Operation: operation, Cause: ctx.Err()}
		}
	}

	return &types.TransactionError{Operation: operation, Cause: lastErr}
}
