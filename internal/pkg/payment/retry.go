package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
)

const providerMaxAttempts = 3
const providerRetryDelay = 500 * time.Millisecond

// withRetry runs fn up to attempts times with a linearly growing delay
// between tries. Only transient provider failures are retried; client errors
// fail fast.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isRetryable(err) || i == attempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(i+1)):
		}
	}
	return err
}

// isRetryable treats provider 5xx responses and rate limits as transient.
// Errors without a Stripe status code are transport failures (timeouts,
// connection resets) and are retried as well.
func isRetryable(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}
