package domain

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Outcome is the typed result of running a handler under a RetryPolicy.
type Outcome string

const (
	// OutcomeSuccess means the handler completed.
	OutcomeSuccess Outcome = "success"
	// OutcomeRetryable means a single attempt failed but the policy has
	// attempts remaining. Execute never returns this; it is the per-attempt
	// classification.
	OutcomeRetryable Outcome = "retryable_failure"
	// OutcomeTerminal means the failure is permanent: either non-retryable by
	// classification or the attempt budget is exhausted.
	OutcomeTerminal Outcome = "terminal_failure"
)

// Classify maps an error from a single handler attempt to an outcome.
// Schema and argument errors never resolve on retry; everything else is
// assumed transient (store unavailable, broker hiccup).
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, ErrSchemaInvalid) || errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrConflict) {
		return OutcomeTerminal
	}
	return OutcomeRetryable
}

// RetryPolicy wraps a handler call with bounded exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy mirrors the production defaults: 3 attempts with
// exponential delay between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryResult reports how an Execute run ended. Outcome is OutcomeSuccess or
// OutcomeTerminal; Err carries the last attempt's error for terminal runs.
type RetryResult struct {
	Outcome  Outcome
	Attempts int
	Err      error
}

// Execute runs op under the policy. Non-retryable errors short-circuit to a
// terminal result without further attempts; retryable errors are re-attempted
// up to MaxAttempts with exponential delay. Context cancellation aborts the
// wait and surfaces as terminal.
func (p RetryPolicy) Execute(ctx Context, op func(Context) error) RetryResult {
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	err := backoff.Retry(func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if Classify(err) == OutcomeTerminal {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx))

	if err == nil {
		return RetryResult{Outcome: OutcomeSuccess, Attempts: attempts}
	}
	return RetryResult{Outcome: OutcomeTerminal, Attempts: attempts, Err: err}
}
