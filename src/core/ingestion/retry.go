package ingestion

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"govrag/src/core/knowledgebase"
)

// RetryPolicy controls how a failed batch submission is retried
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// Unit scales the backoff: the delay after attempt k is 2^k units
	Unit time.Duration
	// Retryable classifies submission errors; defaults to IsRetryable
	Retryable func(error) bool
	// Sleep waits between attempts; defaults to SleepContext
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Unit:       time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Unit <= 0 {
		p.Unit = time.Second
	}
	if p.Retryable == nil {
		p.Retryable = IsRetryable
	}
	if p.Sleep == nil {
		p.Sleep = SleepContext
	}
	return p
}

// BackOff returns the delay schedule for one batch: 2^k units after attempt
// k, then backoff.Stop once MaxRetries delays have been handed out.
func (p RetryPolicy) BackOff() backoff.BackOff {
	p = p.withDefaults()
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 2 * p.Unit
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = time.Duration(math.MaxInt64)
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
}

// Do runs op until it succeeds, fails with a non-retryable error or has been
// retried MaxRetries times. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) (int, error) {
	p = p.withDefaults()
	schedule := p.BackOff()
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		if !p.Retryable(err) {
			return attempt, err
		}
		delay := schedule.NextBackOff()
		if delay == backoff.Stop {
			return attempt, err
		}

		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
		if serr := p.Sleep(ctx, delay); serr != nil {
			return attempt, errors.Join(err, serr)
		}
	}
}

// IsRetryable reports whether err is transient: a throttled or 5xx store
// response, or a per-call timeout.
func IsRetryable(err error) bool {
	var serr *knowledgebase.StatusError
	if errors.As(err, &serr) {
		return serr.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// SleepContext waits for d or until ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
