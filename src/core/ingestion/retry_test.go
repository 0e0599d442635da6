package ingestion_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"govrag/src/core/ingestion"
	"govrag/src/core/knowledgebase"
)

func TestBackOffSchedule(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		want       []time.Duration
	}{
		{"none", 0, nil},
		{"three", 3, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond}},
		{"five", 5, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond, 16 * time.Millisecond, 32 * time.Millisecond}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := ingestion.RetryPolicy{MaxRetries: tt.maxRetries, Unit: time.Millisecond}.BackOff()
			var got []time.Duration
			for d := schedule.NextBackOff(); d != backoff.Stop; d = schedule.NextBackOff() {
				got = append(got, d)
				if len(got) > tt.maxRetries {
					break
				}
			}
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("BackOff() schedule = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"throttled", &knowledgebase.StatusError{StatusCode: 429}, true},
		{"unavailable", fmt.Errorf("wrapped: %w", &knowledgebase.StatusError{StatusCode: 503}), true},
		{"bad request", &knowledgebase.StatusError{StatusCode: 400}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ingestion.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoStopsWhenSleepIsInterrupted(t *testing.T) {
	p := ingestion.RetryPolicy{
		MaxRetries: 3,
		Sleep: func(context.Context, time.Duration) error {
			return context.Canceled
		},
	}

	attempts, err := p.Do(context.Background(), func(context.Context) error {
		return &knowledgebase.StatusError{StatusCode: 503}
	}, nil)
	if attempts != 1 {
		t.Errorf("Do() attempts = %d, want 1", attempts)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ingestion.SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("SleepContext() error = %v, want context.Canceled", err)
	}
	if err := ingestion.SleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("SleepContext() error = %v", err)
	}
}
