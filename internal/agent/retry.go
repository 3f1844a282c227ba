package agent

import (
	"context"
	"time"
)

// outcome classifies a single inference attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	// the model is still being loaded by the service
	outcomeLoading
	// transport error, timeout, throttling or 5xx
	outcomeRetryable
	// the request or the response is unusable; retrying the same model won't help
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeSuccess:
		return "success"
	case outcomeLoading:
		return "loading"
	case outcomeRetryable:
		return "retryable"
	case outcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// step is what the retry loop does after an attempt.
type step int

const (
	stepDone step = iota
	stepWaitLoading
	stepBackoff
	stepAbandon
	stepExhausted
)

func (s step) String() string {
	switch s {
	case stepDone:
		return "done"
	case stepWaitLoading:
		return "retry-after-loading-wait"
	case stepBackoff:
		return "retry-after-backoff"
	case stepAbandon:
		return "abandon"
	case stepExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// nextStep decides the transition after attempt number attempt (1-based) out
// of maxAttempts.
func nextStep(o outcome, attempt, maxAttempts int) step {
	switch o {
	case outcomeSuccess:
		return stepDone
	case outcomeFatal:
		return stepAbandon
	}
	if attempt >= maxAttempts {
		return stepExhausted
	}
	if o == outcomeLoading {
		return stepWaitLoading
	}
	return stepBackoff
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
