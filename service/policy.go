package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/viant/vecflow/apierr"
)

// Clock abstracts time for polling and settle delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff kinds.
const (
	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
	BackoffFibonacci   = "fibonacci"
)

// Policy describes a retry or polling schedule.
// MaxAttempts and MaxWait of zero mean unbounded; MaxRetries bounds retries after the first call.
type Policy struct {
	Kind        string        `yaml:"kind"`
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"maxInterval"`
	Jitter      time.Duration `yaml:"jitter"`
	MaxWait     time.Duration `yaml:"maxWait"`
	MaxRetries  int           `yaml:"maxRetries"`
}

// ReadinessPolicy polls every 2s for up to 300s.
func ReadinessPolicy() Policy {
	return Policy{Kind: BackoffConstant, Interval: 2 * time.Second, MaxWait: 300 * time.Second}
}

// NoRetry performs a single call.
func NoRetry() Policy {
	return Policy{Kind: BackoffConstant, Interval: time.Second}
}

// Validate rejects negative settings and unknown kinds.
// A bounded policy must also stop on its own through MaxWait or MaxRetries.
func (p Policy) Validate(bounded bool) error {
	switch strings.ToLower(p.Kind) {
	case "", BackoffConstant, BackoffExponential, BackoffFibonacci:
	default:
		return fmt.Errorf("unsupported backoff kind %q", p.Kind)
	}
	if p.Interval < 0 || p.MaxInterval < 0 || p.Jitter < 0 || p.MaxWait < 0 || p.MaxRetries < 0 {
		return fmt.Errorf("durations and maxRetries must not be negative")
	}
	if bounded && p.MaxWait == 0 && p.MaxRetries == 0 {
		return fmt.Errorf("maxWait or maxRetries is required")
	}
	return nil
}

// Backoff builds a fresh go-retry backoff; backoffs are stateful and must not be shared.
func (p Policy) Backoff() retry.Backoff {
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}
	var b retry.Backoff
	switch strings.ToLower(p.Kind) {
	case BackoffExponential:
		b = retry.NewExponential(interval)
	case BackoffFibonacci:
		b = retry.NewFibonacci(interval)
	default:
		b = retry.NewConstant(interval)
	}
	if p.MaxInterval > 0 {
		b = retry.WithCappedDuration(p.MaxInterval, b)
	}
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	if p.MaxRetries > 0 {
		b = retry.WithMaxRetries(uint64(p.MaxRetries), b)
	}
	return b
}

// ErrPolicyExhausted reports that a poll ran out of attempts or time.
var ErrPolicyExhausted = errors.New("policy exhausted")

// Poll calls check until it reports done, sleeping on clock between calls.
// Errors from check are handed to onError and polling continues.
// It returns ErrPolicyExhausted once MaxRetries or MaxWait is used up.
func (p Policy) Poll(ctx context.Context, clock Clock, check func(ctx context.Context) (bool, error), onError func(err error)) error {
	b := p.Backoff()
	start := clock.Now()
	for {
		done, err := check(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if onError != nil {
				onError(err)
			}
		} else if done {
			return nil
		}
		delay, stop := b.Next()
		if stop {
			return ErrPolicyExhausted
		}
		if p.MaxWait > 0 && clock.Now().Sub(start)+delay > p.MaxWait {
			return ErrPolicyExhausted
		}
		if err := clock.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Retry calls fn until it succeeds, the error is not retryable, or the policy stops.
// With MaxRetries zero fn runs once.
func (p Policy) Retry(ctx context.Context, clock Clock, fn func(ctx context.Context) error) error {
	if p.MaxRetries <= 0 {
		return fn(ctx)
	}
	b := p.Backoff()
	for {
		err := fn(ctx)
		if err == nil || !Retryable(err) || ctx.Err() != nil {
			return err
		}
		delay, stop := b.Next()
		if stop {
			return err
		}
		if sleepErr := clock.Sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// Retryable reports whether err may succeed on a later attempt.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var e *apierr.Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Kind {
	case apierr.KindAuthentication, apierr.KindNotFound, apierr.KindUnexpectedResponse:
		return false
	}
	return e.Status == 0 || e.Status >= 500 || e.Status == 429 || e.Status == 408
}
