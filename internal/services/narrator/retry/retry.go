// Package retry wraps outbound generation calls with exponential backoff for
// rate-limit class failures. Every other failure propagates immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"

	apperrors "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/errors"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/random"
)

const (
	// DefaultMaxAttempts counts the first call plus retries.
	DefaultMaxAttempts = 3
	// DefaultInitialDelay is the wait before the first retry.
	DefaultInitialDelay = 2 * time.Second
	// DefaultFactor multiplies the delay after every retry.
	DefaultFactor = 2.0
	// DefaultMaxJitter bounds the uniform jitter added to each delay.
	DefaultMaxJitter = time.Second
)

// Policy parameterizes Do.
type Policy struct {
	// Name labels log lines, e.g. "narration" or "premise".
	Name         string
	MaxAttempts  int
	InitialDelay time.Duration
	Factor       float64
	MaxJitter    time.Duration
	// Retryable classifies errors worth another attempt. Nil means IsRateLimited.
	Retryable func(error) bool
	// Jitter returns a value in [0, max). Nil uses a seeded math/rand source.
	Jitter func(max time.Duration) time.Duration
}

// DefaultPolicy returns the policy used around every generation call.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:         name,
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		Factor:       DefaultFactor,
		MaxJitter:    DefaultMaxJitter,
		Retryable:    IsRateLimited,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Factor < 1 {
		p.Factor = DefaultFactor
	}
	if p.MaxJitter < 0 {
		p.MaxJitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsRateLimited
	}
	if p.Jitter == nil {
		p.Jitter = defaultJitter
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "call"
	}
	return p
}

// Do runs op until it succeeds, fails with a non-retryable error or
// MaxAttempts is exhausted. The final error is returned unchanged.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	if ctx == nil {
		var zero T
		return zero, errors.New("retry: context is required")
	}
	if op == nil {
		var zero T
		return zero, errors.New("retry: operation is required")
	}
	policy = policy.normalized()

	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !policy.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("retry: %s rate limited, retrying in %s (%d/%d): %v", policy.Name, wait.Round(10*time.Millisecond), attempt, policy.MaxAttempts, err)
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(&jitterBackOff{policy: policy}),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
}

// IsRateLimited reports whether err describes quota exhaustion upstream.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.CodeOf(err) == apperrors.CodeRateLimited {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return true
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		if apiErrPtr.Code == 429 || strings.EqualFold(apiErrPtr.Status, "RESOURCE_EXHAUSTED") {
			return true
		}
	}
	text := err.Error()
	return strings.Contains(text, "429") || strings.Contains(text, "RESOURCE_EXHAUSTED")
}

// Exhausted wraps a final upstream error in the coded form surfaced to callers.
func Exhausted(name string, err error) error {
	if err == nil {
		return nil
	}
	code := apperrors.CodeUpstreamFailed
	if IsRateLimited(err) {
		code = apperrors.CodeRateLimited
	}
	return apperrors.Wrap(code, fmt.Sprintf("%s failed", name), err)
}

// jitterBackOff yields delay + uniform jitter, multiplying delay by Factor.
type jitterBackOff struct {
	policy Policy
	next   time.Duration
}

func (b *jitterBackOff) Reset() {
	b.next = b.policy.InitialDelay
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	wait := b.next
	if b.policy.MaxJitter > 0 {
		wait += b.policy.Jitter(b.policy.MaxJitter)
	}
	b.next = time.Duration(float64(b.next) * b.policy.Factor)
	return wait
}

var (
	jitterMu  sync.Mutex
	jitterRNG = random.NewSource()
)

func defaultJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return time.Duration(jitterRNG.Int63n(int64(max)))
}
