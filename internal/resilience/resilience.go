// Package resilience wires pkg/circuitbreaker and pkg/retry around the
// signer collaborator: a flapping or unreachable signing backend should
// not take down a producer thread, and a transient failure should retry
// with backoff before it is surfaced as OnSignFailure.
package resilience

import (
	"context"
	"time"

	"ndnrtc/internal/core/ports"
	"ndnrtc/pkg/circuitbreaker"
	"ndnrtc/pkg/retry"
)

// Signer wraps a ports.Signer with retry-with-backoff and a circuit
// breaker that trips after repeated failures, so a struggling signing
// backend degrades to fast, uniform failures instead of compounding
// latency onto every sample.
type Signer struct {
	inner   ports.Signer
	breaker *circuitbreaker.CircuitBreaker
	retry   retry.Config
}

// New wraps inner with the given circuit breaker and retry configuration.
func New(inner ports.Signer, cbCfg circuitbreaker.Config, retryCfg retry.Config) *Signer {
	return &Signer{inner: inner, breaker: circuitbreaker.New(cbCfg), retry: retryCfg}
}

// DefaultSigner wraps inner with sane defaults for a signing backend: a
// handful of retries with short backoff, and a breaker that opens after
// five consecutive failures.
func DefaultSigner(inner ports.Signer) *Signer {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 2
	retryCfg.InitialDelay = 20 * time.Millisecond
	retryCfg.MaxDelay = 200 * time.Millisecond
	return New(inner, circuitbreaker.DefaultConfig(), retryCfg)
}

// Sign signs data via inner, retrying transient failures and short-
// circuiting through the breaker when the backend is unhealthy.
func (s *Signer) Sign(ctx context.Context, identity string, data []byte) ([]byte, error) {
	v, err := s.breaker.ExecuteWithResult(ctx, func() (interface{}, error) {
		return retry.RetryWithResult(ctx, s.retry, func() ([]byte, error) {
			return s.inner.Sign(ctx, identity, data)
		})
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

// VerifyData verifies data via inner, retrying transient failures and
// short-circuiting through the breaker when the backend is unhealthy.
// Unlike Sign, a definitive verification failure (ok=false) is not an
// error and is never retried.
func (s *Signer) VerifyData(ctx context.Context, data []byte, signature []byte, identity string) (bool, string, error) {
	type verifyResult struct {
		ok     bool
		reason string
	}
	v, err := s.breaker.ExecuteWithResult(ctx, func() (interface{}, error) {
		return retry.RetryWithResult(ctx, s.retry, func() (verifyResult, error) {
			ok, reason, err := s.inner.VerifyData(ctx, data, signature, identity)
			return verifyResult{ok: ok, reason: reason}, err
		})
	})
	if err != nil {
		return false, "", err
	}
	vr := v.(verifyResult)
	return vr.ok, vr.reason, nil
}

// BreakerState reports the circuit breaker's current state, for
// health/status reporting.
func (s *Signer) BreakerState() circuitbreaker.State {
	return s.breaker.GetState()
}
