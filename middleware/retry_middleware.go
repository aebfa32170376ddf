package middleware

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Retry wraps a connection attempt with exponential backoff. Repurposed
// from the teacher's RetryMiddleware — which retried an RPC call whose
// error looked transient — to Connector dial/reconnect backoff instead,
// since retrying an already-dispatched RFC call from the caller's side
// is explicitly out of scope (spec.md §5: in-flight calls settle only
// on a response or teardown). Dial attempts carry no such invariant, so
// this is the one place in the stack where the teacher's retry shape
// still applies.
func Retry(logger *zap.Logger, maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			value, err := next(ctx, req)
			for i := 0; i < maxRetries && err != nil; i++ {
				if !isRetryableDialError(err) {
					return value, err // non-retryable error, return immediately
				}
				if logger != nil {
					logger.Warn("retrying connection attempt",
						zap.String("attempt", req.Name),
						zap.Int("try", i+1),
						zap.Error(err))
				}
				time.Sleep(baseDelay * time.Duration(1<<i)) // exponential backoff
				value, err = next(ctx, req)
			}
			return value, err
		}
	}
}

// isRetryableDialError reports whether a dial failure looks transient
// (a busy peer, a slow accept queue, an attempt turned away by
// RateLimit) rather than a permanent misconfiguration, mirroring the
// teacher's string-matched error classification.
func isRetryableDialError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "i/o timeout") ||
		strings.Contains(msg, "rate limit exceeded")
}
