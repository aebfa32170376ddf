package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimit bounds how often an attempt may proceed using a token-bucket
// limiter. Kept off the RFC dispatch path — gating inbound request
// dispatch is exactly the "flow control/backpressure" spec.md lists as
// out of scope for the core — and wired instead around a Connector's
// dial/reconnect attempts, where bounding attempt rate is an ordinary
// infra concern.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			if !limiter.Allow() {
				return nil, fmt.Errorf("middleware: rate limit exceeded for %q", req.Name)
			}
			return next(ctx, req)
		}
	}
}
