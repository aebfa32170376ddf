package middleware

import (
	"context"
	"fmt"
	"time"
)

// Timeout aborts an attempt — a connection dial or an inbound RFC
// dispatch — that doesn't finish within d. Adapted from the teacher's
// TimeOutMiddleware to the generic Request/HandlerFunc signature: the
// teacher returned a sentinel *message.RPCMessage carrying an error
// string, here the same outcome is a plain (nil, error) return.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type outcome struct {
				value any
				err   error
			}
			done := make(chan outcome, 1)
			go func() {
				value, err := next(ctx, req)
				done <- outcome{value, err}
			}()

			select {
			case o := <-done:
				return o.value, o.err
			case <-ctx.Done():
				return nil, fmt.Errorf("middleware: %q timed out after %s", req.Name, d)
			}
		}
	}
}
