package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logging logs each attempt's name, duration, and outcome via zap —
// promoted here from an indirect dependency the teacher's stack
// already carries through etcd, to a direct one, since this is the
// one place a plain-text log line needs structure.
func Logging(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (any, error) {
			start := time.Now()
			result, err := next(ctx, req)
			duration := time.Since(start)
			if err != nil {
				logger.Warn("connection attempt failed",
					zap.String("attempt", req.Name),
					zap.Duration("duration", duration),
					zap.Error(err))
			} else {
				logger.Debug("connection attempt succeeded",
					zap.String("attempt", req.Name),
					zap.Duration("duration", duration))
			}
			return result, err
		}
	}
}
