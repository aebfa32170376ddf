package transport

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mini-rfc/codec"
	"mini-rfc/loadbalance"
	"mini-rfc/middleware"
	"mini-rfc/registry"
)

// DialViaRegistry discovers the live peers advertised under
// providerName in reg, picks one with balancer, and dials it —
// generalizing the teacher's client-side "which RPC server instance"
// selection (loadbalance.Balancer.Pick over registry.Discover) from
// "which RPC server" to "which grid peer."
func DialViaRegistry(network string, codecType codec.CodecType, provider any, reg registry.Registry, providerName string, balancer loadbalance.Balancer) (*Connector, error) {
	peers, err := reg.Discover(providerName)
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("transport: no peers registered for %q", providerName)
	}

	peer, err := balancer.Pick(peers)
	if err != nil {
		return nil, err
	}

	return Dial(network, peer.Addr, codecType, provider)
}

// DialWithRetry wraps a dial attempt with exponential backoff and a
// per-attempt rate limit, repurposing middleware.Retry and
// middleware.RateLimit for Connector dial/reconnect rather than
// RFC-call retry/flow-control — spec.md forbids retrying an
// already-dispatched call or rate-limiting the call path itself, so
// both belong at connection setup instead. rateLimit <= 0 disables the
// limiter, leaving only the retry backoff.
//
// Chain(Retry, RateLimit)(attempt) builds Retry(RateLimit(attempt)):
// Retry's backoff loop calls its next (the rate-limited attempt) once
// per try, so every individual dial attempt — not just the call as a
// whole — passes through the limiter.
func DialWithRetry(network, address string, codecType codec.CodecType, provider any, maxRetries int, baseDelay time.Duration, rateLimit float64, burst int, logger *zap.Logger) (*Connector, error) {
	attempt := middleware.HandlerFunc(func(ctx context.Context, req *middleware.Request) (any, error) {
		return Dial(network, req.Name, codecType, provider)
	})

	chain := []middleware.Middleware{middleware.Retry(logger, maxRetries, baseDelay)}
	if rateLimit > 0 {
		chain = append(chain, middleware.RateLimit(rateLimit, burst))
	}
	chained := middleware.Chain(chain...)(attempt)

	result, err := chained(context.Background(), &middleware.Request{Name: address})
	if err != nil {
		return nil, err
	}
	return result.(*Connector), nil
}

// DialViaRegistryWithRetry combines peer discovery/selection with
// dial-attempt retry and rate limiting: it resolves a peer address
// from reg via balancer, then dials it through DialWithRetry.
func DialViaRegistryWithRetry(network string, codecType codec.CodecType, provider any, reg registry.Registry, providerName string, balancer loadbalance.Balancer, maxRetries int, baseDelay time.Duration, rateLimit float64, burst int, logger *zap.Logger) (*Connector, error) {
	peers, err := reg.Discover(providerName)
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("transport: no peers registered for %q", providerName)
	}

	peer, err := balancer.Pick(peers)
	if err != nil {
		return nil, err
	}

	return DialWithRetry(network, peer.Addr, codecType, provider, maxRetries, baseDelay, rateLimit, burst, logger)
}
