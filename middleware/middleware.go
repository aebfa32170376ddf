// Package middleware provides composable wrappers around both
// connection attempts and inbound RFC dispatch, kept structurally
// identical to the teacher's request-handler middleware chain. Outbound
// Invoke carries none of this — per-call retry/flow-control on an
// already-dispatched call was ruled out of scope — but rfc.Communicator
// wraps inbound request dispatch in the same chain via UseDispatch, and
// connection setup wraps it via transport.DialWithRetry, so logging,
// timeout, retry, and rate-limit middleware all still apply, just never
// to an in-flight outbound call.
package middleware

import "context"

// Request describes one attempt a middleware chain wraps: either a
// connection attempt (Name is a dial address) or an inbound RFC
// dispatch (Name is the dotted listener path, Parameters its
// positional arguments). Standing in for the teacher's RPCMessage (the
// thing passed through the chain) without the RPC-specific fields that
// no longer apply.
type Request struct {
	Name       string
	Parameters []any
}

// HandlerFunc performs one attempt (e.g. net.Dial) and reports its
// outcome.
type HandlerFunc func(ctx context.Context, req *Request) (any, error)

// Middleware wraps a HandlerFunc with before/after behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, applied in the order given:
// Chain(A, B, C)(handler) => A(B(C(handler))), so A's before-logic
// runs first and its after-logic runs last — the onion model.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
