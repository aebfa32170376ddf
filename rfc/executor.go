package rfc

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"mini-rfc/frame"
	"mini-rfc/middleware"
)

// AsyncResult is the channel payload a listener function may return
// instead of a direct value, so the executor can await it before
// emitting a response frame (spec.md §4.3 "await the result if it is
// asynchronous", testable property 7 in spec.md §8).
type AsyncResult struct {
	Value any
	Err   error
}

var (
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	asyncResultType = reflect.TypeOf(AsyncResult{})
)

type result struct {
	value any
	err   error
}

// Invoke implements spec.md §4.3's outbound call: consult the
// inspector, allocate a uid, register the pending call, and send the
// request frame. If sender fails synchronously the entry is left in
// the table — it will be settled on teardown, matching "transports
// that need eager failure may call Destructor from their send path."
//
// The inspect-then-insert sequence runs under c.mu, the same lock
// Close/Reject/HandlePeerClose/HandlePeerReject hold across their
// state-CAS-then-Destructor sequence — otherwise a teardown landing in
// the window between the inspector check and the table insert would
// drain the table before this call's entry exists, and the entry would
// never be settled (spec.md §3 invariant 1). Send itself runs outside
// the lock: it may block on I/O, and nothing about it touches shared
// state the lock protects.
func (c *Communicator) Invoke(listener string, params ...any) (any, error) {
	c.mu.Lock()
	if err := c.Inspector(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	uid := nextUid()
	done := make(chan result, 1)
	c.table.insert(uid,
		func(value any) { done <- result{value: value} },
		func(err error) { done <- result{err: err} },
	)
	c.mu.Unlock()

	c.transport.Send(frame.NewRequest(uid, listener, params))

	r := <-done
	return r.value, r.err
}

// Replier is the entry point a transport invokes for each inbound
// frame, after whatever framing/deserialization the transport applies
// (spec.md §4.1 "replier(frame)"). It classifies the frame and
// dispatches to request or response handling.
func (c *Communicator) Replier(f *frame.Frame) {
	if f.IsRequest() {
		c.handleRequest(f)
	} else {
		c.handleResponse(f)
	}
}

// handleResponse implements spec.md §4.3's response-handling steps: a
// uid absent from the table (a race with teardown) is silently
// dropped, never iterated in bulk — only Destructor does that.
func (c *Communicator) handleResponse(f *frame.Frame) {
	call, ok := c.table.settle(f.Uid)
	if !ok {
		return
	}
	if f.Success {
		call.resolve(f.Value)
	} else {
		call.reject(&RemoteFailure{Payload: f.Value})
	}
}

// handleRequest implements spec.md §4.3's request-handling steps:
// missing provider, dotted-name resolution, invocation (awaiting an
// asynchronous result), and emitting the matching response frame.
// Resolution and invocation run behind the communicator's dispatch
// chain (see UseDispatch), the same onion-model wrapping the teacher's
// server.go applies via svr.handler before calling businessHandler.
func (c *Communicator) handleRequest(f *frame.Frame) {
	provider := c.Provider()
	if provider == nil {
		c.transport.Send(frame.NewResponse(f.Uid, false, frame.NewErrorPayload("NotReady", ErrNotReady)))
		return
	}

	handler := middleware.HandlerFunc(func(ctx context.Context, req *middleware.Request) (any, error) {
		return resolveAndCall(provider, req.Name, req.Parameters)
	})
	if c.dispatch != nil {
		handler = c.dispatch(handler)
	}

	value, err := handler(context.Background(), &middleware.Request{Name: f.Listener, Parameters: f.Parameters})
	if err != nil {
		c.transport.Send(frame.NewResponse(f.Uid, false, frame.NewErrorPayload(errorName(err), err)))
		return
	}
	c.transport.Send(frame.NewResponse(f.Uid, true, value))
}

// errorName derives the wire "name" field for an error value: its
// *ResolutionFailure/RemoteFailure type name when recognized, else a
// generic "Error".
func errorName(err error) string {
	switch err.(type) {
	case *ResolutionFailure:
		return "ResolutionFailure"
	case *RemoteFailure:
		return "RemoteFailure"
	default:
		return "Error"
	}
}

// resolveAndCall splits listener on ".", descends the provider by
// successive member access — keeping the penultimate object as the
// receiver for the final call — and invokes the resolved function with
// params as positional arguments, awaiting it if it is asynchronous.
//
// Grounded on server/service.go's reflect.Method scan and
// reflect.Value.Call, generalized from a fixed two-segment
// "Service.Method" split to an arbitrary-depth dotted path.
//
// A malformed remote request (bad arity, an argument type reflect
// can't convert, a dotted segment that panics a Map/Field lookup) must
// become a rejected response, never a process crash — the teacher's
// fixed-arity RPC shape (rcvr, *Args, *Reply, always decoded into the
// declared type) never hit this surface, but the arbitrary positional
// dotted-path call this generalizes to can. The deferred recover is
// the last line of defense behind the explicit arity/conversion checks
// in invokeCallable/convertArg below.
func resolveAndCall(provider any, listener string, params []any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &ResolutionFailure{Listener: listener, Reason: fmt.Sprintf("panic during invocation: %v", r)}
		}
	}()

	segments := strings.Split(listener, ".")

	cur := reflect.ValueOf(provider)
	for _, seg := range segments[:len(segments)-1] {
		next, err := descend(cur, seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}

	fn, err := resolveCallable(cur, segments[len(segments)-1])
	if err != nil {
		return nil, err
	}

	return invokeCallable(fn, params)
}

// descend resolves one path segment against cur, which may be a map,
// a struct, or a pointer to a struct.
func descend(cur reflect.Value, seg string) (reflect.Value, error) {
	cur = indirectForRead(cur)

	switch cur.Kind() {
	case reflect.Map:
		v := cur.MapIndex(reflect.ValueOf(seg))
		if !v.IsValid() {
			return reflect.Value{}, &ResolutionFailure{Listener: seg, Reason: "no such key"}
		}
		return reflect.ValueOf(v.Interface()), nil
	case reflect.Struct:
		if f := cur.FieldByName(seg); f.IsValid() {
			return f, nil
		}
		return reflect.Value{}, &ResolutionFailure{Listener: seg, Reason: "no such field"}
	default:
		return reflect.Value{}, &ResolutionFailure{Listener: seg, Reason: "not a traversable receiver"}
	}
}

// resolveCallable resolves the final path segment against receiver: a
// method on the receiver (or its addressable pointer), a struct field
// holding a func, or a map entry holding a func.
func resolveCallable(receiver reflect.Value, seg string) (reflect.Value, error) {
	raw := indirectForRead(receiver)

	if raw.Kind() == reflect.Map {
		v := raw.MapIndex(reflect.ValueOf(seg))
		if !v.IsValid() {
			return reflect.Value{}, &ResolutionFailure{Listener: seg, Reason: "no such key"}
		}
		fn := reflect.ValueOf(v.Interface())
		if fn.Kind() != reflect.Func {
			return reflect.Value{}, &ResolutionFailure{Listener: seg, Reason: "not callable"}
		}
		return fn, nil
	}

	if receiver.IsValid() {
		if m := receiver.MethodByName(seg); m.IsValid() {
			return m, nil
		}
		if receiver.CanAddr() {
			if m := receiver.Addr().MethodByName(seg); m.IsValid() {
				return m, nil
			}
		}
	}

	if raw.Kind() == reflect.Struct {
		if f := raw.FieldByName(seg); f.IsValid() && f.Kind() == reflect.Func {
			return f, nil
		}
	}

	return reflect.Value{}, &ResolutionFailure{Listener: seg, Reason: "no such method or field"}
}

func indirectForRead(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

// invokeCallable calls fn with params converted to its parameter
// types, awaiting an AsyncResult channel if that's what fn returns.
// Arity is checked explicitly — too few positional parameters for a
// non-variadic fn would otherwise leave args short and panic inside
// reflect.Value.Call — and the call itself runs behind a recover, so a
// remote peer can never crash the process with one bad request
// (spec.md §4.3 step 4: an invocation failure becomes a rejected
// response, not a process crash).
func invokeCallable(fn reflect.Value, params []any) (any, error) {
	ft := fn.Type()

	minArgs := ft.NumIn()
	if ft.IsVariadic() {
		minArgs--
	}
	if len(params) < minArgs {
		return nil, &ResolutionFailure{Reason: fmt.Sprintf("too few parameters: want at least %d, got %d", minArgs, len(params))}
	}

	args := make([]reflect.Value, 0, len(params))
	for i, p := range params {
		var want reflect.Type
		switch {
		case ft.IsVariadic() && i >= ft.NumIn()-1:
			want = ft.In(ft.NumIn() - 1).Elem()
		case i < ft.NumIn():
			want = ft.In(i)
		default:
			return nil, &ResolutionFailure{Reason: fmt.Sprintf("too many parameters: got %d", len(params))}
		}
		arg, err := convertArg(p, want)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	return callSafely(fn, args)
}

// callSafely invokes fn and recovers any panic from the call itself
// into a *ResolutionFailure, converting it to a rejected response
// instead of letting it propagate up through Replier into the
// transport's read loop, which has no recover of its own and would
// take the whole process down with it.
func callSafely(fn reflect.Value, args []reflect.Value) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &ResolutionFailure{Reason: fmt.Sprintf("panic during invocation: %v", r)}
		}
	}()
	return interpretResults(fn.Call(args))
}

// convertArg coerces a dynamically-typed parameter (as decoded off the
// wire, e.g. float64 for any JSON number) to the callable's declared
// parameter type, failing with a *ResolutionFailure rather than
// passing an unconvertible value through to reflect.Value.Call, which
// would panic on the type mismatch.
func convertArg(p any, want reflect.Type) (reflect.Value, error) {
	if p == nil {
		return reflect.Zero(want), nil
	}
	v := reflect.ValueOf(p)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	if v.Type().ConvertibleTo(want) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, &ResolutionFailure{Reason: fmt.Sprintf("parameter of type %s is not assignable to %s", v.Type(), want)}
}

// interpretResults reads a resolved call's return values: a trailing
// error result, a single AsyncResult channel to await, or a plain
// value.
func interpretResults(results []reflect.Value) (any, error) {
	if len(results) == 0 {
		return nil, nil
	}

	last := results[len(results)-1]
	if last.Type().Implements(errorType) {
		var err error
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		if err != nil {
			return nil, err
		}
		if len(results) == 1 {
			return nil, nil
		}
		return valueFromResult(results[0])
	}

	return valueFromResult(last)
}

// valueFromResult awaits an AsyncResult channel if that's the
// resolved type, otherwise returns the value directly.
func valueFromResult(v reflect.Value) (any, error) {
	if v.Kind() == reflect.Chan && v.Type().Elem() == asyncResultType {
		recv, ok := v.Recv()
		if !ok {
			return nil, ErrDisconnected
		}
		ar := recv.Interface().(AsyncResult)
		return ar.Value, ar.Err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}
