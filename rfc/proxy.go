package rfc

import "strings"

// Driver synthesizes the remote-surface proxy from spec.md §4.2: a
// lazy builder whose accumulated dotted path is only ever resolved
// into a call when Call is invoked. Go has no intercepted member
// access, so the "dotted-access produces a deeper path proxy" rule is
// expressed as the explicit Path method instead of implicit property
// lookup — spec.md §9 design note option (a).
type Driver struct {
	comm *Communicator
}

// GetDriver returns a proxy driver for the communicator's peer. T
// names the interface the caller asserts the remote side implements;
// the assertion is purely structural, exactly as spec.md §4.1
// prescribes — Go performs no runtime check against T, it exists only
// to document intent at the call site.
func GetDriver[T any](c *Communicator) *Driver {
	return &Driver{comm: c}
}

// Path produces a callable proxy for the named segment, exactly as
// accessing member m on the driver produces a callable proxy
// representing path m (spec.md §4.2).
func (d *Driver) Path(name string) *PathProxy {
	return &PathProxy{comm: d.comm, segments: []string{name}}
}

// PathProxy accumulates dotted path segments without performing any
// I/O — the set of remote endpoints is never enumerated (spec.md §4.2
// "the driver is lazy").
type PathProxy struct {
	comm     *Communicator
	segments []string
}

// Path extends the accumulated path, matching "accessing a member n on
// a path-proxy for p produces a callable proxy for p.n."
func (p *PathProxy) Path(name string) *PathProxy {
	extended := make([]string, len(p.segments), len(p.segments)+1)
	copy(extended, p.segments)
	return &PathProxy{comm: p.comm, segments: append(extended, name)}
}

// Call invokes the accumulated path with positional arguments, the Go
// analogue of "invoking a path-proxy for p with positional arguments
// a1, a2, … calls invoke(p, [a1, …]) on the base."
func (p *PathProxy) Call(args ...any) (any, error) {
	return p.comm.Invoke(strings.Join(p.segments, "."), args...)
}

// Bind returns a closure over the accumulated path, a compatibility
// shim matching the "bind" pseudo-member of spec.md §4.2 that rebinds
// a callable proxy's receiver.
func (p *PathProxy) Bind() func(args ...any) (any, error) {
	path := p.segments
	comm := p.comm
	return func(args ...any) (any, error) {
		return comm.Invoke(strings.Join(path, "."), args...)
	}
}
