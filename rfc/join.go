package rfc

import (
	"sync"
	"time"
)

// joinCondition is the condition variable from spec.md §3/§9: a
// one-shot event (not a counting sync.Cond) so that timed waits can be
// expressed with select against a timer, which sync.Cond cannot do.
// All waiters are released atomically when release is called, however
// many times release itself is called (idempotent, via sync.Once).
type joinCondition struct {
	once sync.Once
	done chan struct{}
}

func newJoinCondition() *joinCondition {
	return &joinCondition{done: make(chan struct{})}
}

// release wakes every current and future waiter. Safe to call more
// than once; only the first call has an effect.
func (j *joinCondition) release() {
	j.once.Do(func() { close(j.done) })
}

// wait blocks until release is called, with no timeout.
func (j *joinCondition) wait() {
	<-j.done
}

// waitTimeout blocks until release is called or d elapses, whichever
// comes first. Returns true if released, false on timeout.
func (j *joinCondition) waitTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-j.done:
		return true
	case <-timer.C:
		return false
	}
}

// waitDeadline blocks until release is called or the absolute deadline
// passes. The deadline is converted to a duration once, at call time,
// as spec.md §9 prescribes.
func (j *joinCondition) waitDeadline(deadline time.Time) bool {
	return j.waitTimeout(time.Until(deadline))
}
