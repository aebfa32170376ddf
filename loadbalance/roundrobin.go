package loadbalance

import (
	"fmt"
	"sync/atomic"

	"mini-rfc/registry"
)

// RoundRobinBalancer distributes dials evenly across all peers in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
//
// Best for: stateless providers where all peers have similar capacity.
type RoundRobinBalancer struct {
	counter int64 // Atomic counter, incremented on each Pick()
}

// Pick selects the next peer in round-robin order.
// The atomic counter ensures even distribution without locks.
func (b *RoundRobinBalancer) Pick(peers []registry.PeerInfo) (*registry.PeerInfo, error) {
	if len(peers) == 0 {
		return nil, fmt.Errorf("no peers available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(peers))
	return &peers[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
