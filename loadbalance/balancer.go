// Package loadbalance provides peer-selection strategies a Connector uses
// to pick which discovered grid peer to dial.
//
// Three strategies are implemented:
//   - RoundRobin:      stateless providers, equal-capacity peers
//   - WeightedRandom:  heterogeneous peers (different CPU/memory)
//   - ConsistentHash:  stateful providers requiring cache affinity
package loadbalance

import "mini-rfc/registry"

// Balancer is the interface for peer-selection strategies. A Connector
// calls Pick() before dialing to select a target peer from the set
// registry.Discover returned.
type Balancer interface {
	// Pick selects one peer from the available list.
	// Called on every dial — must be goroutine-safe.
	Pick(peers []registry.PeerInfo) (*registry.PeerInfo, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
