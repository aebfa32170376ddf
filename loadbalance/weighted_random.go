package loadbalance

import (
	"fmt"
	"math/rand"

	"mini-rfc/registry"
)

// WeightedRandomBalancer picks a peer with probability proportional to
// its advertised Weight, for heterogeneous peers with different
// capacity.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(peers []registry.PeerInfo) (*registry.PeerInfo, error) {
	if len(peers) == 0 {
		return nil, fmt.Errorf("no peers available")
	}

	totalWeight := 0
	for _, p := range peers {
		totalWeight += p.Weight
	}
	if totalWeight <= 0 {
		return &peers[rand.Intn(len(peers))], nil
	}

	r := rand.Intn(totalWeight)
	for i, p := range peers {
		r -= p.Weight
		if r < 0 {
			return &peers[i], nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
