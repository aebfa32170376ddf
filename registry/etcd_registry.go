// Package registry provides the etcd-based implementation of the Registry
// interface: a grid peer directory.
//
// etcd is a distributed key-value store that provides strong consistency
// (Raft protocol). We use it as a "distributed phonebook" for peers:
//
//	Key:   /mini-rfc/{providerName}/{Addr}
//	Value: JSON-encoded PeerInfo
//
// Registration uses TTL-based leases: if an acceptor crashes, the lease
// expires and its entry is automatically removed — preventing "ghost" peers.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/time/rate"
)

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)

	// watchLimiter bounds how often a broken Watch stream may be
	// reopened, so a persistently unreachable etcd endpoint cannot
	// drive a reconnect storm. This is peer-directory housekeeping,
	// not RFC call-path flow control.
	watchLimiter *rate.Limiter
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c, watchLimiter: rate.NewLimiter(rate.Limit(1), 1)}, nil
}

func peerKey(providerName, addr string) string {
	return "/mini-rfc/" + providerName + "/" + addr
}

func peerPrefix(providerName string) string {
	return "/mini-rfc/" + providerName + "/"
}

// Register adds a peer to etcd with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
//
// Note: leaseID is a local variable, NOT stored on the struct.
// This prevents a data race when multiple acceptors share one EtcdRegistry
// instance (discovered via `go test -race`).
func (r *EtcdRegistry) Register(providerName string, peer PeerInfo, ttl int64) error {
	ctx := context.Background()

	// Create a TTL-based lease — if KeepAlive stops, the entry auto-expires
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(peer)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, peerKey(providerName, peer.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// Start background lease renewal — KeepAlive sends heartbeats to etcd
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a peer from etcd.
// Called during graceful shutdown before closing the acceptor.
func (r *EtcdRegistry) Deregister(providerName string, addr string) error {
	_, err := r.client.Delete(context.Background(), peerKey(providerName, addr))
	return err
}

// Watch monitors a provider prefix in etcd and emits the updated peer
// list whenever changes occur (new registrations, deregistrations,
// lease expirations). It reopens the underlying watch stream if etcd
// drops it, rate limited by watchLimiter so a persistently failing
// endpoint is not hammered with reconnect attempts.
func (r *EtcdRegistry) Watch(providerName string) <-chan []PeerInfo {
	out := make(chan []PeerInfo, 1)
	prefix := peerPrefix(providerName)

	go func() {
		for {
			watchChan := r.client.Watch(context.Background(), prefix, clientv3.WithPrefix())
			for resp := range watchChan {
				if resp.Err() != nil {
					break
				}
				// On any change, re-fetch the full peer list
				// (simpler than parsing individual watch events)
				peers, err := r.Discover(providerName)
				if err != nil {
					continue
				}
				out <- peers
			}

			if err := r.watchLimiter.Wait(context.Background()); err != nil {
				return
			}
		}
	}()

	return out
}

// Discover returns all currently registered peers for a provider name.
// Queries etcd with a key prefix to find all peers under
// /mini-rfc/{providerName}/.
func (r *EtcdRegistry) Discover(providerName string) ([]PeerInfo, error) {
	resp, err := r.client.Get(context.Background(), peerPrefix(providerName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	peers := make([]PeerInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var peer PeerInfo
		if err := json.Unmarshal(kv.Value, &peer); err != nil {
			continue // Skip malformed entries
		}
		peers = append(peers, peer)
	}

	return peers, nil
}
