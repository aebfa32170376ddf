package transport

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"mini-rfc/codec"
	"mini-rfc/loadbalance"
	"mini-rfc/registry"
)

// fakeRegistry is an in-memory registry.Registry for exercising
// DialViaRegistry without a live etcd endpoint.
type fakeRegistry struct {
	mu    sync.Mutex
	peers map[string][]registry.PeerInfo
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{peers: make(map[string][]registry.PeerInfo)}
}

func (r *fakeRegistry) Register(providerName string, peer registry.PeerInfo, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[providerName] = append(r.peers[providerName], peer)
	return nil
}

func (r *fakeRegistry) Deregister(providerName, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.peers[providerName][:0]
	for _, p := range r.peers[providerName] {
		if p.Addr != addr {
			kept = append(kept, p)
		}
	}
	r.peers[providerName] = kept
	return nil
}

func (r *fakeRegistry) Discover(providerName string) ([]registry.PeerInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registry.PeerInfo, len(r.peers[providerName]))
	copy(out, r.peers[providerName])
	return out, nil
}

func (r *fakeRegistry) Watch(providerName string) <-chan []registry.PeerInfo {
	ch := make(chan []registry.PeerInfo)
	return ch
}

func TestDialViaRegistryPicksAnAdvertisedPeer(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0", codec.CodecTypeBinary, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	ln.onConnect = func(a *Acceptor) {
		a.Accept(map[string]any{"ping": func() string { return "pong" }})
	}
	go ln.Serve()

	reg := newFakeRegistry()
	reg.Register("grid-math", registry.PeerInfo{Addr: ln.Addr().String(), Weight: 1}, 10)

	client, err := DialViaRegistry("tcp", codec.CodecTypeBinary, nil, reg, "grid-math", &loadbalance.RoundRobinBalancer{})
	if err != nil {
		t.Fatalf("DialViaRegistry failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(time.Second)
	for client.State().String() != "OPEN" {
		if time.Now().After(deadline) {
			t.Fatalf("client never reached OPEN, stuck at %s", client.State())
		}
		time.Sleep(time.Millisecond)
	}

	value, err := client.Invoke("ping")
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if value != "pong" {
		t.Fatalf("expect pong, got %v", value)
	}
}

func TestDialViaRegistryNoPeersErrors(t *testing.T) {
	reg := newFakeRegistry()
	_, err := DialViaRegistry("tcp", codec.CodecTypeBinary, nil, reg, "grid-math", &loadbalance.RoundRobinBalancer{})
	if err == nil {
		t.Fatal("expect an error when no peers are registered")
	}
}

func TestDialWithRetrySucceedsOnceListenerIsUp(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0", codec.CodecTypeJSON, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	ln.onConnect = func(a *Acceptor) {
		a.Accept(nil)
	}

	addr := ln.Addr().String()
	ln.Close() // not serving yet — the first dial attempt must fail

	go func() {
		time.Sleep(20 * time.Millisecond)
		ln2, err := Listen("tcp", addr, codec.CodecTypeJSON, nil)
		if err != nil {
			return
		}
		ln2.onConnect = func(a *Acceptor) { a.Accept(nil) }
		go ln2.Serve()
	}()

	client, err := DialWithRetry("tcp", addr, codec.CodecTypeJSON, nil, 5, 10*time.Millisecond, 0, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("DialWithRetry never succeeded: %v", err)
	}
	client.Close()
}

// Rate limiting each retry attempt must not be mistaken for the
// non-retryable-error fast path: with a per-attempt limiter installed
// (burst 5, refilling at 1000/s), the retry loop still reaches the
// eventual successful attempt once the listener comes up.
func TestDialWithRetryAppliesRateLimitPerAttempt(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0", codec.CodecTypeJSON, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	ln.onConnect = func(a *Acceptor) {
		a.Accept(nil)
	}

	addr := ln.Addr().String()
	ln.Close() // not serving yet — the first dial attempt must fail

	go func() {
		time.Sleep(20 * time.Millisecond)
		ln2, err := Listen("tcp", addr, codec.CodecTypeJSON, nil)
		if err != nil {
			return
		}
		ln2.onConnect = func(a *Acceptor) { a.Accept(nil) }
		go ln2.Serve()
	}()

	client, err := DialWithRetry("tcp", addr, codec.CodecTypeJSON, nil, 10, 5*time.Millisecond, 1000, 5, zap.NewNop())
	if err != nil {
		t.Fatalf("DialWithRetry never succeeded: %v", err)
	}
	client.Close()
}

func TestDialWithRetryStopsOnNonRetryableError(t *testing.T) {
	start := time.Now()
	_, err := DialWithRetry("bogus-network", "127.0.0.1:0", codec.CodecTypeJSON, nil, 5, 200*time.Millisecond, 0, 0, zap.NewNop())
	if err == nil {
		t.Fatal("expect a dial error for an unsupported network")
	}
	// An unsupported-network error is not retryable, so it must fail
	// immediately rather than after 5 rounds of 200ms backoff.
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("expect immediate failure on a non-retryable error, took %s", elapsed)
	}
}
