package registry

import (
	"context"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"golang.org/x/time/rate"
)

// newTestEtcdRegistry skips the test when no etcd endpoint is reachable,
// since this exercises the real etcd wire protocol rather than a fake.
func newTestEtcdRegistry(t *testing.T) *EtcdRegistry {
	t.Helper()

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Skipf("etcd client unavailable: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Status(ctx, "localhost:2379"); err != nil {
		t.Skipf("no etcd reachable at localhost:2379: %v", err)
	}

	return &EtcdRegistry{client: c, watchLimiter: rate.NewLimiter(rate.Limit(1), 1)}
}

func TestRegisterAndDiscover(t *testing.T) {
	reg := newTestEtcdRegistry(t)

	peer1 := PeerInfo{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	peer2 := PeerInfo{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	if err := reg.Register("grid-math", peer1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("grid-math", peer2, 10); err != nil {
		t.Fatal(err)
	}

	peers, err := reg.Discover("grid-math")
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 2 {
		t.Fatalf("expect 2 peers, got %d", len(peers))
	}

	if err := reg.Deregister("grid-math", peer1.Addr); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	peers, err = reg.Discover("grid-math")
	if err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 {
		t.Fatalf("expect 1 peer after deregister, got %d", len(peers))
	}
	if peers[0].Addr != peer2.Addr {
		t.Fatalf("expect %s, got %s", peer2.Addr, peers[0].Addr)
	}

	reg.Deregister("grid-math", peer2.Addr)
}

func TestWatchEmitsOnChange(t *testing.T) {
	reg := newTestEtcdRegistry(t)

	updates := reg.Watch("grid-watch")
	defer reg.Deregister("grid-watch", "127.0.0.1:9001")

	if err := reg.Register("grid-watch", PeerInfo{Addr: "127.0.0.1:9001"}, 10); err != nil {
		t.Fatal(err)
	}

	select {
	case peers := <-updates:
		if len(peers) != 1 || peers[0].Addr != "127.0.0.1:9001" {
			t.Fatalf("unexpected watch payload: %+v", peers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never emitted an update")
	}
}
