package transport

import (
	"testing"
	"time"

	"golang.org/x/time/rate"

	"mini-rfc/codec"
	"mini-rfc/rfc"
)

// The heartbeat loop must not interfere with ordinary data frames on
// the same connection — a peer receiving a heartbeat in its read loop
// just continues, per transport.go's KindHeartbeat case.
func TestHeartbeatDoesNotDisruptInvocations(t *testing.T) {
	ln, err := Listen("tcp", "127.0.0.1:0", codec.CodecTypeBinary, nil)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	ln.onConnect = func(a *Acceptor) {
		a.Accept(map[string]any{"ping": func() string { return "pong" }})
	}
	go ln.Serve()

	client, err := Dial("tcp", ln.Addr().String(), codec.CodecTypeBinary, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	client.StartHeartbeat(5*time.Millisecond, rate.NewLimiter(rate.Every(time.Millisecond), 1))

	deadline := time.Now().Add(time.Second)
	for client.State() != rfc.StateOpen {
		if time.Now().After(deadline) {
			t.Fatalf("client communicator never reached OPEN, stuck at %s", client.State())
		}
		time.Sleep(time.Millisecond)
	}

	time.Sleep(30 * time.Millisecond) // let several heartbeats fire

	value, err := client.Invoke("ping")
	if err != nil {
		t.Fatalf("Invoke after heartbeats failed: %v", err)
	}
	if value != "pong" {
		t.Fatalf("expect pong, got %v", value)
	}

	client.Close()
}
