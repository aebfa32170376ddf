package registry

// PeerInfo describes one advertised acceptor address registered under
// a provider name. Adapted from the teacher's ServiceInstance (which
// named one RPC server instance behind a service name) to a grid
// peer: Addr is dialable by a Connector, Weight feeds loadbalance's
// weighted strategies, Version is carried for callers that want to
// filter peers by build.
type PeerInfo struct {
	Addr    string
	Weight  int
	Version string
}

// Registry is the peer directory contract: an Acceptor registers its
// advertised address under a provider name so a Connector elsewhere
// can discover and dial it, instead of being given a static address.
type Registry interface {
	Register(providerName string, peer PeerInfo, ttl int64) error
	Deregister(providerName string, addr string) error
	Discover(providerName string) ([]PeerInfo, error)
	Watch(providerName string) <-chan []PeerInfo
}
