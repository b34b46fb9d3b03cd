package balancer

import (
	"context"
	"sync"

	"github.com/orbitctl/agentplane/internal/wire"
)

// Backend is the operation surface the LoadBalancer needs from any spawn
// target, whether that is a remote cluster (internal/cluster.Client) or
// the in-process LocalRuntime (internal/localruntime, wrapped by
// localBackend below). Matching method signatures lets both satisfy this
// interface with zero adapter code for the remote case.
type Backend interface {
	SpawnAgent(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error)
	KillAgent(ctx context.Context, agentID string, force bool) error
	GetAgentStatus(ctx context.Context, agentID string) (*wire.AgentStatusInfo, error)
	ExportAgent(ctx context.Context, agentID string, includeState bool) (*wire.AgentSnapshot, error)
	ImportAgent(ctx context.Context, snapshot *wire.AgentSnapshot, targetCluster string) (*wire.Agent, error)
}

// BackendSet is a concurrency-safe clusterID -> Backend directory. The
// balancer resolves the local backend separately (it is always present);
// BackendSet holds only remote cluster backends, populated alongside
// registry.Registry.Register by whichever component dials the cluster
// (cmd/controlplane, or a test harness).
type BackendSet struct {
	mu       sync.Mutex
	backends map[string]Backend
}

// NewBackendSet constructs an empty set.
func NewBackendSet() *BackendSet {
	return &BackendSet{backends: make(map[string]Backend)}
}

// Put registers or replaces the backend for clusterID.
func (s *BackendSet) Put(clusterID string, b Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[clusterID] = b
}

// Remove drops the backend for clusterID.
func (s *BackendSet) Remove(clusterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backends, clusterID)
}

// Get resolves the backend for clusterID.
func (s *BackendSet) Get(clusterID string) (Backend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[clusterID]
	return b, ok
}
