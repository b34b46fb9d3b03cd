// Package proxy implements the TransparentProxy component (C5, spec §4.5):
// the stable per-agent surface exposed to callers, routing every
// per-agent operation to the cluster that currently owns the agent and
// merging cluster-wide listings with a parallel fan-out.
package proxy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orbitctl/agentplane/internal/balancer"
	"github.com/orbitctl/agentplane/internal/cluster"
	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/registry"
	"github.com/orbitctl/agentplane/internal/wire"
	"golang.org/x/sync/errgroup"
)

// ClusterBackend is the full operation surface a remote cluster exposes to
// the proxy: everything balancer.Backend needs, plus listing and streaming
// exec, which only C1 (not the balancer) requires.
type ClusterBackend interface {
	balancer.Backend
	ListAgents(ctx context.Context, statusFilter wire.AgentStatus, labelSelector map[string]string) ([]*wire.Agent, error)
	ExecuteCommandStream(ctx context.Context, agentID, cmd string, env map[string]string, timeout time.Duration, handler cluster.ChunkHandler) error
}

// ClusterBackendSet is a concurrency-safe clusterID -> ClusterBackend
// directory, mirroring balancer.BackendSet.
type ClusterBackendSet struct {
	mu       sync.Mutex
	backends map[string]ClusterBackend
}

func NewClusterBackendSet() *ClusterBackendSet {
	return &ClusterBackendSet{backends: make(map[string]ClusterBackend)}
}

func (s *ClusterBackendSet) Put(clusterID string, b ClusterBackend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[clusterID] = b
}

func (s *ClusterBackendSet) Remove(clusterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backends, clusterID)
}

func (s *ClusterBackendSet) Get(clusterID string) (ClusterBackend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[clusterID]
	return b, ok
}

// ListWarning records one cluster's failed ListAgents call during a
// merged list(), per spec §4.5: per-cluster failures are warnings, not
// call failures.
type ListWarning struct {
	ClusterID string
	Err       error
}

// ListResult is the output of a merged list() call.
type ListResult struct {
	Agents   []*wire.Agent
	Warnings []ListWarning
}

// Proxy is the C5 TransparentProxy: a routing map plus delegation to the
// balancer and direct local/remote backend access for exec/list.
type Proxy struct {
	lb       *balancer.LoadBalancer
	registry *registry.Registry
	backends *ClusterBackendSet
	local    *localruntime.Runtime
	logger   *slog.Logger
	bus      *events.Bus

	routeMu sync.RWMutex
	routes  map[string]string
}

// New constructs a Proxy in front of lb, reg, local, and the remote
// backends in backends.
func New(lb *balancer.LoadBalancer, reg *registry.Registry, local *localruntime.Runtime, backends *ClusterBackendSet, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Proxy{
		lb:       lb,
		registry: reg,
		backends: backends,
		local:    local,
		logger:   logger,
		bus:      events.NewBus(),
		routes:   make(map[string]string),
	}
	// Re-emit balancer events at the proxy boundary unmodified, per spec §4.5.
	lb.Subscribe(func(evt events.Event) {
		p.bus.Publish(evt)
	})
	return p
}

// Subscribe registers handler for every event re-emitted or produced by
// the proxy.
func (p *Proxy) Subscribe(h events.Handler) (cancel func()) {
	return p.bus.Subscribe(h)
}

func (p *Proxy) route(agentID string) (string, bool) {
	p.routeMu.RLock()
	defer p.routeMu.RUnlock()
	id, ok := p.routes[agentID]
	return id, ok
}

func (p *Proxy) setRoute(agentID, clusterID string) {
	p.routeMu.Lock()
	p.routes[agentID] = clusterID
	p.routeMu.Unlock()
}

// resolve finds the clusterID owning agentID: the proxy's own routing map
// first, falling back to the balancer's directory, per spec §4.5.
func (p *Proxy) resolve(agentID string) (string, bool) {
	if id, ok := p.route(agentID); ok {
		return id, true
	}
	return p.lb.RouteOf(agentID)
}

// Spawn delegates to the balancer and records the resulting route, per
// spec §4.5.
func (p *Proxy) Spawn(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error) {
	agent, err := p.lb.Spawn(ctx, spec)
	if err != nil {
		return nil, err
	}
	p.setRoute(agent.ID, agent.ClusterID)
	p.bus.Publish(events.New("agent:spawned", map[string]string{
		"agentId": agent.ID, "clusterId": agent.ClusterID,
	}))
	return agent, nil
}

// Kill routes a kill to the owning cluster (or local), per spec §4.5.
func (p *Proxy) Kill(ctx context.Context, agentID string, force bool) error {
	clusterID, ok := p.resolve(agentID)
	if !ok {
		return wire.NewError(wire.ErrAgentNotFound, "agent %s not found", agentID)
	}
	var err error
	if clusterID == "" {
		err = p.local.Kill(ctx, agentID, force)
	} else {
		cb, ok := p.backends.Get(clusterID)
		if !ok {
			return wire.NewError(wire.ErrAgentNotFound, "cluster %s for agent %s not found", clusterID, agentID)
		}
		err = cb.KillAgent(ctx, agentID, force)
	}
	if err != nil {
		return err
	}
	p.bus.Publish(events.New("agent:killed", map[string]string{"agentId": agentID}))
	return nil
}

// Status routes a status query to the owning cluster (or local). An agent
// with a migration in flight reports AgentMigrating regardless of what its
// current backend says, per spec §4.4 step (a).
func (p *Proxy) Status(ctx context.Context, agentID string) (*wire.AgentStatusInfo, error) {
	clusterID, ok := p.resolve(agentID)
	if !ok {
		return nil, wire.NewError(wire.ErrAgentNotFound, "agent %s not found", agentID)
	}
	var info *wire.AgentStatusInfo
	var err error
	if clusterID == "" {
		info, err = p.local.Status(ctx, agentID)
	} else {
		cb, ok := p.backends.Get(clusterID)
		if !ok {
			return nil, wire.NewError(wire.ErrAgentNotFound, "cluster %s for agent %s not found", clusterID, agentID)
		}
		info, err = cb.GetAgentStatus(ctx, agentID)
	}
	if p.lb.IsMigrating(agentID) {
		if info == nil {
			info = &wire.AgentStatusInfo{}
		}
		info.Status = wire.AgentMigrating
		return info, nil
	}
	return info, err
}

// Exec runs cmd on the agent's owning backend and returns the full output,
// the non-streaming convenience wrapper over ExecStream.
func (p *Proxy) Exec(ctx context.Context, agentID, cmd string, env map[string]string, timeout time.Duration) (string, int32, error) {
	var output string
	var exitCode int32
	err := p.ExecStream(ctx, agentID, cmd, env, timeout, func(chunk wire.CommandChunk) error {
		output += chunk.GetOutput()
		if code, ok := chunk.GetExitCode(); ok {
			exitCode = code
		}
		return nil
	})
	return output, exitCode, err
}

// ExecStream routes a streaming exec to the owning backend. Per spec §4.5,
// the proxy invokes handler at least once even against a non-streaming
// backend (the local runtime), with the full output in a single chunk
// carrying the terminal exit code.
func (p *Proxy) ExecStream(ctx context.Context, agentID, cmd string, env map[string]string, timeout time.Duration, handler cluster.ChunkHandler) error {
	clusterID, ok := p.resolve(agentID)
	if !ok {
		return wire.NewError(wire.ErrAgentNotFound, "agent %s not found", agentID)
	}
	if clusterID == "" {
		output, exitCode, err := p.local.Exec(ctx, agentID, cmd)
		if err != nil {
			return err
		}
		code := exitCode
		return handler(wire.CommandChunk{Output: output, ExitCode: &code})
	}
	cb, ok := p.backends.Get(clusterID)
	if !ok {
		return wire.NewError(wire.ErrAgentNotFound, "cluster %s for agent %s not found", clusterID, agentID)
	}
	return cb.ExecuteCommandStream(ctx, agentID, cmd, env, timeout, handler)
}

// Migrate wraps the balancer's migration protocol and rewrites the
// proxy's own routing map on success, per spec §4.5.
func (p *Proxy) Migrate(ctx context.Context, agentID, fromCluster, toCluster string) error {
	if err := p.lb.MigrateAgent(ctx, agentID, fromCluster, toCluster); err != nil {
		return err
	}
	p.setRoute(agentID, toCluster)
	return nil
}

// ListFilter narrows a merged list() call.
type ListFilter struct {
	StatusFilter  wire.AgentStatus
	LabelSelector map[string]string
}

// List merges the local listing with ListAgents called on every active
// remote cluster in parallel, per spec §4.5: a failing cluster listing is
// reported as a warning, not a call failure, and every returned agent is
// tagged with its originating cluster.
func (p *Proxy) List(ctx context.Context, filter ListFilter) ListResult {
	var result ListResult
	var mu sync.Mutex

	for _, a := range p.local.List() {
		a.ClusterID = ""
		if filter.StatusFilter != "" && a.Status != filter.StatusFilter {
			continue
		}
		matched := true
		for k, v := range filter.LabelSelector {
			if a.Labels[k] != v {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		result.Agents = append(result.Agents, &a)
	}

	active := p.registry.ByStatus(wire.ClusterActive)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range active {
		c := c
		g.Go(func() error {
			cb, ok := p.backends.Get(c.ID)
			if !ok {
				return nil
			}
			agents, err := cb.ListAgents(gctx, filter.StatusFilter, filter.LabelSelector)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Warnings = append(result.Warnings, ListWarning{ClusterID: c.ID, Err: err})
				return nil
			}
			for _, a := range agents {
				a.ClusterID = c.ID
				result.Agents = append(result.Agents, a)
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}
