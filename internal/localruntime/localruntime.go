// Package localruntime implements the LocalRuntime collaborator of spec
// §4.3: the same lifecycle surface as a remote ClusterClient, but for
// agents hosted in this process. The in-cluster agent runtime itself is
// explicitly out of scope (spec §1), so agents here are goroutine-level
// simulations that honor the spawn/exec/kill/list contract without
// shelling out to a real workload.
package localruntime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orbitctl/agentplane/internal/wire"
)

type localAgent struct {
	agent        wire.Agent
	lastActivity time.Time
	cancel       context.CancelFunc
}

// Runtime is the in-process LocalRuntime backend (C3). Agents it produces
// carry the empty cluster-id sentinel of spec §3.
type Runtime struct {
	mu     sync.Mutex
	agents map[string]*localAgent
	cap    int
	logger *slog.Logger
}

// New constructs a Runtime with maxAgents capacity. maxAgents <= 0 means
// unbounded.
func New(maxAgents int, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{agents: make(map[string]*localAgent), cap: maxAgents, logger: logger}
}

// Spawn starts a local agent. Surfaces wire.ErrLocalResourceExhausted when
// the runtime is at capacity, per spec §4.3.
func (r *Runtime) Spawn(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error) {
	r.mu.Lock()
	if r.cap > 0 && len(r.agents) >= r.cap {
		r.mu.Unlock()
		return nil, wire.NewError(wire.ErrLocalResourceExhausted, "local runtime at capacity (%d)", r.cap)
	}
	id := spec.AgentID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.agents[id]; exists {
		r.mu.Unlock()
		return nil, wire.NewError(wire.ErrInvalidSpec, "agent %s already exists locally", id)
	}
	agentCtx, cancel := context.WithCancel(context.Background())
	a := wire.Agent{
		ID:        id,
		ClusterID: "",
		Status:    wire.AgentRunning,
		Model:     spec.Model,
		StartedAt: time.Now(),
		Labels:    spec.Labels,
	}
	la := &localAgent{agent: a, lastActivity: time.Now(), cancel: cancel}
	r.agents[id] = la
	r.mu.Unlock()

	go func() {
		<-agentCtx.Done()
	}()

	r.logger.InfoContext(ctx, "local agent spawned", "agent_id", id, "model", spec.Model)
	out := a
	return &out, nil
}

// Exec runs cmd against a local agent, returning simulated output and a
// zero exit code.
func (r *Runtime) Exec(ctx context.Context, id, cmd string) (string, int32, error) {
	r.mu.Lock()
	la, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return "", 0, wire.NewError(wire.ErrAgentNotFound, "local agent %s not found", id)
	}
	la.lastActivity = time.Now()
	r.mu.Unlock()

	// Deterministic local simulation: echo the command, matching the
	// collaborator contract's "no real sandbox" scope (spec §1 non-goal iii).
	output := fmt.Sprintf("%s\n", strings.TrimSpace(cmd))
	return output, 0, nil
}

// Kill stops a local agent. Idempotent: a not-found id is only an error
// when force is false, per the C1 KillAgent contract this mirrors.
func (r *Runtime) Kill(ctx context.Context, id string, force bool) error {
	r.mu.Lock()
	la, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		if force {
			return nil
		}
		return wire.NewError(wire.ErrAgentNotFound, "local agent %s not found", id)
	}
	delete(r.agents, id)
	r.mu.Unlock()
	la.cancel()
	r.logger.Info("local agent killed", "agent_id", id, "force", force)
	return nil
}

// Status reports a local agent's current lifecycle info.
func (r *Runtime) Status(ctx context.Context, id string) (*wire.AgentStatusInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	la, ok := r.agents[id]
	if !ok {
		return nil, wire.NewError(wire.ErrAgentNotFound, "local agent %s not found", id)
	}
	return &wire.AgentStatusInfo{
		Status:       la.agent.Status,
		StartedAt:    la.agent.StartedAt,
		LastActivity: la.lastActivity,
	}, nil
}

// List returns every locally-hosted agent.
func (r *Runtime) List() []wire.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wire.Agent, 0, len(r.agents))
	for _, la := range r.agents {
		out = append(out, la.agent)
	}
	return out
}

// AvailableCapacity reports how many more agents this runtime will accept,
// used by the balancer's local-viability check (spec §4.4 step 3).
func (r *Runtime) AvailableCapacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cap <= 0 {
		return 1 << 30
	}
	return r.cap - len(r.agents)
}
