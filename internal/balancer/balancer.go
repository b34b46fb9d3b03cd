// Package balancer implements the LoadBalancer component (C4, spec §4.4):
// spawn-target selection between local and remote clusters, and the
// six-step migration protocol that moves an agent's state between
// backends while preserving the at-most-one-owner invariant of spec §8.
package balancer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/registry"
	"github.com/orbitctl/agentplane/internal/wire"
)

// emptyClusterID is the routing-table sentinel for "hosted locally".
const emptyClusterID = ""

// Config tunes balancer policy knobs, mirroring internal/config's
// FederationDefaults overlay.
type Config struct {
	LocalFloor              float64
	MaxSpawnAttempts        int
	MaxConcurrentMigrations int
	VerifyTimeout           time.Duration
}

func DefaultConfig() Config {
	return Config{
		LocalFloor:              40,
		MaxSpawnAttempts:        3,
		MaxConcurrentMigrations: 4,
		VerifyTimeout:           5 * time.Second,
	}
}

// LoadBalancer is the C4 component: stateful routing of agentID -> backend
// clusterID (empty string = local), plus the migration protocol.
type LoadBalancer struct {
	cfg      Config
	registry *registry.Registry
	local    Backend
	backends *BackendSet
	logger   *slog.Logger
	bus      *events.Bus

	routeMu sync.RWMutex
	routes  map[string]string // agentId -> clusterId ("" = local)

	migMu      sync.Mutex
	inFlight   map[string]bool // agentId -> migration in progress
	migSlots   chan struct{}
}

// New constructs a LoadBalancer bound to reg (for candidate selection) and
// local (the LocalRuntime backend). backends resolves remote cluster
// backends by id.
func New(cfg Config, reg *registry.Registry, local *localruntime.Runtime, backends *BackendSet, logger *slog.Logger) *LoadBalancer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentMigrations <= 0 {
		cfg.MaxConcurrentMigrations = DefaultConfig().MaxConcurrentMigrations
	}
	return &LoadBalancer{
		cfg:      cfg,
		registry: reg,
		local:    newLocalBackend(local),
		backends: backends,
		logger:   logger,
		bus:      events.NewBus(),
		routes:   make(map[string]string),
		inFlight: make(map[string]bool),
		migSlots: make(chan struct{}, cfg.MaxConcurrentMigrations),
	}
}

// Subscribe registers handler for every agent:*/migration:* event.
func (b *LoadBalancer) Subscribe(h events.Handler) (cancel func()) {
	return b.bus.Subscribe(h)
}

// RouteOf returns the current owning cluster id for agentID (empty string
// for local), or false if unknown.
func (b *LoadBalancer) RouteOf(agentID string) (string, bool) {
	b.routeMu.RLock()
	defer b.routeMu.RUnlock()
	id, ok := b.routes[agentID]
	return id, ok
}

func (b *LoadBalancer) setRoute(agentID, clusterID string) {
	b.routeMu.Lock()
	b.routes[agentID] = clusterID
	b.routeMu.Unlock()
}

// IsMigrating reports whether agentID has a migration in flight, per the
// routing table's "mark migrating" step (a) of spec §4.4. Proxy.Status
// consults this to surface AgentMigrating without the balancer needing to
// rewrite the agent's backend-owned status record.
func (b *LoadBalancer) IsMigrating(agentID string) bool {
	b.migMu.Lock()
	defer b.migMu.Unlock()
	return b.inFlight[agentID]
}

func (b *LoadBalancer) backendFor(clusterID string) (Backend, bool) {
	if clusterID == emptyClusterID {
		return b.local, true
	}
	return b.backends.Get(clusterID)
}

func toCriteria(spec wire.AgentSpec) registry.Criteria {
	priority := registry.Priority(spec.Priority)
	if priority == "" {
		priority = registry.PriorityAvailability
	}
	minAgents := spec.MinAgents
	if minAgents <= 0 {
		minAgents = 1
	}
	return registry.Criteria{
		Priority:    priority,
		MinAgents:   minAgents,
		RequiresGPU: spec.RequiresGPU,
		GPUType:     spec.GPUType,
	}
}

// bestRemoteScore asks the registry for the best remote cluster under crit
// (spec §4.4 step 2) and reports whether one exists. It returns the cluster
// itself, not its score; Spawn derives its local-viability gate from the
// cluster's capabilities.
func (b *LoadBalancer) bestRemoteScore(crit registry.Criteria) (*wire.Cluster, bool) {
	best := b.registry.Select(crit)
	return best, best != nil
}

// Spawn implements the spawn policy of spec §4.4: translate spec to
// Criteria, consult the registry, decide local viability, attempt the
// preferred backend with fallback on CapacityExceeded up to
// MaxSpawnAttempts, record the route, and emit agent:spawned.
func (b *LoadBalancer) Spawn(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error) {
	crit := toCriteria(spec)
	best, hasRemote := b.bestRemoteScore(crit)

	preferLocal := spec.PreferLocal || !hasRemote
	if hasRemote && !preferLocal {
		// localFloor: prefer local when the best remote score is below
		// threshold. Re-score using the registry's own weighting would
		// require exporting score(); instead we use availability ratio as
		// a proxy, which is monotonic with the registry's availability
		// axis and sufficient for this gating decision.
		ratio := 100.0
		if best.Capabilities.MaxAgents > 0 {
			ratio = 100 * float64(best.Capabilities.AvailableAgents) / float64(best.Capabilities.MaxAgents)
		}
		if ratio < b.cfg.LocalFloor {
			preferLocal = true
		}
	}

	type candidate struct {
		clusterID string
		backend   Backend
	}
	var order []candidate
	if preferLocal {
		order = append(order, candidate{emptyClusterID, b.local})
		if hasRemote {
			if be, ok := b.backends.Get(best.ID); ok {
				order = append(order, candidate{best.ID, be})
			}
		}
	} else {
		if hasRemote {
			if be, ok := b.backends.Get(best.ID); ok {
				order = append(order, candidate{best.ID, be})
			}
		}
		order = append(order, candidate{emptyClusterID, b.local})
	}

	maxAttempts := b.cfg.MaxSpawnAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultConfig().MaxSpawnAttempts
	}

	var lastErr error
	attempts := 0
	for _, cand := range order {
		if attempts >= maxAttempts {
			break
		}
		attempts++
		agent, err := cand.backend.SpawnAgent(ctx, spec)
		if err == nil {
			b.setRoute(agent.ID, cand.clusterID)
			b.bus.Publish(events.New("agent:spawned", map[string]string{
				"agentId":   agent.ID,
				"clusterId": cand.clusterID,
			}))
			b.logger.InfoContext(ctx, "agent spawned", "agent_id", agent.ID, "cluster_id", cand.clusterID)
			return agent, nil
		}
		lastErr = err
		kind := wire.KindOf(err)
		if kind != wire.ErrCapacityExceeded && kind != wire.ErrLocalResourceExhausted {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = wire.NewError(wire.ErrNoCapacity, "no spawn candidates available")
	}
	return nil, wire.Wrap(wire.ErrNoCapacity, lastErr, "exhausted %d spawn attempts", attempts)
}

// MigrationStep names one of the six ordered steps of spec §4.4, used to
// annotate migration:failed events.
type MigrationStep string

const (
	StepMark   MigrationStep = "mark"
	StepExport MigrationStep = "export"
	StepImport MigrationStep = "import"
	StepVerify MigrationStep = "verify"
	StepKill   MigrationStep = "kill"
	StepRoute  MigrationStep = "route"
)

// MigrateAgent implements the six-step migration protocol of spec §4.4.
func (b *LoadBalancer) MigrateAgent(ctx context.Context, agentID, fromCluster, toCluster string) error {
	b.migMu.Lock()
	if b.inFlight[agentID] {
		b.migMu.Unlock()
		return wire.NewError(wire.ErrMigrationInProgress, "agent %s already migrating", agentID)
	}
	select {
	case b.migSlots <- struct{}{}:
	default:
		b.migMu.Unlock()
		return wire.NewError(wire.ErrCapacityExceeded, "max concurrent migrations (%d) reached", cap(b.migSlots))
	}
	b.inFlight[agentID] = true
	b.migMu.Unlock()

	defer func() {
		b.migMu.Lock()
		delete(b.inFlight, agentID)
		b.migMu.Unlock()
		<-b.migSlots
	}()

	source, ok := b.backendFor(fromCluster)
	if !ok {
		return wire.NewError(wire.ErrAgentNotFound, "unknown source cluster %s", fromCluster)
	}
	target, ok := b.backendFor(toCluster)
	if !ok {
		return wire.NewError(wire.ErrAgentNotFound, "unknown target cluster %s", toCluster)
	}

	// step (a): mark migrating, writer lock, emit migration:started. The
	// inFlight entry set above (right after this function takes the
	// migration slot) is what IsMigrating/Proxy.Status observe as "migrating";
	// routing itself stays at the source until step (f).
	b.routeMu.Lock()
	b.routes[agentID] = fromCluster
	b.routeMu.Unlock()
	b.bus.Publish(events.New("migration:started", map[string]string{
		"agentId": agentID, "from": fromCluster, "to": toCluster,
	}))

	fail := func(step MigrationStep, cause error) error {
		b.bus.Publish(events.New("migration:failed", map[string]string{
			"agentId": agentID, "from": fromCluster, "to": toCluster, "step": string(step),
		}))
		b.logger.ErrorContext(ctx, "migration failed", "agent_id", agentID, "step", step, "error", cause)
		return wire.Wrap(wire.ErrClusterError, cause, "migration of %s failed at step %s", agentID, step)
	}

	// step (b): export from source.
	snapshot, err := source.ExportAgent(ctx, agentID, true)
	if err != nil {
		return fail(StepExport, err)
	}

	// step (c): import to target. A failed import may still have left
	// partial state on the target (spec §4.4's "any partial import on the
	// target is killed with force"), so clean it up on rollback the same
	// way step (d)'s verify failure does.
	imported, err := target.ImportAgent(ctx, snapshot, toCluster)
	if err != nil {
		_ = target.KillAgent(ctx, snapshot.AgentID, true)
		return fail(StepImport, err)
	}

	// step (d): verify target reports running within the verify timeout.
	verifyCtx, cancel := context.WithTimeout(ctx, b.cfg.VerifyTimeout)
	defer cancel()
	if err := b.verifyRunning(verifyCtx, target, imported.ID); err != nil {
		_ = target.KillAgent(ctx, imported.ID, true)
		return fail(StepVerify, err)
	}

	// step (e): kill on source (not force). Failure does not abort the
	// migration; it emits cleanup:pending instead.
	if err := source.KillAgent(ctx, agentID, false); err != nil {
		b.bus.Publish(events.New("cleanup:pending", map[string]string{
			"agentId": agentID, "cluster": fromCluster,
		}))
		b.logger.WarnContext(ctx, "migration source kill failed, cleanup pending", "agent_id", agentID, "error", err)
	}

	// step (f): update routing, emit migration:completed.
	b.setRoute(agentID, toCluster)
	b.bus.Publish(events.New("migration:completed", map[string]string{
		"agentId": agentID, "from": fromCluster, "to": toCluster,
	}))
	b.logger.InfoContext(ctx, "migration completed", "agent_id", agentID, "from", fromCluster, "to", toCluster)
	return nil
}

func (b *LoadBalancer) verifyRunning(ctx context.Context, target Backend, agentID string) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		info, err := target.GetAgentStatus(ctx, agentID)
		if err == nil && info.Status == wire.AgentRunning {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("target did not reach running status: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// FailoverCluster migrates every agent currently routed to clusterID to a
// destination chosen by registry.Select among active clusters. It does not
// mark clusterID as closed to new traffic: its registry entry and status
// are left unchanged, so while clusterID is still active it remains a
// candidate for both Spawn and the failover destination.
func (b *LoadBalancer) FailoverCluster(ctx context.Context, clusterID string) []error {
	b.routeMu.RLock()
	var owned []string
	for agentID, cid := range b.routes {
		if cid == clusterID {
			owned = append(owned, agentID)
		}
	}
	b.routeMu.RUnlock()

	var errs []error
	for _, agentID := range owned {
		dest := b.registry.Select(registry.Criteria{Priority: registry.PriorityAvailability, MinAgents: 1})
		if dest == nil {
			errs = append(errs, wire.NewError(wire.ErrNoCapacity, "no failover destination for agent %s", agentID))
			continue
		}
		if err := b.MigrateAgent(ctx, agentID, clusterID, dest.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
