package balancer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/registry"
	"github.com/orbitctl/agentplane/internal/wire"
)

func newTestBalancer(maxLocal int) (*LoadBalancer, *localruntime.Runtime) {
	reg := registry.New(registry.DefaultHealthConfig(), nil)
	rt := localruntime.New(maxLocal, nil)
	lb := New(DefaultConfig(), reg, rt, NewBackendSet(), nil)
	return lb, rt
}

// fakeBackend is a deterministic Backend double standing in for a remote
// cluster, letting migration tests force failures at a chosen step without
// a real gRPC-dialed cluster.Client.
type fakeBackend struct {
	mu sync.Mutex

	importErr error
	status    wire.AgentStatus

	killed    []string
	killForce []bool
	imported  []string
}

func (f *fakeBackend) SpawnAgent(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error) {
	return &wire.Agent{ID: spec.AgentID, Status: wire.AgentRunning}, nil
}

func (f *fakeBackend) KillAgent(ctx context.Context, agentID string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, agentID)
	f.killForce = append(f.killForce, force)
	return nil
}

func (f *fakeBackend) GetAgentStatus(ctx context.Context, agentID string) (*wire.AgentStatusInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &wire.AgentStatusInfo{Status: f.status}, nil
}

func (f *fakeBackend) ExportAgent(ctx context.Context, agentID string, includeState bool) (*wire.AgentSnapshot, error) {
	return &wire.AgentSnapshot{AgentID: agentID}, nil
}

func (f *fakeBackend) ImportAgent(ctx context.Context, snapshot *wire.AgentSnapshot, targetCluster string) (*wire.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.importErr != nil {
		return nil, f.importErr
	}
	f.imported = append(f.imported, snapshot.AgentID)
	return &wire.Agent{ID: snapshot.AgentID, ClusterID: targetCluster, Status: f.status}, nil
}

func (f *fakeBackend) killedWith(agentID string) (force bool, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.killed {
		if id == agentID {
			return f.killForce[i], true
		}
	}
	return false, false
}

func newMigrationTestBalancer() (*LoadBalancer, *fakeBackend, *fakeBackend) {
	reg := registry.New(registry.DefaultHealthConfig(), nil)
	rt := localruntime.New(5, nil)
	backends := NewBackendSet()
	source := &fakeBackend{status: wire.AgentRunning}
	target := &fakeBackend{status: wire.AgentRunning}
	backends.Put("source", source)
	backends.Put("target", target)
	lb := New(DefaultConfig(), reg, rt, backends, nil)
	return lb, source, target
}

func TestSpawnFallsBackToLocalWhenNoRemoteClusters(t *testing.T) {
	lb, _ := newTestBalancer(5)
	agent, err := lb.Spawn(context.Background(), wire.AgentSpec{Model: "gpt"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	clusterID, ok := lb.RouteOf(agent.ID)
	if !ok || clusterID != "" {
		t.Fatalf("expected agent routed to local (empty clusterId), got %q", clusterID)
	}
}

func TestSpawnReturnsNoCapacityWhenLocalExhausted(t *testing.T) {
	lb, _ := newTestBalancer(1)
	if _, err := lb.Spawn(context.Background(), wire.AgentSpec{Model: "gpt"}); err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	_, err := lb.Spawn(context.Background(), wire.AgentSpec{Model: "gpt"})
	if err == nil {
		t.Fatal("expected second Spawn to fail once local capacity is exhausted")
	}
	if wire.KindOf(err) != wire.ErrNoCapacity {
		t.Fatalf("expected ErrNoCapacity, got %v", err)
	}
}

func TestRouteOfUnknownAgentIsFalse(t *testing.T) {
	lb, _ := newTestBalancer(5)
	if _, ok := lb.RouteOf("never-spawned"); ok {
		t.Fatal("expected RouteOf to report false for an unknown agent")
	}
}

func TestMigrateAgentHappyPath(t *testing.T) {
	lb, _, target := newMigrationTestBalancer()
	lb.setRoute("agent-1", "source")

	if err := lb.MigrateAgent(context.Background(), "agent-1", "source", "target"); err != nil {
		t.Fatalf("MigrateAgent: %v", err)
	}

	clusterID, ok := lb.RouteOf("agent-1")
	if !ok || clusterID != "target" {
		t.Fatalf("expected agent-1 routed to target after migration, got %q (ok=%v)", clusterID, ok)
	}
	if lb.IsMigrating("agent-1") {
		t.Fatal("expected IsMigrating to clear once the migration completes")
	}
	if len(target.imported) != 1 || target.imported[0] != "agent-1" {
		t.Fatalf("expected target to have imported agent-1, got %v", target.imported)
	}
}

func TestMigrateAgentRollsBackOnImportFailure(t *testing.T) {
	lb, _, target := newMigrationTestBalancer()
	target.importErr = wire.NewError(wire.ErrClusterError, "target unreachable")
	lb.setRoute("agent-1", "source")

	err := lb.MigrateAgent(context.Background(), "agent-1", "source", "target")
	if err == nil {
		t.Fatal("expected MigrateAgent to fail when target import fails")
	}

	force, ok := target.killedWith("agent-1")
	if !ok {
		t.Fatal("expected the partial import on the target to be killed after an import failure")
	}
	if !force {
		t.Fatal("expected the rollback kill to be forced")
	}
	clusterID, routed := lb.RouteOf("agent-1")
	if !routed || clusterID != "source" {
		t.Fatalf("expected agent-1 to remain routed to source after a failed migration, got %q (ok=%v)", clusterID, routed)
	}
	if lb.IsMigrating("agent-1") {
		t.Fatal("expected IsMigrating to clear once the migration fails")
	}
}

func TestMigrateAgentRollsBackOnVerifyFailure(t *testing.T) {
	lb, _, target := newMigrationTestBalancer()
	target.status = wire.AgentPending // never reaches AgentRunning, so verify times out
	lb.cfg.VerifyTimeout = 100 * time.Millisecond
	lb.setRoute("agent-1", "source")

	err := lb.MigrateAgent(context.Background(), "agent-1", "source", "target")
	if err == nil {
		t.Fatal("expected MigrateAgent to fail when the target never reports running")
	}

	force, ok := target.killedWith("agent-1")
	if !ok {
		t.Fatal("expected the unverified target agent to be killed on rollback")
	}
	if !force {
		t.Fatal("expected the rollback kill to be forced")
	}
}

func TestMigrateAgentRejectsConcurrentMigrationOfSameAgent(t *testing.T) {
	lb, _, target := newMigrationTestBalancer()
	target.status = wire.AgentPending
	lb.setRoute("agent-1", "source")

	done := make(chan error, 1)
	go func() {
		done <- lb.MigrateAgent(context.Background(), "agent-1", "source", "target")
	}()

	// Give the goroutine a chance to mark the migration in flight before we
	// race a second MigrateAgent call for the same agent.
	for i := 0; i < 100 && !lb.IsMigrating("agent-1"); i++ {
		<-time.After(time.Millisecond)
	}

	err := lb.MigrateAgent(context.Background(), "agent-1", "source", "target")
	if wire.KindOf(err) != wire.ErrMigrationInProgress {
		t.Fatalf("expected ErrMigrationInProgress for a concurrent migration of the same agent, got %v", err)
	}

	target.status = wire.AgentRunning
	<-done
}
