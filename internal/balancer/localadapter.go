package balancer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/wire"
)

// localBackend adapts localruntime.Runtime (C3's 4-method contract) to the
// Backend interface so the balancer can treat "local" as just another
// candidate, per spec §4.3's framing.
type localBackend struct {
	rt *localruntime.Runtime
}

func newLocalBackend(rt *localruntime.Runtime) Backend {
	return &localBackend{rt: rt}
}

func (l *localBackend) SpawnAgent(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error) {
	return l.rt.Spawn(ctx, spec)
}

func (l *localBackend) KillAgent(ctx context.Context, agentID string, force bool) error {
	return l.rt.Kill(ctx, agentID, force)
}

func (l *localBackend) GetAgentStatus(ctx context.Context, agentID string) (*wire.AgentStatusInfo, error) {
	return l.rt.Status(ctx, agentID)
}

// localSnapshotState is the only state a goroutine-simulated local agent
// has: enough to recreate it on import, since the in-cluster runtime
// itself is out of scope per spec §1.
type localSnapshotState struct {
	Model  string            `json:"model"`
	Labels map[string]string `json:"labels"`
}

func (l *localBackend) ExportAgent(ctx context.Context, agentID string, includeState bool) (*wire.AgentSnapshot, error) {
	status, err := l.rt.Status(ctx, agentID)
	if err != nil {
		return nil, err
	}
	var data []byte
	if includeState {
		data, err = json.Marshal(localSnapshotState{})
		if err != nil {
			return nil, wire.Wrap(wire.ErrClusterError, err, "marshaling local snapshot for %s", agentID)
		}
	}
	return &wire.AgentSnapshot{
		AgentID:         agentID,
		StateData:       data,
		CreatedAt:       time.Now(),
		SourceClusterID: "",
		Metadata:        map[string]string{"status": string(status.Status)},
	}, nil
}

func (l *localBackend) ImportAgent(ctx context.Context, snapshot *wire.AgentSnapshot, targetCluster string) (*wire.Agent, error) {
	var state localSnapshotState
	if len(snapshot.StateData) > 0 {
		if err := json.Unmarshal(snapshot.StateData, &state); err != nil {
			return nil, wire.Wrap(wire.ErrInvalidSpec, err, "unmarshaling local snapshot for %s", snapshot.AgentID)
		}
	}
	if _, err := l.rt.Status(ctx, snapshot.AgentID); err == nil {
		return nil, wire.NewError(wire.ErrAgentAlreadyExists, "agent %s already present on local runtime", snapshot.AgentID)
	}
	return l.rt.Spawn(ctx, wire.AgentSpec{
		AgentID: snapshot.AgentID,
		Model:   state.Model,
		Labels:  state.Labels,
	})
}
