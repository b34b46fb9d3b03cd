package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/localruntime"
	"github.com/orbitctl/agentplane/internal/wire"
)

// federationServer implements wire.ClusterFederationServer (§6) over a
// single in-process LocalRuntime, the cluster-side daemon counterpart to
// internal/cluster.Client. It mirrors the shape of the teacher's
// observableEventBusServer in broker/main_observability.go: one struct per
// process, wired directly to the wire-level request/response types instead
// of an abstraction layer.
type federationServer struct {
	wire.UnimplementedClusterFederationServer

	clusterID string
	runtime   *localruntime.Runtime
	caps      wire.Capabilities
	bus       *events.Bus
	logger    *slog.Logger
}

func newFederationServer(clusterID string, rt *localruntime.Runtime, caps wire.Capabilities, logger *slog.Logger) *federationServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &federationServer{
		clusterID: clusterID,
		runtime:   rt,
		caps:      caps,
		bus:       events.NewBus(),
		logger:    logger,
	}
}

func asWireError(err error) *wire.Error {
	if werr, ok := err.(*wire.Error); ok {
		return werr
	}
	return wire.NewError(wire.ErrClusterError, "%v", err)
}

func (s *federationServer) SpawnAgent(ctx context.Context, req *wire.SpawnAgentRequest) (*wire.SpawnAgentResponse, error) {
	spec := req.GetSpec()
	if spec == nil || spec.Model == "" {
		return &wire.SpawnAgentResponse{Error: wire.NewError(wire.ErrInvalidSpec, "model is required")}, nil
	}
	agent, err := s.runtime.Spawn(ctx, *spec)
	if err != nil {
		return &wire.SpawnAgentResponse{Error: asWireError(err)}, nil
	}
	s.bus.Publish(events.New("agent:spawned", map[string]string{"agentId": agent.ID}))
	s.logger.InfoContext(ctx, "agent spawned", "agent_id", agent.ID, "model", spec.Model)
	return &wire.SpawnAgentResponse{Agent: agent}, nil
}

func (s *federationServer) KillAgent(ctx context.Context, req *wire.KillAgentRequest) (*wire.KillAgentResponse, error) {
	if err := s.runtime.Kill(ctx, req.GetAgentId(), req.Force); err != nil {
		return &wire.KillAgentResponse{Error: asWireError(err)}, nil
	}
	s.bus.Publish(events.New("agent:killed", map[string]string{"agentId": req.GetAgentId()}))
	return &wire.KillAgentResponse{Success: true}, nil
}

// ExecuteCommand runs the command synchronously against the local runtime
// and streams at most two chunks: the output (if any) and a terminal chunk
// carrying the exit code, per §4.1's "missing terminal chunk is failure"
// contract.
func (s *federationServer) ExecuteCommand(req *wire.ExecuteCommandRequest, stream wire.ClusterFederation_ExecuteCommandServer) error {
	ctx := stream.Context()
	output, exitCode, err := s.runtime.Exec(ctx, req.GetAgentId(), req.Command)
	if err != nil {
		return err
	}
	if output != "" {
		if err := stream.Send(&wire.CommandChunk{Output: output}); err != nil {
			return err
		}
	}
	code := exitCode
	return stream.Send(&wire.CommandChunk{ExitCode: &code})
}

func (s *federationServer) GetAgentStatus(ctx context.Context, req *wire.GetAgentStatusRequest) (*wire.GetAgentStatusResponse, error) {
	info, err := s.runtime.Status(ctx, req.GetAgentId())
	if err != nil {
		return &wire.GetAgentStatusResponse{Error: asWireError(err)}, nil
	}
	return &wire.GetAgentStatusResponse{Info: info}, nil
}

func matchesLabels(have, want map[string]string) bool {
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}

func (s *federationServer) ListAgents(ctx context.Context, req *wire.ListAgentsRequest) (*wire.ListAgentsResponse, error) {
	all := s.runtime.List()
	out := make([]*wire.Agent, 0, len(all))
	for i := range all {
		a := all[i]
		if req.StatusFilter != "" && a.Status != req.StatusFilter {
			continue
		}
		if !matchesLabels(a.Labels, req.LabelSelector) {
			continue
		}
		out = append(out, &a)
	}
	return &wire.ListAgentsResponse{Agents: out}, nil
}

func (s *federationServer) Heartbeat(ctx context.Context, req *wire.HeartbeatRequest) (*wire.HeartbeatResponse, error) {
	caps := s.caps
	caps.AvailableAgents = s.runtime.AvailableCapacity()
	if caps.MaxAgents > 0 && caps.AvailableAgents < caps.MaxAgents {
		caps.ActiveAgents = caps.MaxAgents - caps.AvailableAgents
	}
	return &wire.HeartbeatResponse{Capabilities: &caps}, nil
}

// StreamEvents relays this daemon's internal event bus to the caller,
// honoring the optional agent-id filter of the first subscription message,
// per §6. Events from this source are delivered in publish order, per §5.
func (s *federationServer) StreamEvents(stream wire.ClusterFederation_StreamEventsServer) error {
	first, err := stream.Recv()
	if err != nil {
		return err
	}
	sub := first.Subscription
	ctx := stream.Context()
	sendErr := make(chan error, 1)

	cancel := s.bus.Subscribe(func(evt events.Event) {
		if sub != nil && sub.AgentFilter != "" {
			if id, _ := evt.Attr("agentId"); id != sub.AgentFilter {
				return
			}
		}
		fe := &wire.FederationEvent{
			Type:          evt.Type,
			Timestamp:     evt.Timestamp,
			ClusterID:     s.clusterID,
			SourceCluster: s.clusterID,
			Payload:       evt.Attrs,
		}
		if id, ok := evt.Attr("agentId"); ok {
			fe.AgentID = id
		}
		if err := stream.Send(&wire.StreamEventsMessage{Event: fe}); err != nil {
			select {
			case sendErr <- err:
			default:
			}
		}
	})
	defer cancel()

	select {
	case <-ctx.Done():
		return nil
	case err := <-sendErr:
		return err
	}
}

func (s *federationServer) ExportAgent(ctx context.Context, req *wire.ExportAgentRequest) (*wire.ExportAgentResponse, error) {
	info, err := s.runtime.Status(ctx, req.GetAgentId())
	if err != nil {
		return &wire.ExportAgentResponse{Error: asWireError(err)}, nil
	}
	var data []byte
	if req.IncludeState {
		data = []byte("{}")
	}
	return &wire.ExportAgentResponse{
		Success: true,
		Snapshot: &wire.AgentSnapshot{
			AgentID:         req.GetAgentId(),
			StateData:       data,
			CreatedAt:       time.Now(),
			SourceClusterID: s.clusterID,
			Metadata:        map[string]string{"status": string(info.Status)},
		},
	}, nil
}

func (s *federationServer) ImportAgent(ctx context.Context, req *wire.ImportAgentRequest) (*wire.ImportAgentResponse, error) {
	snap := req.GetSnapshot()
	if snap == nil {
		return &wire.ImportAgentResponse{Error: wire.NewError(wire.ErrInvalidSpec, "snapshot is required")}, nil
	}
	if _, err := s.runtime.Status(ctx, snap.AgentID); err == nil {
		return &wire.ImportAgentResponse{Error: wire.NewError(wire.ErrAgentAlreadyExists, "agent %s already present on cluster %s", snap.AgentID, s.clusterID)}, nil
	}
	agent, err := s.runtime.Spawn(ctx, wire.AgentSpec{AgentID: snap.AgentID})
	if err != nil {
		return &wire.ImportAgentResponse{Error: asWireError(err)}, nil
	}
	s.bus.Publish(events.New("agent:spawned", map[string]string{"agentId": agent.ID}))
	return &wire.ImportAgentResponse{Agent: agent}, nil
}
