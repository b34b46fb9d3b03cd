package cluster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/orbitctl/agentplane/internal/wire"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
)

// Client is a ClusterClient (C1): a typed wrapper around the gRPC channel
// to one remote cluster's ClusterFederation service, matching the teacher's
// AgentHubServer/client wrapper style in internal/agenthub/grpc.go.
type Client struct {
	ClusterID string
	Endpoint  string

	conn   *grpc.ClientConn
	rpc    wire.ClusterFederationClient
	logger *slog.Logger
	retry  RetryPolicy
}

// Dial opens a persistent channel to endpoint and wraps it as a Client for
// clusterID. tlsCertPath/tlsKeyPath, when both non-empty, select transport
// credentials; otherwise the channel is insecure, matching the teacher's
// default for the agenthub broker.
func Dial(clusterID, endpoint, tlsCertPath, tlsKeyPath string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var creds credentials.TransportCredentials
	var err error
	if tlsCertPath != "" && tlsKeyPath != "" {
		creds, err = credentials.NewServerTLSFromFile(tlsCertPath, tlsKeyPath)
		if err != nil {
			return nil, wire.Wrap(wire.ErrInvalidSpec, err, "loading TLS material for cluster %s", clusterID)
		}
	} else {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(creds),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, wire.Wrap(wire.ErrClusterUnavailable, err, "dialing cluster %s at %s", clusterID, endpoint)
	}
	return &Client{
		ClusterID: clusterID,
		Endpoint:  endpoint,
		conn:      conn,
		rpc:       wire.NewClusterFederationClient(conn),
		logger:    logger,
		retry:     DefaultRetryPolicy(),
	}, nil
}

// Close tears down the underlying channel. Idempotent.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// translateStatus maps a gRPC status into the §7 error taxonomy.
func translateStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return wire.Wrap(wire.ErrClusterError, err, "transport error")
	}
	switch st.Code() {
	case codes.Unavailable:
		return wire.Wrap(wire.ErrClusterUnavailable, err, "%s", st.Message())
	case codes.DeadlineExceeded:
		return wire.Wrap(wire.ErrTimeout, err, "%s", st.Message())
	case codes.PermissionDenied, codes.Unauthenticated:
		return wire.Wrap(wire.ErrPermissionDenied, err, "%s", st.Message())
	case codes.ResourceExhausted:
		return wire.Wrap(wire.ErrCapacityExceeded, err, "%s", st.Message())
	case codes.InvalidArgument:
		return wire.Wrap(wire.ErrInvalidSpec, err, "%s", st.Message())
	case codes.NotFound:
		return wire.Wrap(wire.ErrAgentNotFound, err, "%s", st.Message())
	default:
		return wire.Wrap(wire.ErrClusterError, err, "%s", st.Message())
	}
}

// SpawnAgent sends a spawn request, per spec §4.1/§6.
func (c *Client) SpawnAgent(ctx context.Context, spec wire.AgentSpec) (*wire.Agent, error) {
	var resp *wire.SpawnAgentResponse
	err := c.withRetry(ctx, "SpawnAgent", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.SpawnAgent(ctx, &wire.SpawnAgentRequest{Spec: &spec})
		return rpcErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.GetAgent(), nil
}

// KillAgent stops an agent. Idempotent when force is true, per spec §4.1.
func (c *Client) KillAgent(ctx context.Context, agentID string, force bool) error {
	var resp *wire.KillAgentResponse
	err := c.withRetry(ctx, "KillAgent", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.KillAgent(ctx, &wire.KillAgentRequest{AgentID: agentID, Force: force})
		return rpcErr
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// GetAgentStatus reports an agent's lifecycle status.
func (c *Client) GetAgentStatus(ctx context.Context, agentID string) (*wire.AgentStatusInfo, error) {
	var resp *wire.GetAgentStatusResponse
	err := c.withRetry(ctx, "GetAgentStatus", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.GetAgentStatus(ctx, &wire.GetAgentStatusRequest{AgentID: agentID})
		return rpcErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Info, nil
}

// ListAgents lists agents on this cluster matching the given filter.
func (c *Client) ListAgents(ctx context.Context, statusFilter wire.AgentStatus, labelSelector map[string]string) ([]*wire.Agent, error) {
	var resp *wire.ListAgentsResponse
	err := c.withRetry(ctx, "ListAgents", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.ListAgents(ctx, &wire.ListAgentsRequest{StatusFilter: statusFilter, LabelSelector: labelSelector})
		return rpcErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Agents, nil
}

// Heartbeat round-trips a health probe, per spec §4.1: doubles as the
// ClusterRegistry's Prober contract.
func (c *Client) Heartbeat(ctx context.Context) (*wire.Capabilities, error) {
	var resp *wire.HeartbeatResponse
	err := c.withRetry(ctx, "Heartbeat", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.Heartbeat(ctx, &wire.HeartbeatRequest{ClusterID: c.ClusterID, Timestamp: time.Now()})
		return rpcErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Capabilities, nil
}

// ExportAgent exports an agent's state for migration, per spec §4.1/§4.4.
func (c *Client) ExportAgent(ctx context.Context, agentID string, includeState bool) (*wire.AgentSnapshot, error) {
	var resp *wire.ExportAgentResponse
	err := c.withRetry(ctx, "ExportAgent", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.ExportAgent(ctx, &wire.ExportAgentRequest{AgentID: agentID, IncludeState: includeState})
		return rpcErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if !resp.Success {
		return nil, wire.NewError(wire.ErrClusterError, "export of agent %s reported failure", agentID)
	}
	return resp.Snapshot, nil
}

// ImportAgent imports a snapshot on this cluster, per spec §4.1/§4.4.
func (c *Client) ImportAgent(ctx context.Context, snapshot *wire.AgentSnapshot, targetCluster string) (*wire.Agent, error) {
	var resp *wire.ImportAgentResponse
	err := c.withRetry(ctx, "ImportAgent", func(ctx context.Context) error {
		var rpcErr error
		resp, rpcErr = c.rpc.ImportAgent(ctx, &wire.ImportAgentRequest{Snapshot: snapshot, TargetClusterID: targetCluster})
		return rpcErr
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Agent, nil
}

// ChunkHandler receives one ExecuteCommand stream chunk at a time.
type ChunkHandler func(chunk wire.CommandChunk) error

// ExecuteCommandStream runs cmd on agentID and streams output chunks to
// handler, per spec §4.1: the stream ends either with a chunk carrying an
// exit code or with a stream error, which the caller must treat as
// failure if no terminal chunk was seen.
func (c *Client) ExecuteCommandStream(ctx context.Context, agentID, cmd string, env map[string]string, timeout time.Duration, handler ChunkHandler) error {
	req := &wire.ExecuteCommandRequest{
		AgentID:    agentID,
		Command:    cmd,
		Env:        env,
		TimeoutSec: int(timeout.Seconds()),
	}
	stream, err := c.rpc.ExecuteCommand(ctx, req)
	if err != nil {
		return translateStatus(err)
	}
	sawTerminal := false
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return translateStatus(err)
		}
		if _, ok := chunk.GetExitCode(); ok {
			sawTerminal = true
		}
		if herr := handler(*chunk); herr != nil {
			return herr
		}
	}
	if !sawTerminal {
		return wire.NewError(wire.ErrClusterError, "execute command stream for agent %s ended without a terminal chunk", agentID)
	}
	return nil
}

// StreamEvents opens the bidirectional event subscription of spec §4.1/§6
// and delivers every server-sent event to handler until ctx is done or the
// stream errors. Events from this cluster are delivered in source order,
// per spec §5.
func (c *Client) StreamEvents(ctx context.Context, sub wire.EventSubscription, handler func(*wire.FederationEvent)) error {
	stream, err := c.rpc.StreamEvents(ctx)
	if err != nil {
		return translateStatus(err)
	}
	if err := stream.Send(&wire.StreamEventsMessage{Subscription: &sub}); err != nil {
		return translateStatus(err)
	}
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return translateStatus(err)
		}
		if msg.Event != nil {
			handler(msg.Event)
		}
	}
}

func (c *Client) withRetry(ctx context.Context, method string, fn func(context.Context) error) error {
	var lastErr error
	delay := c.retry.InitialDelay
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return wire.Wrap(wire.ErrTimeout, ctx.Err(), "%s: cancelled during retry backoff", method)
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		translated := translateStatus(err)
		lastErr = translated
		kind := wire.KindOf(translated)
		if kind != wire.ErrClusterUnavailable && kind != wire.ErrTimeout {
			return translated
		}
		c.logger.WarnContext(ctx, "cluster rpc transient failure, retrying",
			"cluster_id", c.ClusterID, "method", method, "attempt", attempt, "error", translated)
	}
	return fmt.Errorf("%s: retries exhausted: %w", method, lastErr)
}
