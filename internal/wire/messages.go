package wire

import "time"

// Request/response message shapes for every ClusterFederation method in §6.
// Accessors follow the nil-safe GetXxx() convention of generated protobuf
// code, matching the call-site idiom the teacher uses throughout
// internal/agenthub (req.GetTask(), task.GetTaskId(), ...).

type SpawnAgentRequest struct {
	Spec *AgentSpec `json:"spec"`
}

func (r *SpawnAgentRequest) GetSpec() *AgentSpec {
	if r == nil {
		return nil
	}
	return r.Spec
}

type SpawnAgentResponse struct {
	Agent *Agent `json:"agent"`
	Error *Error `json:"error,omitempty"`
}

func (r *SpawnAgentResponse) GetAgent() *Agent {
	if r == nil {
		return nil
	}
	return r.Agent
}

type KillAgentRequest struct {
	AgentID string `json:"agentId"`
	Force   bool   `json:"force"`
}

func (r *KillAgentRequest) GetAgentId() string {
	if r == nil {
		return ""
	}
	return r.AgentID
}

type KillAgentResponse struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error,omitempty"`
}

type ExecuteCommandRequest struct {
	AgentID    string            `json:"agentId"`
	Command    string            `json:"command"`
	Env        map[string]string `json:"env,omitempty"`
	TimeoutSec int               `json:"timeoutSeconds,omitempty"`
}

func (r *ExecuteCommandRequest) GetAgentId() string {
	if r == nil {
		return ""
	}
	return r.AgentID
}

type GetAgentStatusRequest struct {
	AgentID string `json:"agentId"`
}

func (r *GetAgentStatusRequest) GetAgentId() string {
	if r == nil {
		return ""
	}
	return r.AgentID
}

type GetAgentStatusResponse struct {
	Info  *AgentStatusInfo `json:"info"`
	Error *Error           `json:"error,omitempty"`
}

type ListAgentsRequest struct {
	StatusFilter  AgentStatus       `json:"statusFilter,omitempty"`
	LabelSelector map[string]string `json:"labelSelector,omitempty"`
}

type ListAgentsResponse struct {
	Agents []*Agent `json:"agents"`
	Error  *Error   `json:"error,omitempty"`
}

type HeartbeatRequest struct {
	ClusterID string    `json:"clusterId"`
	Timestamp time.Time `json:"timestamp"`
}

type HeartbeatResponse struct {
	Capabilities *Capabilities `json:"capabilities"`
	Error        *Error        `json:"error,omitempty"`
}

// EventSubscription is the first client message of the StreamEvents bidi
// stream, per §6.
type EventSubscription struct {
	ClusterID   string   `json:"clusterId"`
	EventTypes  []string `json:"eventTypes,omitempty"`
	AgentFilter string   `json:"agentIdFilter,omitempty"`
}

// FederationEvent is every subsequent server message on the StreamEvents
// stream, per §6.
type FederationEvent struct {
	Type          string            `json:"type"`
	AgentID       string            `json:"agentId,omitempty"`
	ClusterID     string            `json:"clusterId,omitempty"`
	Payload       map[string]string `json:"payload,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	SourceCluster string            `json:"sourceCluster,omitempty"`
}

func (e *FederationEvent) GetType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// StreamEventsMessage is the envelope used on the bidi StreamEvents
// stream: the client sends exactly one with Subscription set, the server
// sends a sequence with Event set.
type StreamEventsMessage struct {
	Subscription *EventSubscription `json:"subscription,omitempty"`
	Event        *FederationEvent   `json:"event,omitempty"`
}

type ExportAgentRequest struct {
	AgentID      string `json:"agentId"`
	IncludeState bool   `json:"includeState"`
}

func (r *ExportAgentRequest) GetAgentId() string {
	if r == nil {
		return ""
	}
	return r.AgentID
}

type ExportAgentResponse struct {
	Success   bool           `json:"success"`
	Snapshot  *AgentSnapshot `json:"snapshot,omitempty"`
	Error     *Error         `json:"error,omitempty"`
}

type ImportAgentRequest struct {
	Snapshot       *AgentSnapshot `json:"snapshot"`
	TargetClusterID string        `json:"targetClusterId"`
}

func (r *ImportAgentRequest) GetSnapshot() *AgentSnapshot {
	if r == nil {
		return nil
	}
	return r.Snapshot
}

type ImportAgentResponse struct {
	Agent *Agent `json:"agent"`
	Error *Error `json:"error,omitempty"`
}
