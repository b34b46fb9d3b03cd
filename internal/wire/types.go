package wire

import "time"

// ClusterStatus is the closed status enum of §3.
type ClusterStatus string

const (
	ClusterActive      ClusterStatus = "active"
	ClusterDegraded    ClusterStatus = "degraded"
	ClusterOffline     ClusterStatus = "offline"
	ClusterMaintenance ClusterStatus = "maintenance"
)

// LocalRegion is the synthetic region tag used by the in-process LocalRuntime.
const LocalRegion = "local"

// AgentStatus is the closed status enum of §3.
type AgentStatus string

const (
	AgentPending    AgentStatus = "pending"
	AgentRunning    AgentStatus = "running"
	AgentPaused     AgentStatus = "paused"
	AgentCompleted  AgentStatus = "completed"
	AgentFailed     AgentStatus = "failed"
	AgentMigrating  AgentStatus = "migrating"
	AgentTerminated AgentStatus = "terminated"
)

// Capabilities describes a cluster's declared and observed resource state.
type Capabilities struct {
	MaxAgents       int             `json:"maxAgents"`
	AvailableAgents int             `json:"availableAgents"`
	ActiveAgents    int             `json:"activeAgents"`
	GPUEnabled      bool            `json:"gpuEnabled"`
	GPUTypes        []string        `json:"gpuTypes,omitempty"`
	CostPerHour     float64         `json:"costPerHour"`
	LatencyMs       float64         `json:"latency"`
	Flags           map[string]bool `json:"flags,omitempty"`
}

// Cluster is the federation registry's record for one backend, per §3.
type Cluster struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Endpoint      string            `json:"endpoint"`
	Region        string            `json:"region"`
	Status        ClusterStatus     `json:"status"`
	Capabilities  Capabilities      `json:"capabilities"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
	RegisteredAt  time.Time         `json:"registeredAt"`
	TLSCertPath   string            `json:"tlsCertPath,omitempty"`
	TLSKeyPath    string            `json:"tlsKeyPath,omitempty"`
}

// IsLocal reports whether this descriptor represents the synthetic local backend.
func (c *Cluster) IsLocal() bool {
	return c != nil && c.Region == LocalRegion
}

// ClusterHealthState is the registry's per-cluster health record, per §3.
type ClusterHealthState struct {
	ClusterID           string        `json:"clusterId"`
	Status              ClusterStatus `json:"status"`
	LastHeartbeat       time.Time     `json:"lastHeartbeat"`
	ConsecutiveFailures int           `json:"consecutiveFailures"`
	ConsecutiveSuccess  int           `json:"consecutiveSuccesses"`
	LastLatencyMs       float64       `json:"lastLatencyMs"`
	Message             string        `json:"message,omitempty"`
}

// Agent is the control plane's lifecycle record for one workload, per §3.
type Agent struct {
	ID        string            `json:"id"`
	ClusterID string            `json:"clusterId"` // empty sentinel = local
	Status    AgentStatus       `json:"status"`
	Model     string            `json:"model"`
	StartedAt time.Time         `json:"startedAt"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// IsLocal reports whether the agent is owned by the synthetic local backend.
func (a *Agent) IsLocal() bool {
	return a != nil && a.ClusterID == ""
}

// AgentSnapshot is the migration transfer unit of §3.
type AgentSnapshot struct {
	AgentID        string            `json:"agentId"`
	StateData      []byte            `json:"stateData"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SourceClusterID string           `json:"sourceClusterId"`
}

// AgentSpec is the input to a spawn operation, combining §6's SpawnAgent
// wire fields with the balancer's SpawnConfig (§4.4).
type AgentSpec struct {
	AgentID      string            `json:"agentId,omitempty"`
	Model        string            `json:"model"`
	Labels       map[string]string `json:"labels,omitempty"`
	TimeoutSec   int               `json:"timeoutSeconds,omitempty"`
	RequiresGPU  bool              `json:"gpuEnabled,omitempty"`
	GPUType      string            `json:"gpuType,omitempty"`
	EnvVars      map[string]string `json:"envVars,omitempty"`
	PreferLocal  bool              `json:"preferLocal,omitempty"`
	Priority     string            `json:"priority,omitempty"` // latency|cost|availability|gpu
	MinAgents    int               `json:"minAgents,omitempty"`
}

// AgentStatusInfo is the reply shape of GetAgentStatus.
type AgentStatusInfo struct {
	Status       AgentStatus       `json:"status"`
	StartedAt    time.Time         `json:"startedAt"`
	LastActivity time.Time         `json:"lastActivity"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// CommandChunk is one chunk of an ExecuteCommand stream, per §4.1/§6.
type CommandChunk struct {
	Output   string `json:"output"`
	IsError  bool   `json:"isError"`
	ExitCode *int32 `json:"exitCode,omitempty"`
}

// GetOutput is a nil-safe accessor, matching generated-message idiom.
func (c *CommandChunk) GetOutput() string {
	if c == nil {
		return ""
	}
	return c.Output
}

// GetExitCode is a nil-safe accessor returning (code, ok).
func (c *CommandChunk) GetExitCode() (int32, bool) {
	if c == nil || c.ExitCode == nil {
		return 0, false
	}
	return *c.ExitCode, true
}
