// Package roles implements the RoleRegistry component (C6, spec §4.6): a
// built-in + user-defined role catalog, assignment tracking, permission
// checks under implication, and the team-composition heuristic.
package roles

import (
	"regexp"
	"time"
)

// Permission is one token from the closed set of spec §3.
type Permission string

const (
	PermReadAll        Permission = "read_all"
	PermReadAssigned    Permission = "read_assigned"
	PermWriteAll        Permission = "write_all"
	PermWriteAssigned   Permission = "write_assigned"
	PermDelegateTasks   Permission = "delegate_tasks"
	PermManageAgents    Permission = "manage_agents"
	PermComment         Permission = "comment"
	PermApprove         Permission = "approve"
	PermReject          Permission = "reject"
	PermReadMetrics     Permission = "read_metrics"
	PermReadLogs        Permission = "read_logs"
	PermSendAlerts      Permission = "send_alerts"
	PermGitOperations   Permission = "git_operations"
)

var knownPermissions = map[Permission]bool{
	PermReadAll: true, PermReadAssigned: true, PermWriteAll: true, PermWriteAssigned: true,
	PermDelegateTasks: true, PermManageAgents: true, PermComment: true, PermApprove: true,
	PermReject: true, PermReadMetrics: true, PermReadLogs: true, PermSendAlerts: true,
	PermGitOperations: true,
}

var roleIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Role is the named bundle of permissions, tools, and communication rights
// of spec §3.
type Role struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	SystemPrompt      string            `json:"systemPrompt"`
	Tools             []string          `json:"tools,omitempty"`
	Permissions       []Permission      `json:"permissions,omitempty"`
	MaxIterations     int               `json:"maxIterations"`
	AutoSubmit        bool              `json:"autoSubmit,omitempty"`
	RequireApproval   bool              `json:"requireApproval,omitempty"`
	CanMessage        []string          `json:"canMessage,omitempty"`
	BroadcastChannels []string          `json:"broadcastChannels,omitempty"`
	PreferredProvider string            `json:"preferredProvider,omitempty"`
	PreferredModel    string            `json:"preferredModel,omitempty"`
	CostBudget        *float64          `json:"costBudget,omitempty"`
	TimeoutMs         int               `json:"timeoutMs,omitempty"`
	MaxConcurrentTasks int              `json:"maxConcurrentTasks,omitempty"`
	Priority          int               `json:"priority,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Builtin           bool              `json:"builtin,omitempty"`
}

// hasRaw reports whether r's permission set contains p directly.
func (r *Role) hasRaw(p Permission) bool {
	for _, perm := range r.Permissions {
		if perm == p {
			return true
		}
	}
	return false
}

// Implies applies spec §4.6's permission-implication rule:
// read_all -> read_assigned, write_all -> write_assigned, otherwise exact
// match.
func (r *Role) Implies(p Permission) bool {
	if r.hasRaw(p) {
		return true
	}
	switch p {
	case PermReadAssigned:
		return r.hasRaw(PermReadAll)
	case PermWriteAssigned:
		return r.hasRaw(PermWriteAll)
	default:
		return false
	}
}

// CanMessageRole reports whether r is allowed to message targetRoleID.
func (r *Role) CanMessageRole(targetRoleID string) bool {
	for _, id := range r.CanMessage {
		if id == targetRoleID {
			return true
		}
	}
	return false
}

// RoleAssignment binds an agent to a role, per spec §3.
type RoleAssignment struct {
	AgentID    string     `json:"agentId"`
	RoleID     string     `json:"roleId"`
	TeamID     string     `json:"teamId,omitempty"`
	WorktreeID string     `json:"worktreeId,omitempty"`
	AssignedAt time.Time  `json:"assignedAt"`
	AssignedBy string     `json:"assignedBy,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Active reports whether the assignment has not yet expired.
func (a *RoleAssignment) Active(now time.Time) bool {
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

// ValidationIssue is a non-fatal warning surfaced by Validate, per spec
// §4.6 ("unknown tokens are warnings, not errors").
type ValidationIssue struct {
	Field   string
	Message string
}
