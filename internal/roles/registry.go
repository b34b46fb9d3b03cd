package roles

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/wire"
)

// Registry is the C6 RoleRegistry: single-writer-guarded role and
// assignment maps, per spec §5.
type Registry struct {
	mu          sync.Mutex
	roles       map[string]Role
	assignments map[string]RoleAssignment // agentId -> assignment

	logger *slog.Logger
	bus    *events.Bus
}

// New constructs a Registry pre-seeded with the five built-in roles.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		roles:       make(map[string]Role),
		assignments: make(map[string]RoleAssignment),
		logger:      logger,
		bus:         events.NewBus(),
	}
	for _, role := range BuiltinRoles() {
		r.roles[role.ID] = role
	}
	return r
}

// Subscribe registers handler for every role:*/assignment:* event.
func (r *Registry) Subscribe(h events.Handler) (cancel func()) {
	return r.bus.Subscribe(h)
}

// Validate checks a role definition against spec §4.6's rules. Returns a
// fatal error for hard violations, plus warnings for soft ones (unknown
// permission tokens, unknown canMessage targets).
func (r *Registry) Validate(role Role) ([]ValidationIssue, error) {
	if role.ID == "" || !roleIDPattern.MatchString(role.ID) {
		return nil, wire.NewError(wire.ErrInvalidRole, "role id %q must match [a-z0-9-]+", role.ID)
	}
	if role.SystemPrompt == "" {
		return nil, wire.NewError(wire.ErrInvalidRole, "role %s: system prompt is required", role.ID)
	}
	if role.MaxIterations < 1 {
		return nil, wire.NewError(wire.ErrInvalidRole, "role %s: maxIterations must be >= 1", role.ID)
	}
	if role.CostBudget != nil && *role.CostBudget < 0 {
		return nil, wire.NewError(wire.ErrInvalidRole, "role %s: costBudget must be >= 0", role.ID)
	}

	var issues []ValidationIssue
	for _, p := range role.Permissions {
		if !knownPermissions[p] {
			issues = append(issues, ValidationIssue{Field: "permissions", Message: "unknown permission token: " + string(p)})
		}
	}
	r.mu.Lock()
	for _, target := range role.CanMessage {
		if _, ok := r.roles[target]; !ok {
			issues = append(issues, ValidationIssue{Field: "canMessage", Message: "unknown target role: " + target})
		}
	}
	r.mu.Unlock()
	return issues, nil
}

// Register adds a user-defined role. Built-in ids can be neither
// overwritten nor removed, per spec §4.6.
func (r *Registry) Register(role Role) ([]ValidationIssue, error) {
	issues, err := r.Validate(role)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if existing, ok := r.roles[role.ID]; ok && existing.Builtin {
		r.mu.Unlock()
		return nil, wire.NewError(wire.ErrCannotOverrideBuiltinRole, "role %s is built-in and cannot be overwritten", role.ID)
	}
	role.Builtin = false
	r.roles[role.ID] = role
	r.mu.Unlock()

	r.bus.Publish(events.New("role:registered", map[string]string{"roleId": role.ID}))
	r.logger.Info("role registered", "role_id", role.ID)
	return issues, nil
}

// Update replaces an existing user-defined role definition.
func (r *Registry) Update(role Role) ([]ValidationIssue, error) {
	issues, err := r.Validate(role)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	existing, ok := r.roles[role.ID]
	if !ok {
		r.mu.Unlock()
		return nil, wire.NewError(wire.ErrInvalidRole, "role %s does not exist", role.ID)
	}
	if existing.Builtin {
		r.mu.Unlock()
		return nil, wire.NewError(wire.ErrCannotOverrideBuiltinRole, "role %s is built-in and cannot be updated", role.ID)
	}
	role.Builtin = false
	r.roles[role.ID] = role
	r.mu.Unlock()

	r.bus.Publish(events.New("role:updated", map[string]string{"roleId": role.ID}))
	return issues, nil
}

// Unregister removes a user-defined role. Rejected if built-in or if any
// assignment still references it, per spec §4.6.
func (r *Registry) Unregister(roleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.roles[roleID]
	if !ok {
		return wire.NewError(wire.ErrInvalidRole, "role %s does not exist", roleID)
	}
	if existing.Builtin {
		return wire.NewError(wire.ErrCannotOverrideBuiltinRole, "role %s is built-in and cannot be removed", roleID)
	}
	for _, a := range r.assignments {
		if a.RoleID == roleID {
			return wire.NewError(wire.ErrInvalidRole, "role %s has live assignments", roleID)
		}
	}
	delete(r.roles, roleID)
	r.bus.Publish(events.New("role:unregistered", map[string]string{"roleId": roleID}))
	return nil
}

// Get returns one role by id.
func (r *Registry) Get(roleID string) (Role, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[roleID]
	return role, ok
}

// List returns every registered role.
func (r *Registry) List() []Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	return out
}

// Assign creates a RoleAssignment for agentID. An agent may have at most
// one active assignment, per spec §3's invariant.
func (r *Registry) Assign(a RoleAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[a.RoleID]; !ok {
		return wire.NewError(wire.ErrInvalidRole, "role %s does not exist", a.RoleID)
	}
	if existing, ok := r.assignments[a.AgentID]; ok && existing.Active(time.Now()) {
		return wire.NewError(wire.ErrInvalidSpec, "agent %s already has an active assignment", a.AgentID)
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	r.assignments[a.AgentID] = a
	r.bus.Publish(events.New("assignment:assigned", map[string]string{"agentId": a.AgentID, "roleId": a.RoleID}))
	return nil
}

// Unassign removes agentID's assignment.
func (r *Registry) Unassign(agentID string) {
	r.mu.Lock()
	a, ok := r.assignments[agentID]
	delete(r.assignments, agentID)
	r.mu.Unlock()
	if ok {
		r.bus.Publish(events.New("assignment:unassigned", map[string]string{"agentId": agentID, "roleId": a.RoleID}))
	}
}

// AssignmentOf returns agentID's current assignment.
func (r *Registry) AssignmentOf(agentID string) (RoleAssignment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[agentID]
	if !ok || !a.Active(time.Now()) {
		return RoleAssignment{}, false
	}
	return a, true
}

// AssignmentsForRole returns every active assignment mapped to roleID.
func (r *Registry) AssignmentsForRole(roleID string) []RoleAssignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	var out []RoleAssignment
	for _, a := range r.assignments {
		if a.RoleID == roleID && a.Active(now) {
			out = append(out, a)
		}
	}
	return out
}

// HasPermission reports whether agentID's assigned role implies p, per
// spec §4.6/§8.
func (r *Registry) HasPermission(agentID string, p Permission) bool {
	a, ok := r.AssignmentOf(agentID)
	if !ok {
		return false
	}
	role, ok := r.Get(a.RoleID)
	if !ok {
		return false
	}
	return role.Implies(p)
}

// TeamRequirements is the input to ComposeTeam, per spec §4.6.
type TeamRequirements struct {
	Task                 string
	Complexity           string // low|medium|high
	EstimatedSubtasks    int
	SecuritySensitive    bool
	RequiresReview       bool
	RequiresMonitoring   bool
	RequiresIntegration  bool
}

// TeamProposal is the composer's output: a role mix plus placeholder
// assignments the caller must spawn and persist, per spec §4.6.
type TeamProposal struct {
	CoordinatorCount int
	WorkerCount      int
	ReviewerCount    int
	MonitorCount     int
	RefineryCount    int
	Assignments      []RoleAssignment
	EstimatedBudget  float64
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ComposeTeam implements the team-composition heuristic of spec §4.6.
func (r *Registry) ComposeTeam(req TeamRequirements) TeamProposal {
	var workerCount int
	switch req.Complexity {
	case "high":
		workerCount = clamp(int(math.Ceil(float64(req.EstimatedSubtasks)/2)), 1, 10)
	case "medium":
		workerCount = clamp(int(math.Ceil(float64(req.EstimatedSubtasks)/2)), 1, 5)
	default: // "low" or unspecified
		workerCount = clamp(req.EstimatedSubtasks, 1, 2)
	}

	reviewerCount := 0
	switch {
	case req.SecuritySensitive:
		reviewerCount = 2
	case req.RequiresReview || req.Complexity == "high":
		reviewerCount = 1
	}

	monitorCount := 0
	if req.Complexity == "high" || req.RequiresMonitoring {
		monitorCount = 1
	}

	refineryCount := 0
	if req.RequiresIntegration || workerCount > 3 {
		refineryCount = 1
	}

	proposal := TeamProposal{
		CoordinatorCount: 1,
		WorkerCount:      workerCount,
		ReviewerCount:    reviewerCount,
		MonitorCount:     monitorCount,
		RefineryCount:    refineryCount,
	}

	add := func(roleID string, n int) {
		for i := 0; i < n; i++ {
			proposal.Assignments = append(proposal.Assignments, RoleAssignment{RoleID: roleID})
		}
	}
	add("coordinator", proposal.CoordinatorCount)
	add("worker", proposal.WorkerCount)
	add("reviewer", proposal.ReviewerCount)
	add("monitor", proposal.MonitorCount)
	add("refinery", proposal.RefineryCount)

	r.mu.Lock()
	for _, a := range proposal.Assignments {
		if role, ok := r.roles[a.RoleID]; ok && role.CostBudget != nil {
			proposal.EstimatedBudget += *role.CostBudget
		}
	}
	r.mu.Unlock()

	return proposal
}
