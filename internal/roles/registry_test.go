package roles

import (
	"testing"

	"github.com/orbitctl/agentplane/internal/wire"
)

func validCustomRole(id string) Role {
	return Role{
		ID:            id,
		Name:          "Custom",
		SystemPrompt:  "you are a custom agent",
		MaxIterations: 5,
		Permissions:   []Permission{PermComment},
	}
}

func TestNewSeedsBuiltinRoles(t *testing.T) {
	r := New(nil)
	for _, id := range []string{"coordinator", "worker", "reviewer", "refinery", "monitor"} {
		role, ok := r.Get(id)
		if !ok {
			t.Fatalf("expected built-in role %s to be seeded", id)
		}
		if !role.Builtin {
			t.Fatalf("expected role %s to be marked builtin", id)
		}
	}
}

func TestRegisterRejectsBuiltinOverride(t *testing.T) {
	r := New(nil)
	role := validCustomRole("worker")
	if _, err := r.Register(role); wire.KindOf(err) != wire.ErrCannotOverrideBuiltinRole {
		t.Fatalf("expected ErrCannotOverrideBuiltinRole, got %v", err)
	}
}

func TestRegisterAndUnregisterCustomRole(t *testing.T) {
	r := New(nil)
	role := validCustomRole("archivist")
	if _, err := r.Register(role); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := r.Get("archivist"); !ok {
		t.Fatal("expected archivist to be registered")
	}
	if err := r.Unregister("archivist"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, ok := r.Get("archivist"); ok {
		t.Fatal("expected archivist to be gone after unregister")
	}
}

func TestUnregisterRejectsLiveAssignment(t *testing.T) {
	r := New(nil)
	role := validCustomRole("archivist")
	if _, err := r.Register(role); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Assign(RoleAssignment{AgentID: "agent-1", RoleID: "archivist"}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := r.Unregister("archivist"); err == nil {
		t.Fatal("expected unregister to fail while an assignment is live")
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	r := New(nil)
	cases := []Role{
		{ID: "", SystemPrompt: "x", MaxIterations: 1},
		{ID: "bad id", SystemPrompt: "x", MaxIterations: 1},
		{ID: "ok-id", SystemPrompt: "", MaxIterations: 1},
		{ID: "ok-id", SystemPrompt: "x", MaxIterations: 0},
	}
	for i, c := range cases {
		if _, err := r.Validate(c); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestValidateWarnsOnUnknownPermission(t *testing.T) {
	r := New(nil)
	role := validCustomRole("archivist")
	role.Permissions = []Permission{"not_a_real_permission"}
	issues, err := r.Validate(role)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(issues) == 0 {
		t.Fatal("expected a warning for the unknown permission token")
	}
}

func TestAssignRejectsSecondActiveAssignment(t *testing.T) {
	r := New(nil)
	if err := r.Assign(RoleAssignment{AgentID: "agent-1", RoleID: "worker"}); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if err := r.Assign(RoleAssignment{AgentID: "agent-1", RoleID: "reviewer"}); err == nil {
		t.Fatal("expected second active assignment to be rejected")
	}
}

func TestHasPermissionImpliesReadAssignedFromReadAll(t *testing.T) {
	r := New(nil)
	if err := r.Assign(RoleAssignment{AgentID: "agent-1", RoleID: "coordinator"}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !r.HasPermission("agent-1", PermReadAssigned) {
		t.Fatal("expected coordinator's read_all to imply read_assigned")
	}
}

func TestComposeTeamScalesWorkersWithComplexity(t *testing.T) {
	r := New(nil)
	low := r.ComposeTeam(TeamRequirements{Complexity: "low", EstimatedSubtasks: 10})
	high := r.ComposeTeam(TeamRequirements{Complexity: "high", EstimatedSubtasks: 10})
	if low.WorkerCount >= high.WorkerCount {
		t.Fatalf("expected high complexity to schedule more workers than low, got low=%d high=%d", low.WorkerCount, high.WorkerCount)
	}
	if high.WorkerCount > 10 {
		t.Fatalf("expected worker count to stay within bounds, got %d", high.WorkerCount)
	}
}

func TestComposeTeamAddsReviewerForSecuritySensitive(t *testing.T) {
	r := New(nil)
	proposal := r.ComposeTeam(TeamRequirements{Complexity: "low", EstimatedSubtasks: 1, SecuritySensitive: true})
	if proposal.ReviewerCount != 2 {
		t.Fatalf("expected 2 reviewers for a security-sensitive task, got %d", proposal.ReviewerCount)
	}
}
