package messaging

import (
	"testing"

	"github.com/orbitctl/agentplane/internal/roles"
)

// fakeRoleSource is a minimal RoleSource for exercising the canMessage
// matrix without constructing a full roles.Registry.
type fakeRoleSource struct {
	assignments map[string]roles.RoleAssignment
	defined     map[string]roles.Role
}

func (f *fakeRoleSource) AssignmentOf(agentID string) (roles.RoleAssignment, bool) {
	a, ok := f.assignments[agentID]
	return a, ok
}

func (f *fakeRoleSource) Get(roleID string) (roles.Role, bool) {
	r, ok := f.defined[roleID]
	return r, ok
}

func TestSendRequiresRegisteredRecipient(t *testing.T) {
	b := NewBus(nil, false)
	b.RegisterAgent("sender", 0)
	err := b.Send(AgentMessage{ID: "m1", From: "sender", To: "ghost"})
	if err == nil {
		t.Fatal("expected send to an unregistered recipient to fail")
	}
}

func TestSendDeliversWhenNoRoleSource(t *testing.T) {
	b := NewBus(nil, false)
	b.RegisterAgent("a", 0)
	b.RegisterAgent("b", 0)
	if err := b.Send(AgentMessage{ID: "m1", From: "a", To: "b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	mb, _ := b.Mailbox("b")
	if len(mb.List()) != 1 {
		t.Fatalf("expected recipient mailbox to hold one message, got %d", len(mb.List()))
	}
}

func TestSendEnforcesCanMessageMatrix(t *testing.T) {
	src := &fakeRoleSource{
		assignments: map[string]roles.RoleAssignment{
			"a": {AgentID: "a", RoleID: "worker"},
			"b": {AgentID: "b", RoleID: "reviewer"},
		},
		defined: map[string]roles.Role{
			"worker":   {ID: "worker", CanMessage: []string{"coordinator"}},
			"reviewer": {ID: "reviewer"},
		},
	}
	b := NewBus(src, false)
	b.RegisterAgent("a", 0)
	b.RegisterAgent("b", 0)
	err := b.Send(AgentMessage{ID: "m1", From: "a", To: "b"})
	if err == nil {
		t.Fatal("expected send from worker to reviewer to be denied")
	}
}

func TestSendPermittedWhenSenderHasNoAssignment(t *testing.T) {
	src := &fakeRoleSource{assignments: map[string]roles.RoleAssignment{}, defined: map[string]roles.Role{}}
	b := NewBus(src, false)
	b.RegisterAgent("a", 0)
	b.RegisterAgent("b", 0)
	if err := b.Send(AgentMessage{ID: "m1", From: "a", To: "b"}); err != nil {
		t.Fatalf("expected send with no sender role assignment to be permitted, got %v", err)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	b := NewBus(nil, false)
	b.RegisterAgent("a", 0)
	b.RegisterAgent("b", 0)
	b.RegisterAgent("c", 0)
	delivered := b.Broadcast(AgentMessage{ID: "m1", From: "a"})
	if delivered != 2 {
		t.Fatalf("expected broadcast to reach 2 recipients, got %d", delivered)
	}
	if mb, _ := b.Mailbox("a"); len(mb.List()) != 0 {
		t.Fatal("expected the sender's own mailbox to not receive the broadcast")
	}
}

func TestDeliveryTrackingRecordsState(t *testing.T) {
	b := NewBus(nil, true)
	b.RegisterAgent("a", 0)
	b.RegisterAgent("b", 0)
	if err := b.Send(AgentMessage{ID: "m1", From: "a", To: "b"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	rec, ok := b.DeliveryOf("m1")
	if !ok {
		t.Fatal("expected a delivery record to exist")
	}
	if rec.State != DeliveryDelivered {
		t.Fatalf("expected state %s, got %s", DeliveryDelivered, rec.State)
	}
	b.MarkDeliveredAsRead("m1", "b")
	rec, _ = b.DeliveryOf("m1")
	if rec.State != DeliveryRead {
		t.Fatalf("expected state %s after marking read, got %s", DeliveryRead, rec.State)
	}
}
