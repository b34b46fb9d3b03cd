package messaging

import (
	"sync"
	"time"

	"github.com/orbitctl/agentplane/internal/events"
	"github.com/orbitctl/agentplane/internal/roles"
	"github.com/orbitctl/agentplane/internal/wire"
)

// RoleSource is the narrow role-lookup surface the bus needs to enforce
// the canMessage matrix on directed sends. *roles.Registry satisfies it.
type RoleSource interface {
	AssignmentOf(agentID string) (roles.RoleAssignment, bool)
	Get(roleID string) (roles.Role, bool)
}

// Bus is the C7 MessageBus: registers per-agent mailboxes and implements
// directed, broadcast, and by-role delivery, per spec §4.7.
type Bus struct {
	mu        sync.RWMutex
	mailboxes map[string]*Mailbox

	rolesSrc RoleSource

	deliveryMu sync.Mutex
	delivery   map[string]*DeliveryRecord // messageId -> record (directed and by-role sends; broadcasts are not tracked)
	trackDelivery bool

	bus    *events.Bus
	mirror *DurableMirror
}

// NewBus constructs an empty Bus. roleSrc may be nil, which disables
// canMessage enforcement (every directed send is permitted). trackDelivery
// enables the optional per-message delivery state machine of spec §4.7.
func NewBus(roleSrc RoleSource, trackDelivery bool) *Bus {
	return &Bus{
		mailboxes:     make(map[string]*Mailbox),
		rolesSrc:      roleSrc,
		delivery:      make(map[string]*DeliveryRecord),
		trackDelivery: trackDelivery,
		bus:           events.NewBus(),
	}
}

// SetMirror attaches a DurableMirror: every subsequent directed send,
// broadcast, and role-send is also republished onto the mirror's JetStream
// subjects, so a MessageBus restart can rehydrate mailboxes via
// RehydrateMailbox. Passing nil detaches mirroring.
func (b *Bus) SetMirror(m *DurableMirror) {
	b.mirror = m
}

// RehydrateMailbox replays agentID's durably mirrored messages (if a
// mirror is attached) into its freshly registered mailbox, restoring state
// lost across a MessageBus process restart.
func (b *Bus) RehydrateMailbox(agentID string) (unsubscribe func() error, err error) {
	if b.mirror == nil {
		return func() error { return nil }, nil
	}
	mb, ok := b.Mailbox(agentID)
	if !ok {
		mb = b.RegisterAgent(agentID, 0)
	}
	return b.mirror.Replay(agentID, func(msg AgentMessage) {
		mb.Deliver(msg)
	})
}

// Subscribe registers handler for every bus-level event: broadcast,
// role-message, in addition to whatever a caller also subscribes to on
// individual mailboxes.
func (b *Bus) Subscribe(h events.Handler) (cancel func()) {
	return b.bus.Subscribe(h)
}

// RegisterAgent creates agentID's mailbox if it does not already exist.
func (b *Bus) RegisterAgent(agentID string, maxMessages int) *Mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.mailboxes[agentID]; ok {
		return mb
	}
	mb := NewMailbox(agentID, maxMessages)
	b.mailboxes[agentID] = mb
	return mb
}

// UnregisterAgent removes agentID's mailbox.
func (b *Bus) UnregisterAgent(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mailboxes, agentID)
}

// Mailbox returns agentID's mailbox, or false if unregistered.
func (b *Bus) Mailbox(agentID string) (*Mailbox, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mb, ok := b.mailboxes[agentID]
	return mb, ok
}

func (b *Bus) roleIDOf(agentID string) (string, bool) {
	if b.rolesSrc == nil {
		return "", false
	}
	a, ok := b.rolesSrc.AssignmentOf(agentID)
	if !ok {
		return "", false
	}
	return a.RoleID, true
}

func (b *Bus) canMessage(fromAgent, toAgent string) bool {
	if b.rolesSrc == nil || fromAgent == toAgent {
		return true
	}
	fromRoleID, ok := b.roleIDOf(fromAgent)
	if !ok {
		return true // spec §9: permitted when the sender holds no role assignment.
	}
	toRoleID, ok := b.roleIDOf(toAgent)
	if !ok {
		return true
	}
	fromRole, ok := b.rolesSrc.Get(fromRoleID)
	if !ok {
		return true
	}
	return fromRole.CanMessageRole(toRoleID)
}

func (b *Bus) track(msg AgentMessage, recipient string) {
	if !b.trackDelivery {
		return
	}
	b.deliveryMu.Lock()
	defer b.deliveryMu.Unlock()
	b.delivery[msg.ID] = &DeliveryRecord{
		MessageID: msg.ID,
		Recipient: recipient,
		State:     DeliveryDelivered,
		Attempts:  1,
		UpdatedAt: time.Now(),
	}
}

// DeliveryOf returns the tracked delivery state for messageID, if
// delivery tracking is enabled and a record exists.
func (b *Bus) DeliveryOf(messageID string) (DeliveryRecord, bool) {
	b.deliveryMu.Lock()
	defer b.deliveryMu.Unlock()
	rec, ok := b.delivery[messageID]
	if !ok {
		return DeliveryRecord{}, false
	}
	return *rec, true
}

// MarkDeliveredAsRead moves a tracked delivery record to the read state,
// per spec §4.7.
func (b *Bus) MarkDeliveredAsRead(messageID, recipient string) {
	b.deliveryMu.Lock()
	defer b.deliveryMu.Unlock()
	if rec, ok := b.delivery[messageID]; ok && rec.Recipient == recipient {
		rec.State = DeliveryRead
		rec.UpdatedAt = time.Now()
	}
}

// Send implements directed delivery: the recipient mailbox must exist, and
// the canMessage matrix is enforced unless sender and recipient are the
// same agent, per spec §4.7.
func (b *Bus) Send(msg AgentMessage) error {
	mb, ok := b.Mailbox(msg.To)
	if !ok {
		return wire.NewError(wire.ErrRecipientUnknown, "no mailbox registered for %s", msg.To)
	}
	if !b.canMessage(msg.From, msg.To) {
		return wire.NewError(wire.ErrPermissionDenied, "role of %s may not message role of %s", msg.From, msg.To)
	}
	if sender, ok := b.Mailbox(msg.From); ok {
		sender.MarkSent()
	}
	mb.Deliver(msg)
	b.track(msg, msg.To)
	if b.mirror != nil {
		b.mirror.Mirror(msg.To, msg)
	}
	return nil
}

// Broadcast delivers msg to every registered mailbox except the sender,
// per spec §4.7. Fan-out runs concurrently since each mailbox serializes
// independently.
func (b *Bus) Broadcast(msg AgentMessage) int {
	msg.To = ToBroadcast
	b.mu.RLock()
	targets := make(map[string]*Mailbox, len(b.mailboxes))
	for agentID, mb := range b.mailboxes {
		if agentID == msg.From {
			continue
		}
		targets[agentID] = mb
	}
	b.mu.RUnlock()

	if sender, ok := b.Mailbox(msg.From); ok {
		sender.MarkSent()
	}

	var wg sync.WaitGroup
	for agentID, mb := range targets {
		wg.Add(1)
		go func(agentID string, mb *Mailbox) {
			defer wg.Done()
			mb.Deliver(msg)
			if b.mirror != nil {
				b.mirror.Mirror(agentID, msg)
			}
		}(agentID, mb)
	}
	wg.Wait()
	b.bus.Publish(events.New("broadcast", map[string]string{"from": msg.From, "messageId": msg.ID}))
	return len(targets)
}

// SendToRole delivers msg to every agent whose assignment maps to roleID,
// per spec §4.7. Returns the delivered count.
func (b *Bus) SendToRole(msg AgentMessage, roleID string) int {
	msg.To = RoleTarget(roleID)
	var assignees []string
	if b.rolesSrc != nil {
		for _, a := range roleAssignmentsForRole(b.rolesSrc, roleID) {
			assignees = append(assignees, a.AgentID)
		}
	}

	if sender, ok := b.Mailbox(msg.From); ok {
		sender.MarkSent()
	}

	delivered := 0
	for _, agentID := range assignees {
		if mb, ok := b.Mailbox(agentID); ok {
			mb.Deliver(msg)
			b.track(msg, agentID)
			if b.mirror != nil {
				b.mirror.Mirror(agentID, msg)
			}
			delivered++
		}
	}
	b.bus.Publish(events.New("role-message", map[string]string{"from": msg.From, "roleId": roleID, "messageId": msg.ID}))
	return delivered
}

// roleAssignmentsForRole adapts RoleSource to the richer
// AssignmentsForRole lookup *roles.Registry exposes, falling back to a
// type assertion since the narrow interface doesn't carry it.
func roleAssignmentsForRole(src RoleSource, roleID string) []roles.RoleAssignment {
	if full, ok := src.(interface {
		AssignmentsForRole(string) []roles.RoleAssignment
	}); ok {
		return full.AssignmentsForRole(roleID)
	}
	return nil
}

// CleanupExpired sweeps every registered mailbox, per spec §4.7.
func (b *Bus) CleanupExpired() int {
	b.mu.RLock()
	mailboxes := make([]*Mailbox, 0, len(b.mailboxes))
	for _, mb := range b.mailboxes {
		mailboxes = append(mailboxes, mb)
	}
	b.mu.RUnlock()
	now := time.Now()
	total := 0
	for _, mb := range mailboxes {
		total += mb.CleanupExpired(now)
	}
	return total
}

// StartExpirySweep launches a goroutine that calls CleanupExpired on
// interval until stop is closed.
func (b *Bus) StartExpirySweep(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.CleanupExpired()
			}
		}
	}()
}
