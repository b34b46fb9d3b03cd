package messaging

import (
	"sync"
	"time"

	"github.com/orbitctl/agentplane/internal/events"
)

// DefaultMaxMessages is the default per-mailbox capacity of spec §4.7.
const DefaultMaxMessages = 500

// Mailbox is one agent's durable message queue: fully serialized (spec
// §5 — "a single mailbox processes one operation at a time"), capacity-
// bounded with oldest-first eviction, and expiry-filtering on delivery.
type Mailbox struct {
	mu          sync.Mutex
	agentID     string
	maxMessages int
	messages    []AgentMessage
	stats       Stats
	bus         *events.Bus
}

// NewMailbox constructs a Mailbox for agentID with the given capacity
// (DefaultMaxMessages if maxMessages <= 0).
func NewMailbox(agentID string, maxMessages int) *Mailbox {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Mailbox{
		agentID:     agentID,
		maxMessages: maxMessages,
		stats:       Stats{PerType: make(map[MessageType]int)},
		bus:         events.NewBus(),
	}
}

// Subscribe registers handler for every event this mailbox emits:
// message, urgent, alert, read, all-read, deleted.
func (m *Mailbox) Subscribe(h events.Handler) (cancel func()) {
	return m.bus.Subscribe(h)
}

// Deliver adds msg to the mailbox. An already-expired message is silently
// dropped, per spec §4.7. When the mailbox is at capacity, the oldest
// message (read or unread) is evicted first.
func (m *Mailbox) Deliver(msg AgentMessage) {
	now := time.Now()
	if msg.Expired(now) {
		return
	}

	m.mu.Lock()
	if len(m.messages) >= m.maxMessages {
		evicted := m.messages[0]
		m.messages = m.messages[1:]
		m.adjustCountsOnRemove(evicted)
	}
	m.messages = append(m.messages, msg)
	m.stats.TotalReceived++
	m.stats.PerType[msg.Type]++
	if !msg.Read {
		m.stats.UnreadCount++
	}
	if msg.Priority == PriorityHigh || msg.Priority == PriorityUrgent {
		m.stats.UrgentCount++
	}
	m.stats.LastActivityAt = now
	m.mu.Unlock()

	m.bus.Publish(events.New("message", map[string]string{"agentId": m.agentID, "messageId": msg.ID}))
	if msg.Priority == PriorityHigh || msg.Priority == PriorityUrgent {
		m.bus.Publish(events.New("urgent", map[string]string{"agentId": m.agentID, "messageId": msg.ID}))
	}
	if msg.Type == TypeAlert {
		m.bus.Publish(events.New("alert", map[string]string{"agentId": m.agentID, "messageId": msg.ID}))
	}
}

func (m *Mailbox) adjustCountsOnRemove(msg AgentMessage) {
	m.stats.PerType[msg.Type]--
	if !msg.Read {
		m.stats.UnreadCount--
	}
	if msg.Priority == PriorityHigh || msg.Priority == PriorityUrgent {
		m.stats.UrgentCount--
	}
}

// MarkSent records an outgoing message's statistics; call this when the
// bus hands a message sent by this mailbox's agent off for delivery.
func (m *Mailbox) MarkSent() {
	m.mu.Lock()
	m.stats.TotalSent++
	m.stats.LastActivityAt = time.Now()
	m.mu.Unlock()
}

// List returns a snapshot of every message currently held, oldest first.
func (m *Mailbox) List() []AgentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AgentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// MarkRead marks one message read by id. Returns false if not found.
func (m *Mailbox) MarkRead(messageID string) bool {
	m.mu.Lock()
	var found bool
	for i := range m.messages {
		if m.messages[i].ID == messageID {
			if !m.messages[i].Read {
				m.messages[i].Read = true
				now := time.Now()
				m.messages[i].ReadAt = &now
				m.stats.UnreadCount--
			}
			found = true
			break
		}
	}
	m.mu.Unlock()
	if found {
		m.bus.Publish(events.New("read", map[string]string{"agentId": m.agentID, "messageId": messageID}))
	}
	return found
}

// MarkAllRead marks every unread message read.
func (m *Mailbox) MarkAllRead() {
	m.mu.Lock()
	now := time.Now()
	for i := range m.messages {
		if !m.messages[i].Read {
			m.messages[i].Read = true
			m.messages[i].ReadAt = &now
		}
	}
	m.stats.UnreadCount = 0
	m.mu.Unlock()
	m.bus.Publish(events.New("all-read", map[string]string{"agentId": m.agentID}))
}

// Delete removes one message by id. Returns false if not found.
func (m *Mailbox) Delete(messageID string) bool {
	m.mu.Lock()
	idx := -1
	for i, msg := range m.messages {
		if msg.ID == messageID {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.mu.Unlock()
		return false
	}
	removed := m.messages[idx]
	m.messages = append(m.messages[:idx], m.messages[idx+1:]...)
	m.adjustCountsOnRemove(removed)
	m.mu.Unlock()
	m.bus.Publish(events.New("deleted", map[string]string{"agentId": m.agentID, "messageId": messageID}))
	return true
}

// CleanupExpired evicts every message whose expiry has passed, per spec
// §4.7's periodic sweep.
func (m *Mailbox) CleanupExpired(now time.Time) int {
	m.mu.Lock()
	var kept []AgentMessage
	removed := 0
	for _, msg := range m.messages {
		if msg.Expired(now) {
			m.adjustCountsOnRemove(msg)
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	m.mu.Unlock()
	return removed
}

// StatsSnapshot returns the mailbox's current statistics.
func (m *Mailbox) StatsSnapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.stats
	out.PerType = make(map[MessageType]int, len(m.stats.PerType))
	for k, v := range m.stats.PerType {
		out.PerType[k] = v
	}
	return out
}
