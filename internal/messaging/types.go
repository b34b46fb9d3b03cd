// Package messaging implements the Mailbox and MessageBus components (C7,
// spec §4.7): per-agent durable message queues with capacity eviction and
// expiry filtering, and a bus offering directed, broadcast, and by-role
// delivery, grounded on the teacher's subscriber-channel-per-agent pattern
// in internal/agenthub/subscriber.go and a2a_broker.go.
package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MessageType is the closed type enum of spec §3.
type MessageType string

const (
	TypeTask     MessageType = "task"
	TypeStatus   MessageType = "status"
	TypeResult   MessageType = "result"
	TypeAlert    MessageType = "alert"
	TypeQuery    MessageType = "query"
	TypeFeedback MessageType = "feedback"
	TypeMessage  MessageType = "message"
	TypeSystem   MessageType = "system"
	TypeError    MessageType = "error"
)

// Priority is the closed priority enum of spec §3.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Broadcast and role-targeting sentinels for AgentMessage.To, per spec §3.
const (
	ToBroadcast   = "broadcast"
	roleToPrefix  = "role:"
)

// RoleTarget builds the `role:<roleId>` recipient string.
func RoleTarget(roleID string) string { return roleToPrefix + roleID }

// AgentMessage is the message envelope of spec §3. It is immutable after
// creation except for Read/ReadAt, enforced by Mailbox's API surface
// rather than by the struct itself (matching the teacher's plain-struct
// message style).
type AgentMessage struct {
	ID         string         `json:"id"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	SenderRole string         `json:"senderRole,omitempty"`
	Type       MessageType    `json:"type"`
	Content    string         `json:"content"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Priority   Priority       `json:"priority"`
	Read       bool           `json:"read"`
	ReadAt     *time.Time     `json:"readAt,omitempty"`
	ReplyTo    string         `json:"replyTo,omitempty"`
	ThreadID   string         `json:"threadId,omitempty"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
}

// Expired reports whether the message's expiry has passed as of now.
func (m *AgentMessage) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// NewMessage constructs a message with a generated id and timestamp,
// defaulting priority to normal, matching spec §3.
func NewMessage(from, to string, senderRole string, typ MessageType, content string) AgentMessage {
	return AgentMessage{
		ID:         uuid.NewString(),
		From:       from,
		To:         to,
		SenderRole: senderRole,
		Type:       typ,
		Content:    content,
		Timestamp:  time.Now(),
		Priority:   PriorityNormal,
	}
}

// Stats is the per-mailbox statistics block of spec §4.7.
type Stats struct {
	TotalReceived  int
	TotalSent      int
	UnreadCount    int
	UrgentCount    int
	PerType        map[MessageType]int
	LastActivityAt time.Time
}

// DeliveryState is the optional delivery-tracking state machine of spec
// §4.7.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
	DeliveryFailed    DeliveryState = "failed"
)

// DeliveryRecord tracks one message's delivery progress to one recipient.
type DeliveryRecord struct {
	MessageID string
	Recipient string
	State     DeliveryState
	Attempts  int
	UpdatedAt time.Time
}
