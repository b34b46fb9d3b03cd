// Package tasks implements the TaskStore and its Markdown
// hydration/sync-back bridge: durable Task/TaskList persistence, one
// JSON document per entity under a base directory, cooperative
// lease-file locking for multi-writer coordination, and a round trip
// to and from human-authored Markdown task lists.
package tasks

import "time"

// Status is a Task's closed lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// ListStatus is a TaskList's closed lifecycle state.
type ListStatus string

const (
	ListActive    ListStatus = "active"
	ListCompleted ListStatus = "completed"
	ListArchived  ListStatus = "archived"
)

// Priority mirrors the message/role priority vocabulary for tasks.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Task is one unit of work. dependsOn/blocks are maintained as exact
// duals: t is in u.blocks iff u is in t.dependsOn.
type Task struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Status       Status            `json:"status"`
	DependsOn    []string          `json:"dependsOn,omitempty"`
	Blocks       []string          `json:"blocks,omitempty"`
	Assignee     string            `json:"assignee,omitempty"`
	Priority     Priority          `json:"priority"`
	Type         string            `json:"type,omitempty"`
	Tags         []string          `json:"tags,omitempty"`
	Branch       string            `json:"branch,omitempty"`
	Commits      []string          `json:"commits,omitempty"`
	Subscribers  []string          `json:"subscribers,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// TaskList is a named ordered set of task ids.
type TaskList struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	TaskIDs   []string   `json:"taskIds"`
	Status    ListStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func hasString(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}

func removeString(ss []string, v string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func addString(ss []string, v string) []string {
	if hasString(ss, v) {
		return ss
	}
	return append(ss, v)
}
