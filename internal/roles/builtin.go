package roles

// floatPtr is a small helper for the optional CostBudget field.
func floatPtr(v float64) *float64 { return &v }

// BuiltinRoles returns the five mandatory roles of spec §3, constructed
// fresh on every call so a caller mutating one copy cannot corrupt another.
func BuiltinRoles() []Role {
	return []Role{
		{
			ID:            "coordinator",
			Name:          "Coordinator",
			Description:   "Decomposes tasks, assigns work, and tracks team progress.",
			SystemPrompt:  "You are the coordinator of a multi-agent team. Decompose the task, assign subtasks, and track completion.",
			Tools:         []string{"delegate", "status"},
			Permissions:   []Permission{PermReadAll, PermWriteAll, PermDelegateTasks, PermManageAgents, PermApprove, PermReject},
			MaxIterations: 50,
			CanMessage:    []string{"worker", "reviewer", "refinery", "monitor"},
			Priority:      100,
			Builtin:       true,
		},
		{
			ID:            "worker",
			Name:          "Worker",
			Description:   "Executes one assigned subtask to completion.",
			SystemPrompt:  "You are a worker agent. Complete your assigned subtask and report status to your coordinator.",
			Tools:         []string{"edit", "exec", "git"},
			Permissions:   []Permission{PermReadAssigned, PermWriteAssigned, PermComment, PermGitOperations},
			MaxIterations: 30,
			CanMessage:    []string{"coordinator"},
			Priority:      50,
			Builtin:       true,
		},
		{
			ID:            "reviewer",
			Name:          "Reviewer",
			Description:   "Reviews completed work for correctness and quality.",
			SystemPrompt:  "You are a reviewer. Examine the submitted work and approve or reject it with feedback.",
			Tools:         []string{"read", "comment"},
			Permissions:   []Permission{PermReadAll, PermComment, PermApprove, PermReject},
			MaxIterations: 20,
			RequireApproval: true,
			CanMessage:    []string{"coordinator", "worker"},
			Priority:      60,
			Builtin:       true,
		},
		{
			ID:            "refinery",
			Name:          "Refinery",
			Description:   "Integrates and reconciles parallel work into a single coherent result.",
			SystemPrompt:  "You are the refinery. Merge and reconcile the outputs of parallel workers into one consistent result.",
			Tools:         []string{"edit", "git"},
			Permissions:   []Permission{PermReadAll, PermWriteAll, PermGitOperations},
			MaxIterations: 40,
			CanMessage:    []string{"coordinator", "worker"},
			Priority:      70,
			Builtin:       true,
		},
		{
			ID:            "monitor",
			Name:          "Monitor",
			Description:   "Observes team health and raises alerts on anomalies.",
			SystemPrompt:  "You are the monitor. Watch the team's progress and metrics, and raise an alert if something looks wrong.",
			Tools:         []string{"metrics", "alert"},
			Permissions:   []Permission{PermReadMetrics, PermReadLogs, PermSendAlerts},
			MaxIterations: 100,
			CanMessage:    []string{"coordinator"},
			Priority:      40,
			Builtin:       true,
		},
	}
}

func isBuiltinID(id string) bool {
	for _, r := range BuiltinRoles() {
		if r.ID == id {
			return true
		}
	}
	return false
}
