package taskgraph

import (
	"context"
	"encoding/json"
)

// Generator is the llm-assisted strategy's external collaborator, per
// spec §4.8: delegates decomposition to a text generator and expects a
// JSON array of subtasks back. Grounded on the teacher's
// agents/cortex/llm.Client interface shape (a narrow Decide-style
// contract a mock can satisfy deterministically for tests).
type Generator interface {
	Generate(ctx context.Context, task string, ctxInfo Context) (json string, err error)
}

// rawSubtask is the wire shape a Generator is expected to return; only
// the fallback behavior on parse/timeout failure is part of the tested
// contract (spec §9's open question), so this shape is intentionally
// minimal.
type rawSubtask struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	Complexity   string   `json:"complexity"`
}

func llmAssisted(ctx context.Context, gen Generator, task string, ctxInfo Context) []Subtask {
	if gen == nil {
		return componentBased(task, ctxInfo)
	}
	raw, err := gen.Generate(ctx, task, ctxInfo)
	if err != nil {
		return componentBased(task, ctxInfo)
	}
	var parsed []rawSubtask
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return componentBased(task, ctxInfo)
	}
	if len(parsed) == 0 {
		return componentBased(task, ctxInfo)
	}
	subtasks := make([]Subtask, 0, len(parsed))
	for _, r := range parsed {
		c := Complexity(r.Complexity)
		if c != ComplexityLow && c != ComplexityMedium && c != ComplexityHigh {
			c = ComplexityMedium
		}
		subtasks = append(subtasks, Subtask{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			Dependencies: r.Dependencies,
			Complexity:   c,
		})
	}
	return subtasks
}

// MockGenerator is a deterministic Generator for tests, grounded on the
// teacher's llm.MockClient: a DecideFunc-style override, defaulting to a
// canned single-subtask JSON response.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, task string, ctxInfo Context) (string, error)
	CallCount    int
}

func (m *MockGenerator) Generate(ctx context.Context, task string, ctxInfo Context) (string, error) {
	m.CallCount++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, task, ctxInfo)
	}
	return `[{"id":"main","title":"` + task + `","description":"` + task + `","dependencies":[],"complexity":"medium"}]`, nil
}
