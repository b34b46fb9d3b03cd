package taskgraph

import (
	"context"
	"testing"
)

func TestDecomposeComponentBased(t *testing.T) {
	res, err := Decompose(context.Background(), "add api and database support with tests", Context{}, Options{})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(res.Subtasks) == 0 {
		t.Fatal("expected at least one subtask")
	}
	if res.StrategyUsed != StrategyComponentBased {
		t.Fatalf("expected default strategy, got %s", res.StrategyUsed)
	}

	ids := make(map[string]bool)
	for _, st := range res.Subtasks {
		ids[st.ID] = true
	}
	if !ids["tests"] {
		t.Fatal("expected a tests subtask")
	}
	foundTestsDeps := false
	for _, st := range res.Subtasks {
		if st.ID == "tests" {
			foundTestsDeps = len(st.Dependencies) > 0
		}
	}
	if !foundTestsDeps {
		t.Fatal("expected tests subtask to depend on other components")
	}
}

func TestDecomposeComponentBasedRecognizesOAuthAsAuth(t *testing.T) {
	res, err := Decompose(context.Background(), "Implement OAuth with database and tests", Context{}, Options{})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	ids := make(map[string]bool)
	for _, st := range res.Subtasks {
		ids[st.ID] = true
	}
	if !ids["auth"] {
		t.Fatalf("expected \"OAuth\" to imply the auth component, got subtasks %+v", res.Subtasks)
	}
	if !ids["database"] || !ids["tests"] {
		t.Fatalf("expected database and tests subtasks alongside auth, got %+v", res.Subtasks)
	}
}

func TestDecomposeEmptyTaskFallsBack(t *testing.T) {
	res, err := Decompose(context.Background(), "", Context{}, Options{})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(res.Subtasks) != 1 {
		t.Fatalf("expected exactly one fallback subtask, got %d", len(res.Subtasks))
	}
}

func TestDecomposeDetectsCycle(t *testing.T) {
	ctx := Context{}
	opts := Options{Strategy: StrategyFileBased}
	ctx.Files = []string{"a/x.go", "b/y.go"}

	// Inject a cycle by hand-building subtasks through the file-based
	// path is awkward, so exercise detectCycle directly instead.
	subtasks := []Subtask{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	}
	forward, _ := buildEdges(subtasks)
	if cycle := detectCycle(subtasks, forward); cycle == nil {
		t.Fatal("expected a cycle to be detected")
	}

	_ = opts
}

func TestTopoLevelsParallelism(t *testing.T) {
	subtasks := []Subtask{
		{ID: "a"},
		{ID: "b"},
		{ID: "c", Dependencies: []string{"a", "b"}},
	}
	forward, _ := buildEdges(subtasks)
	levels, err := topoLevels(subtasks, forward)
	if err != nil {
		t.Fatalf("topoLevels: %v", err)
	}
	if len(levels) != 2 {
		t.Fatalf("expected 2 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[0]) != 2 {
		t.Fatalf("expected first level to hold both independent subtasks, got %v", levels[0])
	}
	ratio := parallelRatio(len(subtasks), len(levels))
	if ratio <= 0 {
		t.Fatalf("expected positive parallel ratio, got %f", ratio)
	}
}

func TestParallelRatioSequential(t *testing.T) {
	if r := parallelRatio(3, 3); r != 0 {
		t.Fatalf("expected 0 for fully sequential graph, got %f", r)
	}
	if r := parallelRatio(1, 1); r != 0 {
		t.Fatalf("expected 0 for single subtask, got %f", r)
	}
}

func TestAggregateComplexityMajority(t *testing.T) {
	subtasks := []Subtask{
		{Complexity: ComplexityHigh},
		{Complexity: ComplexityMedium},
		{Complexity: ComplexityMedium},
	}
	if got := aggregateComplexity(subtasks); got != ComplexityMedium {
		t.Fatalf("expected medium, got %s", got)
	}
}

func TestAggregateComplexityTieFavorsHigh(t *testing.T) {
	subtasks := []Subtask{
		{Complexity: ComplexityHigh},
		{Complexity: ComplexityMedium},
	}
	if got := aggregateComplexity(subtasks); got != ComplexityHigh {
		t.Fatalf("expected high on a tie against medium, got %s", got)
	}
}

func TestClampSubtasksPrefersHigherComplexity(t *testing.T) {
	subtasks := []Subtask{
		{ID: "low", Complexity: ComplexityLow},
		{ID: "high", Complexity: ComplexityHigh, Dependencies: []string{"low"}},
		{ID: "medium", Complexity: ComplexityMedium},
	}
	clamped := clampSubtasks(subtasks, 2)
	if len(clamped) != 2 {
		t.Fatalf("expected 2 subtasks after clamping, got %d", len(clamped))
	}
	ids := make(map[string]bool)
	for _, st := range clamped {
		ids[st.ID] = true
	}
	if !ids["high"] {
		t.Fatal("expected the high-complexity subtask to survive clamping")
	}
	for _, st := range clamped {
		for _, dep := range st.Dependencies {
			if !ids[dep] {
				t.Fatalf("subtask %s depends on trimmed subtask %s", st.ID, dep)
			}
		}
	}
}

func TestDecomposeLLMAssistedFallsBackOnBadJSON(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, task string, ctxInfo Context) (string, error) {
			return "not json", nil
		},
	}
	res, err := Decompose(context.Background(), "implement api and database", Context{}, Options{
		Strategy:  StrategyLLMAssisted,
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(res.Subtasks) == 0 {
		t.Fatal("expected fallback subtasks on malformed llm output")
	}
	if gen.CallCount != 1 {
		t.Fatalf("expected the generator to be called once, got %d", gen.CallCount)
	}
}

func TestDecomposeLLMAssistedUsesGeneratorOutput(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, task string, ctxInfo Context) (string, error) {
			return `[{"id":"only","title":"Only step","dependencies":[],"complexity":"low"}]`, nil
		},
	}
	res, err := Decompose(context.Background(), "do one thing", Context{}, Options{
		Strategy:  StrategyLLMAssisted,
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(res.Subtasks) != 1 || res.Subtasks[0].ID != "only" {
		t.Fatalf("expected the generator's single subtask to be used, got %+v", res.Subtasks)
	}
}

func TestDecomposeFileBased(t *testing.T) {
	ctx := Context{Files: []string{"internal/foo/a.go", "internal/foo/b.go", "internal/foo_test/a_test.go"}}
	res, err := Decompose(context.Background(), "refactor foo", ctx, Options{Strategy: StrategyFileBased})
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if len(res.Subtasks) != 2 {
		t.Fatalf("expected 2 grouped subtasks, got %d: %+v", len(res.Subtasks), res.Subtasks)
	}
}
