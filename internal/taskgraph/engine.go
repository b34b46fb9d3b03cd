package taskgraph

import (
	"context"
	"sort"
	"time"
)

// Options configures a single Decompose call.
type Options struct {
	Strategy       Strategy
	MaxParallelism int // 0 means unbounded
	Generator      Generator
}

// Decompose turns task into a DecompositionResult: it selects a
// decomposition strategy, builds the dependency DAG, checks it for
// cycles, computes topological layers, and summarizes parallelism and
// aggregate complexity.
func Decompose(ctx context.Context, task string, ctxInfo Context, opts Options) (*DecompositionResult, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = DefaultStrategy
	}

	var subtasks []Subtask
	switch strategy {
	case StrategyFileBased:
		subtasks = fileBased(task, ctxInfo)
	case StrategyDomainBased:
		subtasks = domainBased(task, ctxInfo)
	case StrategyLLMAssisted:
		subtasks = llmAssisted(ctx, opts.Generator, task, ctxInfo)
	default:
		subtasks = componentBased(task, ctxInfo)
	}

	if len(subtasks) == 0 {
		subtasks = fallbackSubtask(task)
	}

	if opts.MaxParallelism > 0 && len(subtasks) > opts.MaxParallelism {
		subtasks = clampSubtasks(subtasks, opts.MaxParallelism)
	}

	edges, reverse := buildEdges(subtasks)

	if cyclePath := detectCycle(subtasks, edges); cyclePath != nil {
		return nil, &CycleError{Path: cyclePath}
	}

	levels, err := topoLevels(subtasks, edges)
	if err != nil {
		return nil, err
	}

	return &DecompositionResult{
		Subtasks:            subtasks,
		Edges:                edges,
		ReverseEdges:         reverse,
		Levels:               levels,
		ParallelRatio:        parallelRatio(len(subtasks), len(levels)),
		AggregateComplexity:  aggregateComplexity(subtasks),
		StrategyUsed:         strategy,
		Timestamp:            time.Now(),
	}, nil
}

// clampSubtasks keeps the first maxParallelism subtasks, preferring
// higher-complexity ones when trimming: subtasks are stable-sorted by
// complexity descending before truncation, then restored to their
// original relative order among survivors so dependency ids still make
// sense to a human reading the result.
func clampSubtasks(subtasks []Subtask, max int) []Subtask {
	rank := func(c Complexity) int {
		switch c {
		case ComplexityHigh:
			return 0
		case ComplexityMedium:
			return 1
		default:
			return 2
		}
	}
	indexed := make([]int, len(subtasks))
	for i := range indexed {
		indexed[i] = i
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		return rank(subtasks[indexed[i]].Complexity) < rank(subtasks[indexed[j]].Complexity)
	})
	keep := make(map[int]bool, max)
	for _, idx := range indexed[:max] {
		keep[idx] = true
	}
	kept := make([]Subtask, 0, max)
	keptIDs := make(map[string]bool, max)
	for i, st := range subtasks {
		if keep[i] {
			kept = append(kept, st)
			keptIDs[st.ID] = true
		}
	}
	// Dependencies pointing at trimmed subtasks are dropped: a trimmed
	// subtask can no longer gate anything.
	for i := range kept {
		var filtered []string
		for _, dep := range kept[i].Dependencies {
			if keptIDs[dep] {
				filtered = append(filtered, dep)
			}
		}
		kept[i].Dependencies = filtered
	}
	return kept
}

// buildEdges resolves each subtask's Dependencies list against the known
// subtask ids, producing forward and reverse adjacency maps. A
// dependency id that does not resolve to a known subtask is silently
// dropped: it cannot participate in cycle detection or layering.
func buildEdges(subtasks []Subtask) (forward, reverse map[string][]string) {
	ids := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		ids[st.ID] = true
	}
	forward = make(map[string][]string)
	reverse = make(map[string][]string)
	for _, st := range subtasks {
		for _, dep := range st.Dependencies {
			if !ids[dep] || dep == st.ID {
				continue
			}
			forward[st.ID] = append(forward[st.ID], dep)
			reverse[dep] = append(reverse[dep], st.ID)
		}
	}
	return forward, reverse
}

// color states for the three-color depth-first cycle check.
const (
	white = iota
	gray
	black
)

// detectCycle runs a depth-first search over the dependency graph,
// coloring nodes white (unvisited), gray (on the current recursion
// stack), and black (fully explored). A forward edge into a gray node
// is a back-edge: the graph has a cycle, and the path from that node to
// the current one is returned.
func detectCycle(subtasks []Subtask, forward map[string][]string) []string {
	colors := make(map[string]int, len(subtasks))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		stack = append(stack, id)
		for _, dep := range forward[id] {
			switch colors[dep] {
			case gray:
				// back-edge found: extract the cycle portion of stack.
				start := 0
				for i, s := range stack {
					if s == dep {
						start = i
						break
					}
				}
				cycle = append([]string{}, stack[start:]...)
				cycle = append(cycle, dep)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
		return false
	}

	for _, st := range subtasks {
		if colors[st.ID] == white {
			if visit(st.ID) {
				return cycle
			}
		}
	}
	return nil
}

// topoLevels groups subtask ids into layers: level 0 holds every
// subtask with no unresolved dependency, level 1 holds every subtask
// whose dependencies are entirely in level 0, and so on. Each level is
// sorted by id for determinism. Assumes the graph is already known
// acyclic.
func topoLevels(subtasks []Subtask, forward map[string][]string) ([][]string, error) {
	remaining := make(map[string][]string, len(subtasks))
	order := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		remaining[st.ID] = append([]string{}, forward[st.ID]...)
		order = append(order, st.ID)
	}
	sort.Strings(order)

	var levels [][]string
	done := make(map[string]bool, len(subtasks))
	for len(done) < len(subtasks) {
		var level []string
		for _, id := range order {
			if done[id] {
				continue
			}
			ready := true
			for _, dep := range remaining[id] {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, id)
			}
		}
		if len(level) == 0 {
			// Should not happen on an acyclic graph; guards against an
			// undetected dependency loop rather than spinning forever.
			return nil, &CycleError{Path: order}
		}
		sort.Strings(level)
		for _, id := range level {
			done[id] = true
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// parallelRatio is (totalSubtasks - levelCount) / max(1, totalSubtasks -
// 1): 0 when every subtask is strictly sequential (one per level), and
// approaching 1 as more subtasks share a level.
func parallelRatio(total, levelCount int) float64 {
	if total <= 1 {
		return 0
	}
	denom := float64(total - 1)
	return float64(total-levelCount) / denom
}

// aggregateComplexity takes a majority vote across subtask complexity,
// with ties resolved upward: a tie between medium and low favors
// medium, and a tie involving high favors high.
func aggregateComplexity(subtasks []Subtask) Complexity {
	counts := map[Complexity]int{}
	for _, st := range subtasks {
		counts[st.Complexity]++
	}
	if counts[ComplexityHigh] > 0 && counts[ComplexityHigh] >= counts[ComplexityMedium] && counts[ComplexityHigh] >= counts[ComplexityLow] {
		return ComplexityHigh
	}
	if counts[ComplexityMedium] >= counts[ComplexityLow] && counts[ComplexityMedium] > 0 {
		return ComplexityMedium
	}
	if counts[ComplexityLow] > 0 {
		return ComplexityLow
	}
	return ComplexityMedium
}
