package tasks

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	epicPattern  = regexp.MustCompile(`^##\s+(.+)$`)
	itemPattern  = regexp.MustCompile(`^[-*]\s+\[( |x|X)\]\s+([A-Za-z0-9_.-]+):\s*(.+)$`)
	blockPattern = regexp.MustCompile(`(?:⚠\s*blocked by|depends on)\s+([A-Za-z0-9_.,\s-]+)`)
)

// HydrateOptions configures a single hydration pass. The zero value
// skips completed items, matching the default hydration behavior.
type HydrateOptions struct {
	IncludeCompleted bool
}

type parsedItem struct {
	specID   string
	title    string
	done     bool
	epic     string
	deps     []string
}

func inferPriority(title string) Priority {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "critical"):
		return PriorityCritical
	case strings.Contains(lower, "bug"):
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

func inferType(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "bug"):
		return "bug"
	case strings.Contains(lower, "research"):
		return "research"
	default:
		return "feature"
	}
}

func parseMarkdown(path string) ([]parsedItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var items []parsedItem
	currentEpic := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := epicPattern.FindStringSubmatch(line); m != nil {
			currentEpic = strings.TrimSpace(m[1])
			continue
		}
		m := itemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := parsedItem{
			specID: m[2],
			title:  strings.TrimSpace(m[3]),
			done:   strings.EqualFold(m[1], "x"),
			epic:   currentEpic,
		}
		if dm := blockPattern.FindStringSubmatch(line); dm != nil {
			for _, id := range strings.Split(dm[1], ",") {
				id = strings.TrimSpace(id)
				if id != "" {
					item.deps = append(item.deps, id)
				}
			}
		}
		if loc := blockPattern.FindStringIndex(item.title); loc != nil {
			item.title = strings.TrimRight(item.title[:loc[0]], " ⛔")
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Hydrate parses a Markdown spec file and creates one Task per parsed
// item, wiring dependencies through an internal spec-id to task-id map
// built on the first pass. Completed items are skipped unless opts
// disables that. Returns the created list.
func (s *Store) Hydrate(path, listName string, opts HydrateOptions) (*TaskList, error) {
	items, err := parseMarkdown(path)
	if err != nil {
		return nil, err
	}

	idMap := make(map[string]string, len(items))
	var toCreate []parsedItem
	for _, it := range items {
		if it.done && !opts.IncludeCompleted {
			continue
		}
		toCreate = append(toCreate, it)
	}

	var taskIDs []string
	created := make(map[string]Task, len(toCreate))
	for _, it := range toCreate {
		status := StatusOpen
		if it.done {
			status = StatusDone
		} else if len(it.deps) > 0 {
			status = StatusBlocked
		}
		t, err := s.CreateTask(Task{
			ID:       it.specID,
			Title:    it.title,
			Status:   status,
			Priority: inferPriority(it.title),
			Type:     inferType(it.title),
			Tags:     []string{it.epic},
		})
		if err != nil {
			return nil, fmt.Errorf("creating task for %s: %w", it.specID, err)
		}
		idMap[it.specID] = t.ID
		created[t.ID] = *t
		taskIDs = append(taskIDs, t.ID)
	}

	// Second pass: resolve spec-id dependency references to task ids now
	// that every item has been created.
	for _, it := range toCreate {
		if len(it.deps) == 0 {
			continue
		}
		taskID := idMap[it.specID]
		var resolved []string
		for _, specDep := range it.deps {
			if taskDep, ok := idMap[specDep]; ok {
				resolved = append(resolved, taskDep)
			}
		}
		if len(resolved) == 0 {
			continue
		}
		if _, err := s.UpdateTask(taskID, func(t *Task) {
			t.DependsOn = resolved
		}); err != nil {
			return nil, fmt.Errorf("wiring dependencies for %s: %w", it.specID, err)
		}
	}

	return s.CreateList(TaskList{Name: listName, TaskIDs: taskIDs})
}
