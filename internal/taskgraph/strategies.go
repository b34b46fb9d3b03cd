package taskgraph

import (
	"path"
	"regexp"
	"sort"
	"strings"
)

// knownComponents is the fixed vocabulary the component-based strategy
// extracts from task text, per spec §4.8.
var knownComponents = []string{"api", "database", "auth", "frontend", "backend", "tests"}

// componentDependencies is the ordering rule of spec §4.8: api depends on
// database, frontend depends on api, tests depend on everything else.
func componentDependencies(present map[string]bool) map[string][]string {
	deps := make(map[string][]string)
	if present["api"] && present["database"] {
		deps["api"] = append(deps["api"], "database")
	}
	if present["frontend"] && present["api"] {
		deps["frontend"] = append(deps["frontend"], "api")
	}
	if present["tests"] {
		for _, c := range knownComponents {
			if c != "tests" && present[c] {
				deps["tests"] = append(deps["tests"], c)
			}
		}
	}
	return deps
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]+`)

func wordsOf(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		words[w] = true
	}
	return words
}

// wordsImply reports whether component is present among words, either as
// its own word or as a substring of a longer one ("oauth" implies "auth",
// per spec §4.8's own worked example). Plain substring matching over every
// word would false-positive on short components like "api"; restricting
// the fuzzy match to components of four letters or more keeps it narrow.
func wordsImply(words map[string]bool, component string) bool {
	if words[component] {
		return true
	}
	if len(component) < 4 {
		return false
	}
	for w := range words {
		if strings.Contains(w, component) {
			return true
		}
	}
	return false
}

// componentBased implements spec §4.8's default strategy.
func componentBased(task string, ctx Context) []Subtask {
	words := wordsOf(task)
	for _, c := range ctx.Components {
		words[strings.ToLower(c)] = true
	}

	present := make(map[string]bool)
	for _, c := range knownComponents {
		if wordsImply(words, c) {
			present[c] = true
		}
	}
	if len(present) == 0 {
		return fallbackSubtask(task)
	}

	deps := componentDependencies(present)
	var subtasks []Subtask
	for _, c := range knownComponents {
		if !present[c] {
			continue
		}
		subtasks = append(subtasks, Subtask{
			ID:           c,
			Title:        strings.Title(c),
			Description:  "Implement the " + c + " portion of: " + task,
			Dependencies: deps[c],
			Complexity:   estimateComplexity(c),
			Component:    c,
		})
	}
	return subtasks
}

func estimateComplexity(component string) Complexity {
	switch component {
	case "database", "auth":
		return ComplexityHigh
	case "api", "backend":
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// domainChains is the business-domain ordering rule of spec §4.8.
var domainChains = [][]string{
	{"user", "order", "shipping"},
	{"product", "cart", "order"},
}

var knownDomains = []string{"user", "order", "shipping", "product", "cart", "payment", "inventory"}

// domainBased implements the domain-based strategy of spec §4.8: same
// shape as component-based, over business-domain nouns.
func domainBased(task string, ctx Context) []Subtask {
	words := wordsOf(task)
	for _, d := range ctx.Domains {
		words[strings.ToLower(d)] = true
	}
	present := make(map[string]bool)
	for _, d := range knownDomains {
		if words[d] {
			present[d] = true
		}
	}
	if len(present) == 0 {
		return fallbackSubtask(task)
	}

	deps := make(map[string][]string)
	for _, chain := range domainChains {
		for i := 1; i < len(chain); i++ {
			if present[chain[i]] && present[chain[i-1]] {
				deps[chain[i]] = append(deps[chain[i]], chain[i-1])
			}
		}
	}

	var subtasks []Subtask
	for _, d := range knownDomains {
		if !present[d] {
			continue
		}
		subtasks = append(subtasks, Subtask{
			ID:           d,
			Title:        strings.Title(d),
			Description:  "Implement the " + d + " domain portion of: " + task,
			Dependencies: deps[d],
			Complexity:   ComplexityMedium,
			Domain:       d,
		})
	}
	return subtasks
}

// fileBased groups files under their closest shared directory ancestor;
// each group becomes one subtask, per spec §4.8. Files whose group name
// looks like a test directory depend on every non-test group.
func fileBased(task string, ctx Context) []Subtask {
	if len(ctx.Files) == 0 {
		return fallbackSubtask(task)
	}
	groups := make(map[string][]string)
	for _, f := range ctx.Files {
		dir := path.Dir(f)
		groups[dir] = append(groups[dir], f)
	}

	var dirs []string
	for d := range groups {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	isTestDir := func(d string) bool {
		base := path.Base(d)
		return strings.Contains(base, "test") || strings.Contains(d, "_test")
	}

	var nonTest []string
	for _, d := range dirs {
		if !isTestDir(d) {
			nonTest = append(nonTest, d)
		}
	}

	var subtasks []Subtask
	for _, d := range dirs {
		var deps []string
		if isTestDir(d) {
			deps = append(deps, nonTest...)
		}
		subtasks = append(subtasks, Subtask{
			ID:           dirID(d),
			Title:        "Changes under " + d,
			Description:  "Implement changes to files under " + d + " for: " + task,
			Dependencies: deps,
			Complexity:   ComplexityMedium,
			Files:        groups[d],
		})
	}
	return subtasks
}

func dirID(dir string) string {
	id := strings.ReplaceAll(dir, "/", "-")
	id = strings.Trim(id, "-")
	if id == "" || id == "." {
		id = "root"
	}
	return strings.ToLower(id)
}

// fallbackSubtask implements the boundary behavior of spec §8: a
// decomposition of the empty string or an unrecognizable task still
// produces at least one subtask.
func fallbackSubtask(task string) []Subtask {
	title := task
	if title == "" {
		title = "Unscoped task"
	}
	return []Subtask{{
		ID:          "main",
		Title:       title,
		Description: "Complete: " + task,
		Complexity:  ComplexityMedium,
	}}
}
