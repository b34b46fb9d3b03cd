package tasks

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"
)

func checkbox(t Task) string {
	if t.Status == StatusDone {
		return "x"
	}
	return " "
}

func renderLine(t Task) string {
	line := fmt.Sprintf("- [%s] %s: %s", checkbox(t), t.ID, t.Title)
	if len(t.DependsOn) > 0 {
		line += " ⚠ blocked by " + strings.Join(t.DependsOn, ", ")
	}
	if t.Priority == PriorityHigh || t.Priority == PriorityCritical {
		line += fmt.Sprintf(" [%s]", t.Priority)
	}
	return line
}

// SyncToMarkdown writes every task in list listID to a fresh Markdown
// file at path, grouped into H2 epic sections by the task's first tag.
func (s *Store) SyncToMarkdown(listID, path string) error {
	l, err := s.GetList(listID)
	if err != nil {
		return err
	}

	epics := make(map[string][]Task)
	var epicOrder []string
	var done int
	for _, id := range l.TaskIDs {
		t, err := s.GetTask(id)
		if err != nil {
			continue
		}
		if t.Status == StatusDone {
			done++
		}
		epic := "Tasks"
		if len(t.Tags) > 0 && t.Tags[0] != "" {
			epic = t.Tags[0]
		}
		if _, ok := epics[epic]; !ok {
			epicOrder = append(epicOrder, epic)
		}
		epics[epic] = append(epics[epic], *t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", l.Name)
	fmt.Fprintf(&b, "_Generated at %s_\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%d of %d tasks done\n\n", done, len(l.TaskIDs))
	for _, epic := range epicOrder {
		fmt.Fprintf(&b, "## %s\n\n", epic)
		for _, t := range epics[epic] {
			fmt.Fprintln(&b, renderLine(t))
		}
		b.WriteString("\n")
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// SyncInPlace updates an existing Markdown file's checkbox characters to
// match current task status, leaving every other character of the file
// — including prose outside of task lines — untouched.
func (s *Store) SyncInPlace(listID, path string) error {
	l, err := s.GetList(listID)
	if err != nil {
		return err
	}
	statusByID := make(map[string]Status, len(l.TaskIDs))
	for _, id := range l.TaskIDs {
		t, err := s.GetTask(id)
		if err != nil {
			continue
		}
		statusByID[id] = t.Status
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	scanErr := scanner.Err()
	f.Close()
	if scanErr != nil {
		return scanErr
	}

	for i, line := range lines {
		m := itemPattern.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		id := line[m[4]:m[5]]
		status, ok := statusByID[id]
		if !ok {
			continue
		}
		box := " "
		if status == StatusDone {
			box = "x"
		}
		checkboxStart, checkboxEnd := m[2], m[3]
		lines[i] = line[:checkboxStart] + box + line[checkboxEnd:]
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
