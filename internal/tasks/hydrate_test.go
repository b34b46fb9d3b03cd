package tasks

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSpecFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "spec.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing spec file: %v", err)
	}
	return path
}

func TestHydrateParsesItemsAndDependencies(t *testing.T) {
	dir := t.TempDir()
	content := `# Project

## Backend

- [ ] b1: add database migration
- [ ] b2: wire the api handler ⚠ blocked by b1
- [x] b3: write a critical bugfix
`
	path := writeSpecFile(t, dir, content)
	s := newTestStore(t)

	list, err := s.Hydrate(path, "Project", HydrateOptions{})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	// b3 is completed and skipped by default.
	if len(list.TaskIDs) != 2 {
		t.Fatalf("expected 2 hydrated tasks, got %d", len(list.TaskIDs))
	}

	var b1, b2 *Task
	for _, id := range list.TaskIDs {
		tsk, err := s.GetTask(id)
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		switch tsk.Title {
		case "add database migration":
			b1 = tsk
		case "wire the api handler":
			b2 = tsk
		}
	}
	if b1 == nil || b2 == nil {
		t.Fatal("expected both b1 and b2 tasks to be hydrated")
	}
	if !hasString(b2.DependsOn, b1.ID) {
		t.Fatalf("expected b2 to depend on b1's task id, got %v", b2.DependsOn)
	}
	if b2.Status != StatusBlocked {
		t.Fatalf("expected b2 to start blocked, got %s", b2.Status)
	}
}

func TestHydratePreservesSpecIDs(t *testing.T) {
	dir := t.TempDir()
	content := "## Backend\n\n- [ ] b1: add database migration\n"
	path := writeSpecFile(t, dir, content)
	s := newTestStore(t)

	list, err := s.Hydrate(path, "Project", HydrateOptions{})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(list.TaskIDs) != 1 || list.TaskIDs[0] != "b1" {
		t.Fatalf("expected the hydrated task id to be the spec id %q, got %v", "b1", list.TaskIDs)
	}
	tsk, err := s.GetTask("b1")
	if err != nil {
		t.Fatalf("expected task to be retrievable by its preserved spec id: %v", err)
	}
	if tsk.Title != "add database migration" {
		t.Fatalf("expected preserved task to carry its hydrated title, got %q", tsk.Title)
	}
}

func TestHydrateIncludeCompleted(t *testing.T) {
	dir := t.TempDir()
	content := "## Epic\n\n- [x] done1: already finished\n"
	path := writeSpecFile(t, dir, content)
	s := newTestStore(t)

	list, err := s.Hydrate(path, "Project", HydrateOptions{IncludeCompleted: true})
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(list.TaskIDs) != 1 {
		t.Fatalf("expected completed item to be hydrated when opted in, got %d", len(list.TaskIDs))
	}
	tsk, _ := s.GetTask(list.TaskIDs[0])
	if tsk.Status != StatusDone {
		t.Fatalf("expected hydrated completed task, got %s", tsk.Status)
	}
}

func TestSyncToMarkdownRoundTrip(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "first", Tags: []string{"Epic One"}})
	if _, err := s.CompleteTask(a.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	b, _ := s.CreateTask(Task{Title: "second", Tags: []string{"Epic One"}, DependsOn: nil})

	list, err := s.CreateList(TaskList{Name: "Roundtrip", TaskIDs: []string{a.ID, b.ID}})
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out.md")
	if err := s.SyncToMarkdown(list.ID, out); err != nil {
		t.Fatalf("SyncToMarkdown: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading synced file: %v", err)
	}
	rendered := string(data)
	if !strings.Contains(rendered, "[x] "+a.ID+": first") {
		t.Fatalf("expected completed task rendered with checked box, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "[ ] "+b.ID+": second") {
		t.Fatalf("expected open task rendered with unchecked box, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "## Epic One") {
		t.Fatalf("expected an epic section, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Generated at") {
		t.Fatalf("expected a generated-at line, got:\n%s", rendered)
	}
	if !strings.Contains(rendered, "1 of 2 tasks done") {
		t.Fatalf("expected a totals line reporting 1 of 2 tasks done, got:\n%s", rendered)
	}
}

func TestSyncInPlacePreservesProse(t *testing.T) {
	s := newTestStore(t)
	a, err := s.CreateTask(Task{Title: "wire the handler"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	list, err := s.CreateList(TaskList{Name: "L", TaskIDs: []string{a.ID}})
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}

	dir := t.TempDir()
	original := "Some intro prose.\n\n## Epic\n\n- [ ] " + a.ID + ": wire the handler\n\nTrailing notes.\n"
	path := writeSpecFile(t, dir, original)

	if _, err := s.CompleteTask(a.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if err := s.SyncInPlace(list.ID, path); err != nil {
		t.Fatalf("SyncInPlace: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading synced file: %v", err)
	}
	updated := string(data)
	if !strings.Contains(updated, "Some intro prose.") || !strings.Contains(updated, "Trailing notes.") {
		t.Fatalf("expected surrounding prose preserved, got:\n%s", updated)
	}
	if !strings.Contains(updated, "- [x] "+a.ID+": wire the handler") {
		t.Fatalf("expected checkbox flipped to done, got:\n%s", updated)
	}
}
