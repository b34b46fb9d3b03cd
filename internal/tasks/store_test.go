package tasks

import (
	"path/filepath"
	"testing"

	"github.com/orbitctl/agentplane/internal/wire"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	created, err := s.CreateTask(Task{Title: "write docs"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	got, err := s.GetTask(created.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Title != "write docs" || got.Status != StatusOpen {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestDependsOnBlocksDual(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "a"})
	b, err := s.CreateTask(Task{Title: "b", DependsOn: []string{a.ID}})
	if err != nil {
		t.Fatalf("CreateTask b: %v", err)
	}

	reloadedA, _ := s.GetTask(a.ID)
	if !hasString(reloadedA.Blocks, b.ID) {
		t.Fatalf("expected a.blocks to contain b, got %v", reloadedA.Blocks)
	}
}

func TestCircularDependencyRejected(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "a"})
	b, err := s.CreateTask(Task{Title: "b", DependsOn: []string{a.ID}})
	if err != nil {
		t.Fatalf("CreateTask b: %v", err)
	}
	_, err = s.UpdateTask(a.ID, func(t *Task) {
		t.DependsOn = []string{b.ID}
	})
	if err == nil {
		t.Fatal("expected a circular dependency error")
	}
	if wire.KindOf(err) != wire.ErrCircularDependency {
		t.Fatalf("expected ErrCircularDependency, got %v", err)
	}
}

func TestCompleteTaskUnblocksDependent(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "a"})
	b, err := s.CreateTask(Task{Title: "b", Status: StatusBlocked, DependsOn: []string{a.ID}})
	if err != nil {
		t.Fatalf("CreateTask b: %v", err)
	}

	if _, err := s.CompleteTask(a.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	reloadedB, err := s.GetTask(b.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if reloadedB.Status != StatusOpen {
		t.Fatalf("expected b to become open once a is done, got %s", reloadedB.Status)
	}
}

func TestCompleteTaskDoesNotUnblockIfOtherDepPending(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "a"})
	c, _ := s.CreateTask(Task{Title: "c"})
	b, err := s.CreateTask(Task{Title: "b", Status: StatusBlocked, DependsOn: []string{a.ID, c.ID}})
	if err != nil {
		t.Fatalf("CreateTask b: %v", err)
	}

	if _, err := s.CompleteTask(a.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	reloadedB, _ := s.GetTask(b.ID)
	if reloadedB.Status != StatusBlocked {
		t.Fatalf("expected b to remain blocked while c is pending, got %s", reloadedB.Status)
	}
}

func TestDeleteTaskRewritesNeighbors(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "a"})
	b, err := s.CreateTask(Task{Title: "b", DependsOn: []string{a.ID}})
	if err != nil {
		t.Fatalf("CreateTask b: %v", err)
	}
	list, err := s.CreateList(TaskList{Name: "l", TaskIDs: []string{a.ID, b.ID}})
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}

	if err := s.DeleteTask(a.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}

	reloadedB, err := s.GetTask(b.ID)
	if err != nil {
		t.Fatalf("GetTask b: %v", err)
	}
	if hasString(reloadedB.DependsOn, a.ID) {
		t.Fatalf("expected b.dependsOn to no longer reference deleted a, got %v", reloadedB.DependsOn)
	}

	reloadedList, err := s.GetList(list.ID)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if hasString(reloadedList.TaskIDs, a.ID) {
		t.Fatalf("expected list to no longer reference deleted a, got %v", reloadedList.TaskIDs)
	}
}

func TestListAutoCompletesWhenAllTasksDone(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask(Task{Title: "a"})
	list, err := s.CreateList(TaskList{Name: "l", TaskIDs: []string{a.ID}})
	if err != nil {
		t.Fatalf("CreateList: %v", err)
	}
	if _, err := s.CompleteTask(a.ID); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if _, err := s.UpdateList(list.ID, func(*TaskList) {}); err != nil {
		t.Fatalf("UpdateList: %v", err)
	}
	reloaded, err := s.GetList(list.ID)
	if err != nil {
		t.Fatalf("GetList: %v", err)
	}
	if reloaded.Status != ListCompleted {
		t.Fatalf("expected list auto-completed, got %s", reloaded.Status)
	}
}

func TestAcquireAndReleaseLock(t *testing.T) {
	base := t.TempDir()
	lock, err := acquireLock(base, "x", LockTimeout)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	if err := releaseLock(lock); err != nil {
		t.Fatalf("releaseLock: %v", err)
	}
	// Re-acquiring after release must succeed immediately.
	lock2, err := acquireLock(base, "x", LockTimeout)
	if err != nil {
		t.Fatalf("re-acquireLock: %v", err)
	}
	releaseLock(lock2)
}
