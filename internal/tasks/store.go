package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/orbitctl/agentplane/internal/wire"
)

// index.json holds the id manifest so a fresh process can enumerate
// entities without a directory walk.
type index struct {
	TaskIDs     []string `json:"taskIds"`
	TaskListIDs []string `json:"taskListIds"`
}

// Store is a JSON-file-backed TaskStore: one document per task and per
// task list under baseDir, with a root index.json manifest and a
// per-entity lease lock for multi-writer coordination.
type Store struct {
	baseDir string

	mu    sync.Mutex // guards idx and in-process read/modify/write sequences
	idx   index
}

// LockTimeout is the timeout passed to acquireLock by every Store method
// that mutates a persisted task, and AcquireLock's default. Task-list
// writes (CreateList, UpdateList) take no lease.
const LockTimeout = 5 * time.Second

// Open loads or creates a Store rooted at baseDir.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating task store directory: %w", err)
	}
	s := &Store{baseDir: baseDir}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// AcquireLock takes a cooperative lease on id (a task or task-list id) for
// callers that need to hold exclusive access across more than one Store
// call, per spec §4.9/§6. timeoutMs <= 0 uses LockTimeout.
func (s *Store) AcquireLock(id string, timeoutMs int) (*Lock, error) {
	timeout := LockTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return acquireLock(s.baseDir, id, timeout)
}

// ReleaseLock drops a lease acquired via AcquireLock.
func (s *Store) ReleaseLock(lock *Lock) error {
	return releaseLock(lock)
}

func (s *Store) indexPath() string { return filepath.Join(s.baseDir, "index.json") }
func (s *Store) taskPath(id string) string {
	return filepath.Join(s.baseDir, "tasks", id+".json")
}
func (s *Store) listPath(id string) string {
	return filepath.Join(s.baseDir, "lists", id+".json")
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		s.idx = index{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	return json.Unmarshal(data, &s.idx)
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(), data, 0o644)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readTask(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func readList(path string) (*TaskList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l TaskList
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetTask re-reads a task's current persisted state: callers that read
// before mutating re-validate with this short-lived read rather than
// acting on a cached copy.
func (s *Store) GetTask(id string) (*Task, error) {
	t, err := readTask(s.taskPath(id))
	if os.IsNotExist(err) {
		return nil, wire.NewError(wire.ErrAgentNotFound, "task %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetList re-reads a task list's current persisted state.
func (s *Store) GetList(id string) (*TaskList, error) {
	l, err := readList(s.listPath(id))
	if os.IsNotExist(err) {
		return nil, wire.NewError(wire.ErrAgentNotFound, "task list %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CreateTask persists a new task, assigning an id if spec.ID is empty.
func (s *Store) CreateTask(spec Task) (*Task, error) {
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	lock, err := acquireLock(s.baseDir, spec.ID, LockTimeout)
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock)

	if _, err := s.GetTask(spec.ID); err == nil {
		return nil, wire.NewError(wire.ErrAgentAlreadyExists, "task %s already exists", spec.ID)
	}
	now := time.Now()
	spec.CreatedAt = now
	spec.UpdatedAt = now
	if spec.Status == "" {
		spec.Status = StatusOpen
	}
	if spec.Priority == "" {
		spec.Priority = PriorityMedium
	}
	if err := writeJSON(s.taskPath(spec.ID), spec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.idx.TaskIDs = addString(s.idx.TaskIDs, spec.ID)
	err = s.saveIndex()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := s.wireDependencies(spec.ID, nil, spec.DependsOn); err != nil {
		return nil, err
	}
	return &spec, nil
}

// wireDependencies reconciles a task's dependsOn edges against oldDeps,
// adding/removing the task from each affected neighbor's blocks set so
// dependsOn/blocks stay exact duals. Detects a cycle in the new edge set
// before committing anything.
func (s *Store) wireDependencies(taskID string, oldDeps, newDeps []string) error {
	if err := s.checkAcyclic(taskID, newDeps); err != nil {
		return err
	}
	added, removed := diff(oldDeps, newDeps)
	for _, dep := range removed {
		if err := s.removeFromBlocks(dep, taskID); err != nil {
			return err
		}
	}
	for _, dep := range added {
		if err := s.addToBlocks(dep, taskID); err != nil {
			return err
		}
	}
	return nil
}

func diff(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, o := range old {
		oldSet[o] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, n := range new {
		newSet[n] = true
		if !oldSet[n] {
			added = append(added, n)
		}
	}
	for _, o := range old {
		if !newSet[o] {
			removed = append(removed, o)
		}
	}
	return added, removed
}

func (s *Store) addToBlocks(depID, taskID string) error {
	lock, err := acquireLock(s.baseDir, depID, LockTimeout)
	if err != nil {
		return err
	}
	defer releaseLock(lock)
	dep, err := s.GetTask(depID)
	if err != nil {
		return nil // dependency id doesn't resolve to a task; nothing to wire.
	}
	dep.Blocks = addString(dep.Blocks, taskID)
	dep.UpdatedAt = time.Now()
	return writeJSON(s.taskPath(depID), dep)
}

func (s *Store) removeFromBlocks(depID, taskID string) error {
	lock, err := acquireLock(s.baseDir, depID, LockTimeout)
	if err != nil {
		return err
	}
	defer releaseLock(lock)
	dep, err := s.GetTask(depID)
	if err != nil {
		return nil
	}
	dep.Blocks = removeString(dep.Blocks, taskID)
	dep.UpdatedAt = time.Now()
	return writeJSON(s.taskPath(depID), dep)
}

// checkAcyclic walks the dependsOn graph starting from each candidate
// dependency, failing if it ever reaches back to taskID.
func (s *Store) checkAcyclic(taskID string, deps []string) error {
	visited := make(map[string]bool)
	var visit func(id string) error
	visit = func(id string) error {
		if id == taskID {
			return wire.NewError(wire.ErrCircularDependency, "dependency on %s would create a cycle through %s", id, taskID)
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		t, err := s.GetTask(id)
		if err != nil {
			return nil
		}
		for _, d := range t.DependsOn {
			if err := visit(d); err != nil {
				return err
			}
		}
		return nil
	}
	for _, d := range deps {
		if err := visit(d); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTask applies mutate to the current persisted task under lock,
// re-wiring dependsOn/blocks if mutate changed DependsOn, and persists
// the result.
func (s *Store) UpdateTask(id string, mutate func(*Task)) (*Task, error) {
	lock, err := acquireLock(s.baseDir, id, LockTimeout)
	if err != nil {
		return nil, err
	}
	defer releaseLock(lock)

	t, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	oldDeps := append([]string{}, t.DependsOn...)
	mutate(t)
	t.UpdatedAt = time.Now()
	if err := s.wireDependenciesUnlocked(id, oldDeps, t.DependsOn); err != nil {
		return nil, err
	}
	if err := writeJSON(s.taskPath(id), t); err != nil {
		return nil, err
	}
	return t, nil
}

// wireDependenciesUnlocked is wireDependencies without re-acquiring the
// caller's own lock (UpdateTask already holds it for id).
func (s *Store) wireDependenciesUnlocked(taskID string, oldDeps, newDeps []string) error {
	return s.wireDependencies(taskID, oldDeps, newDeps)
}

// CompleteTask marks a task done, stamps completedAt, then unblocks
// every dependent whose own dependsOn set is now entirely done.
func (s *Store) CompleteTask(id string) (*Task, error) {
	t, err := s.UpdateTask(id, func(t *Task) {
		now := time.Now()
		t.Status = StatusDone
		t.CompletedAt = &now
	})
	if err != nil {
		return nil, err
	}
	for _, dependentID := range t.Blocks {
		if err := s.tryUnblock(dependentID); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (s *Store) tryUnblock(id string) error {
	_, err := s.UpdateTask(id, func(t *Task) {
		if t.Status != StatusBlocked {
			return
		}
		if s.allDone(t.DependsOn) {
			t.Status = StatusOpen
		}
	})
	if _, ok := err.(*wire.Error); ok {
		return nil // dependent id no longer resolves; nothing to unblock.
	}
	return err
}

func (s *Store) allDone(ids []string) bool {
	for _, id := range ids {
		t, err := s.GetTask(id)
		if err != nil || t.Status != StatusDone {
			return false
		}
	}
	return true
}

// DeleteTask removes a task from every list that references it and
// rewrites the symmetric dependsOn/blocks of its neighbors.
func (s *Store) DeleteTask(id string) error {
	lock, err := acquireLock(s.baseDir, id, LockTimeout)
	if err != nil {
		return err
	}
	t, err := s.GetTask(id)
	if err != nil {
		releaseLock(lock)
		return err
	}
	for _, dep := range t.DependsOn {
		_ = s.removeFromBlocks(dep, id)
	}
	if err := os.Remove(s.taskPath(id)); err != nil && !os.IsNotExist(err) {
		releaseLock(lock)
		return err
	}
	releaseLock(lock)
	// Dependents are rewritten only after id's lease is released: updating a
	// dependent re-wires blocks, which takes the lease on id itself.
	for _, dependent := range t.Blocks {
		_ = s.removeDependency(dependent, id)
	}

	s.mu.Lock()
	s.idx.TaskIDs = removeString(s.idx.TaskIDs, id)
	err = s.saveIndex()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	lists, lerr := s.ListLists()
	if lerr != nil {
		return lerr
	}
	for _, l := range lists {
		if hasString(l.TaskIDs, id) {
			if _, err := s.UpdateList(l.ID, func(l *TaskList) {
				l.TaskIDs = removeString(l.TaskIDs, id)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) removeDependency(taskID, depID string) error {
	_, err := s.UpdateTask(taskID, func(t *Task) {
		t.DependsOn = removeString(t.DependsOn, depID)
	})
	return err
}

// ListTasks returns every persisted task.
func (s *Store) ListTasks() ([]Task, error) {
	s.mu.Lock()
	ids := append([]string{}, s.idx.TaskIDs...)
	s.mu.Unlock()

	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTask(id)
		if err != nil {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

// CreateList persists a new task list.
func (s *Store) CreateList(spec TaskList) (*TaskList, error) {
	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	now := time.Now()
	spec.CreatedAt = now
	spec.UpdatedAt = now
	if spec.Status == "" {
		spec.Status = ListActive
	}
	if err := writeJSON(s.listPath(spec.ID), spec); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.idx.TaskListIDs = addString(s.idx.TaskListIDs, spec.ID)
	err := s.saveIndex()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// UpdateList applies mutate to the current persisted list, refreshing
// updatedAt and auto-completing it when every referenced task is done.
func (s *Store) UpdateList(id string, mutate func(*TaskList)) (*TaskList, error) {
	l, err := s.GetList(id)
	if err != nil {
		return nil, err
	}
	mutate(l)
	l.UpdatedAt = time.Now()
	if l.Status == ListActive && len(l.TaskIDs) > 0 && s.allDone(l.TaskIDs) {
		l.Status = ListCompleted
	}
	if err := writeJSON(s.listPath(id), l); err != nil {
		return nil, err
	}
	return l, nil
}

// ListLists returns every persisted task list.
func (s *Store) ListLists() ([]TaskList, error) {
	s.mu.Lock()
	ids := append([]string{}, s.idx.TaskListIDs...)
	s.mu.Unlock()

	out := make([]TaskList, 0, len(ids))
	for _, id := range ids {
		l, err := s.GetList(id)
		if err != nil {
			continue
		}
		out = append(out, *l)
	}
	return out, nil
}
