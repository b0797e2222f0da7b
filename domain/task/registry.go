package task

import (
	"sort"
	"sync"
)

// Registry manages task definitions and provides lookup functionality.
type Registry struct {
	tasks map[string]*Task
	mu    sync.RWMutex
}

// NewRegistry creates a new empty task registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]*Task),
	}
}

// Register adds a task to the registry.
// If a task with the same name exists, it will be replaced.
func (r *Registry) Register(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.Name] = t
}

// Get retrieves a task by name.
// Returns nil if not found.
func (r *Registry) Get(name string) *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[name]
}

// List returns all registered task names, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tasks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
