// Package registry maps node-type tags to their executors.
package registry

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/relaykit/journey/pkg/protocol"
)

// Registry is the node-executor dispatch table. Registering a node type that
// already exists overwrites the previous registration (last write wins) and
// is reported as a warning, never an error, so executors can be reconfigured
// at runtime.
type Registry struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	executors map[string]protocol.NodeExecutor
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		executors: make(map[string]protocol.NodeExecutor),
	}
}

// Register adds an executor under its node type.
func (r *Registry) Register(executor protocol.NodeExecutor) {
	nodeType := executor.NodeType()

	r.mu.Lock()
	_, exists := r.executors[nodeType]
	r.executors[nodeType] = executor
	r.mu.Unlock()

	if exists {
		r.logger.Warn("Overwriting registered node executor", "node_type", nodeType)
	}
}

// Get returns the executor for a node type.
func (r *Registry) Get(nodeType string) (protocol.NodeExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executor, ok := r.executors[nodeType]

	return executor, ok
}

// IsRegistered reports whether a node type has an executor.
func (r *Registry) IsRegistered(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.executors[nodeType]

	return ok
}

// NodeTypes returns the registered type tags.
func (r *Registry) NodeTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	return types
}

// CheckDependencies verifies that every executor's declared dependencies
// are themselves registered.
func (r *Registry) CheckDependencies() []error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems []error

	for nodeType, executor := range r.executors {
		for _, dep := range executor.Dependencies() {
			if _, ok := r.executors[dep]; !ok {
				problems = append(problems, fmt.Errorf("executor %q depends on unregistered node type %q", nodeType, dep))
			}
		}
	}

	return problems
}
