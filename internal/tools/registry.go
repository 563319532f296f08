// Package tools implements the invocable-tool substrate: a frozen registry
// of descriptors and handlers, a staging area for tools discovered later by
// the MCP bridge, and an executor that runs calls with timeout, retry, and
// event emission.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/weaver-ai/weaver/pkg/models"
)

// Handler executes a tool call and returns the raw result payload. Handlers
// receive already schema-validated input.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

type registration struct {
	descriptor models.ToolDescriptor
	handler    Handler
	schema     *jsonschemav5.Schema
}

// Registry holds the set of tools a run may call. It starts open for
// registration; once Freeze is called, Register rejects further additions
// and List/Get read a lock-free snapshot instead of the live map, so a
// frozen registry can be shared across concurrent runs without locking.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*registration
	frozen   bool
	snapshot atomic.Pointer[[]models.ToolDescriptor]
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds a tool to the registry. It fails if the registry is frozen
// or a tool with the same name is already registered.
func (r *Registry) Register(descriptor models.ToolDescriptor, handler Handler) error {
	if descriptor.Name == "" {
		return fmt.Errorf("tools: descriptor name must not be empty")
	}
	if handler == nil {
		return fmt.Errorf("tools: %s: handler must not be nil", descriptor.Name)
	}

	schema, err := compileSchema(descriptor.Name, descriptor.InputSchema)
	if err != nil {
		return fmt.Errorf("tools: %s: %w", descriptor.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("tools: registry is frozen, cannot register %q", descriptor.Name)
	}
	if _, exists := r.entries[descriptor.Name]; exists {
		return fmt.Errorf("tools: %q is already registered", descriptor.Name)
	}
	if descriptor.Source == "" {
		descriptor.Source = "builtin"
	}
	r.entries[descriptor.Name] = &registration{descriptor: descriptor, handler: handler, schema: schema}
	return nil
}

// Freeze snapshots the current descriptor set and prevents further
// registration. Calling it more than once just refreshes the snapshot.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
	r.publishSnapshotLocked()
}

func (r *Registry) publishSnapshotLocked() {
	descs := make([]models.ToolDescriptor, 0, len(r.entries))
	for _, reg := range r.entries {
		descs = append(descs, reg.descriptor)
	}
	r.snapshot.Store(&descs)
}

// Get returns the handler and descriptor for a tool name.
func (r *Registry) Get(name string) (Handler, models.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	if !ok {
		return nil, models.ToolDescriptor{}, false
	}
	return reg.handler, reg.descriptor, true
}

// List returns descriptors matching filter, or all descriptors if filter is
// nil. Once the registry is frozen, List reads the published snapshot
// without taking a lock.
func (r *Registry) List(filter func(models.ToolDescriptor) bool) []models.ToolDescriptor {
	var source []models.ToolDescriptor
	if snap := r.snapshot.Load(); snap != nil {
		source = *snap
	} else {
		r.mu.RLock()
		source = make([]models.ToolDescriptor, 0, len(r.entries))
		for _, reg := range r.entries {
			source = append(source, reg.descriptor)
		}
		r.mu.RUnlock()
	}

	if filter == nil {
		return source
	}
	result := make([]models.ToolDescriptor, 0, len(source))
	for _, d := range source {
		if filter(d) {
			result = append(result, d)
		}
	}
	return result
}

// ValidateArgs validates raw JSON arguments against a tool's input schema.
func (r *Registry) ValidateArgs(name string, input json.RawMessage) error {
	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("tools: unknown tool %q", name)
	}
	return validateArgs(reg.schema, input)
}

// StagingRegistry accumulates tool descriptors discovered out-of-band (the
// MCP bridge enumerating a server's tools) without touching the live
// Registry until the whole batch is ready. SwapIn then merges the staged
// entries into the target registry and republishes its snapshot in one
// atomic step, so in-flight List/Get callers never observe a partial batch.
type StagingRegistry struct {
	mu      sync.Mutex
	pending map[string]*registration
}

// NewStagingRegistry returns an empty staging area.
func NewStagingRegistry() *StagingRegistry {
	return &StagingRegistry{pending: make(map[string]*registration)}
}

// Stage records a descriptor/handler pair to be merged on the next SwapIn.
// Staging the same name twice replaces the earlier entry.
func (s *StagingRegistry) Stage(descriptor models.ToolDescriptor, handler Handler) error {
	if descriptor.Name == "" {
		return fmt.Errorf("tools: staged descriptor name must not be empty")
	}
	schema, err := compileSchema(descriptor.Name, descriptor.InputSchema)
	if err != nil {
		return fmt.Errorf("tools: stage %s: %w", descriptor.Name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[descriptor.Name] = &registration{descriptor: descriptor, handler: handler, schema: schema}
	return nil
}

// SwapIn merges all staged entries into target and republishes its
// snapshot, overwriting any existing tool of the same name (so an MCP
// server re-announcing its tool list replaces stale descriptors rather
// than erroring like Register does). target need not have been frozen
// already; SwapIn freezes it as part of the swap.
func (s *StagingRegistry) SwapIn(target *Registry) int {
	s.mu.Lock()
	staged := s.pending
	s.pending = make(map[string]*registration)
	s.mu.Unlock()

	target.mu.Lock()
	defer target.mu.Unlock()
	for name, reg := range staged {
		target.entries[name] = reg
	}
	target.frozen = true
	target.publishSnapshotLocked()
	return len(staged)
}

// Discard drops all currently staged entries without touching the target
// registry.
func (s *StagingRegistry) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]*registration)
}
