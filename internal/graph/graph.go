// Package graph executes a static registry of named nodes and edges over a
// shared conversation state, generalizing the teacher's agent.Runtime
// request/response loop (one LLM call plus a tool loop, internal/agent/runtime.go)
// from "one call plus a tool loop" to "traverse a declared node DAG" with
// checkpointing and human-in-the-loop interrupts at every node boundary.
package graph

import (
	"context"
	"fmt"

	"github.com/weaver-ai/weaver/internal/checkpoint"
	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/internal/werrors"
	"github.com/weaver-ai/weaver/pkg/models"
)

// END is the terminal sentinel a conditional edge or Patch.Next may return.
const END = "END"

// START names the graph's single entry node.
const START = "START"

// Patch is what a node handler returns: a partial update merged into the
// shared state after the node runs. Messages and Artifacts are merged
// append-only; every other field is a scalar overwrite when non-nil/non-zero.
type Patch struct {
	Messages  []models.Message
	Artifacts []models.Artifact
	Mode      *string
	Research  *models.DeepResearchState

	// Metadata keys are merged individually (set, never cleared here).
	Metadata map[string]any

	// Interrupt, when non-nil, suspends the graph at this node boundary.
	// Next is ignored when Interrupt is set.
	Interrupt *models.Interrupt

	// Next overrides the edge-decided successor for this node. Nodes with
	// a conditional edge registered set this; nodes with a fixed edge may
	// leave it nil and let the registered edge decide.
	Next string
}

// Handler is a node's behavior: given the current state, produce a Patch.
// Handlers may fan out internally (parallel search, parallel tool calls)
// but must join before returning.
type Handler func(ctx context.Context, state *models.ConversationState) (Patch, error)

// EdgeFunc picks a conditional successor from the post-patch state. A fixed
// (unconditional) edge is just an EdgeFunc that ignores state.
type EdgeFunc func(state *models.ConversationState) string

// Graph is a static node/edge registry. Build one with New, register nodes
// and edges, then Run turns against it. A Graph is safe to reuse across
// concurrent Run calls once fully registered; registration itself is not
// concurrency-safe and should finish before the first Run.
type Graph struct {
	nodes map[string]Handler
	edges map[string]EdgeFunc

	checkpointer checkpoint.Store
	bus          *eventbus.Bus
}

// Config wires a Graph's side effects.
type Config struct {
	// Checkpointer persists state at every node boundary when non-nil.
	// A nil Checkpointer disables checkpointing entirely.
	Checkpointer checkpoint.Store

	// Bus receives node.entered/node.exited/interrupt.raised/run.finished/
	// run.error/run.cancelled events. A nil Bus disables event emission.
	Bus *eventbus.Bus
}

// New builds an empty Graph ready for node/edge registration.
func New(cfg Config) *Graph {
	return &Graph{
		nodes:        make(map[string]Handler),
		edges:        make(map[string]EdgeFunc),
		checkpointer: cfg.Checkpointer,
		bus:          cfg.Bus,
	}
}

// AddNode registers a node's handler under name.
func (g *Graph) AddNode(name string, handler Handler) {
	g.nodes[name] = handler
}

// AddEdge registers an unconditional edge: from always proceeds to.
func (g *Graph) AddEdge(from, to string) {
	g.edges[from] = func(*models.ConversationState) string { return to }
}

// AddConditionalEdge registers a conditional edge: from proceeds to
// whatever pick returns (a node name or END).
func (g *Graph) AddConditionalEdge(from string, pick EdgeFunc) {
	g.edges[from] = pick
}

// Entry names the node START unconditionally proceeds to.
func (g *Graph) Entry(name string) {
	g.AddEdge(START, name)
}

// Run drives state through the graph starting at START (or at
// state.PendingInterrupt's node, for a resumed run — callers resuming a
// suspended turn should clear PendingInterrupt and call RunFrom instead).
// Run returns the final state once the graph reaches END, suspends on an
// interrupt, or fails.
func (g *Graph) Run(ctx context.Context, state *models.ConversationState) (*models.ConversationState, error) {
	return g.RunFrom(ctx, state, START)
}

// RunFrom drives state through the graph starting at the named node,
// which is how a resumed turn re-enters the node that raised its interrupt.
func (g *Graph) RunFrom(ctx context.Context, state *models.ConversationState, start string) (*models.ConversationState, error) {
	current := start
	if current == START {
		next, ok := g.edges[START]
		if !ok {
			return state, werrors.Internalf("graph: no entry edge registered")
		}
		current = next(state)
	}

	for {
		if err := ctx.Err(); err != nil {
			g.publish(state.ThreadID, models.EventRunCancelled, nil)
			return state, werrors.Cancelledf("graph: %v", err)
		}

		if current == END {
			g.publish(state.ThreadID, models.EventRunFinished, nil)
			return state, nil
		}

		handler, ok := g.nodes[current]
		if !ok {
			return state, werrors.Internalf("graph: no node registered for %q", current)
		}

		g.publish(state.ThreadID, models.EventNodeEntered, &models.StatusEventPayload{Node: current})

		patch, err := handler(ctx, state)
		if err != nil {
			g.publish(state.ThreadID, models.EventRunError, &models.StatusEventPayload{Node: current, Message: err.Error()})
			return state, fmt.Errorf("graph: node %q: %w", current, err)
		}

		applyPatch(state, patch)
		g.publish(state.ThreadID, models.EventNodeExited, &models.StatusEventPayload{Node: current})

		if patch.Interrupt != nil {
			if err := g.checkpoint(ctx, state, current); err != nil {
				return state, err
			}
			g.publish(state.ThreadID, models.EventInterruptRaised, &models.StatusEventPayload{Node: current})
			return state, nil
		}

		if err := g.checkpoint(ctx, state, current); err != nil {
			return state, err
		}

		if patch.Next != "" {
			current = patch.Next
			continue
		}
		pick, ok := g.edges[current]
		if !ok {
			return state, werrors.Internalf("graph: node %q has no outgoing edge", current)
		}
		current = pick(state)
	}
}

// Resume clears state.PendingInterrupt, merges the caller-supplied approval
// payload into it, and re-enters the node that raised the interrupt.
func Resume(ctx context.Context, g *Graph, state *models.ConversationState, approvalPayload map[string]any) (*models.ConversationState, error) {
	if state.PendingInterrupt == nil {
		return state, werrors.Validationf("graph: resume called on a state with no pending interrupt")
	}
	node := state.PendingInterrupt.NodeName
	if state.Metadata == nil {
		state.Metadata = make(map[string]any)
	}
	for k, v := range approvalPayload {
		state.Metadata[k] = v
	}
	state.PendingInterrupt = nil
	g.publish(state.ThreadID, models.EventInterruptResumed, &models.StatusEventPayload{Node: node})
	return g.RunFrom(ctx, state, node)
}

func applyPatch(state *models.ConversationState, patch Patch) {
	state.Messages = append(state.Messages, patch.Messages...)
	state.Artifacts = append(state.Artifacts, patch.Artifacts...)
	if patch.Mode != nil {
		state.Mode = *patch.Mode
	}
	if patch.Research != nil {
		state.Research = patch.Research
	}
	if patch.Interrupt != nil {
		state.PendingInterrupt = patch.Interrupt
	}
	if len(patch.Metadata) > 0 {
		if state.Metadata == nil {
			state.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			state.Metadata[k] = v
		}
	}
}

func (g *Graph) checkpoint(ctx context.Context, state *models.ConversationState, node string) error {
	if g.checkpointer == nil {
		return nil
	}
	latest, err := g.checkpointer.Latest(ctx, state.ThreadID)
	if err != nil && err != checkpoint.ErrNotFound {
		return werrors.Internalf("graph: checkpoint lookup: %v", err)
	}
	snapshot, err := EncodeState(state)
	if err != nil {
		return werrors.Internalf("graph: encode state: %v", err)
	}
	cp := &models.Checkpoint{
		ThreadID: state.ThreadID,
		Seq:      checkpoint.NextSeq(latest),
		NodeName: node,
		Snapshot: snapshot,
	}
	if err := g.checkpointer.Save(ctx, cp); err != nil {
		return werrors.Internalf("graph: checkpoint save: %v", err)
	}
	return nil
}

func (g *Graph) publish(threadID string, eventType models.EventType, status *models.StatusEventPayload) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(models.Event{ThreadID: threadID, Type: eventType, Status: status})
}
