// Package nodes implements the five node handlers a built graph runs:
// route_node, direct_node, web_node, agent_node, and deep_node. Build
// wires them into a *graph.Graph with the conditional edge route_node's
// decision drives.
package nodes

import (
	weaverctx "github.com/weaver-ai/weaver/internal/context"
	"github.com/weaver-ai/weaver/internal/eventbus"
	"github.com/weaver-ai/weaver/internal/graph"
	"github.com/weaver-ai/weaver/internal/llm"
	"github.com/weaver-ai/weaver/internal/research"
	"github.com/weaver-ai/weaver/internal/router"
	"github.com/weaver-ai/weaver/internal/tools"
	"github.com/weaver-ai/weaver/pkg/models"
)

const (
	RouteNode  = "route_node"
	DirectNode = "direct_node"
	WebNode    = "web_node"
	AgentNode  = "agent_node"
	DeepNode   = "deep_node"
)

// Config wires every node handler's dependencies.
type Config struct {
	Router   *router.Router
	Client   llm.Client
	Model    string
	Registry *tools.Registry
	Executor *tools.Executor
	Research *research.Engine
	Bus      *eventbus.Bus

	// MaxToolIterations caps agent_node's tool loop. Zero picks 10.
	MaxToolIterations int

	// ContextPruning trims stale tool results from agent_node's history
	// before each completion call. Nil disables pruning.
	ContextPruning *weaverctx.ContextPruningSettings

	// CharWindow is the approximate character budget ContextPruning
	// measures against. Zero picks 120000 (~30k tokens at 4 chars/token).
	CharWindow int
}

func (c Config) withDefaults() Config {
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = 10
	}
	if c.CharWindow <= 0 {
		c.CharWindow = 120000
	}
	return c
}

// emit adapts the bus to tools.EventSink's fire-and-forget signature.
func (c Config) emit(ev models.Event) {
	if c.Bus == nil {
		return
	}
	c.Bus.Publish(ev)
}

// Build registers all five nodes and their edges on g, with route_node as
// the graph's entry point. Callers still own Graph construction (so they
// can supply their own Checkpointer/Bus via graph.Config) and call
// g.Entry(RouteNode) is done here since route_node always goes first.
func Build(g *graph.Graph, cfg Config) {
	cfg = cfg.withDefaults()

	g.Entry(RouteNode)
	g.AddNode(RouteNode, routeNode(cfg))
	g.AddConditionalEdge(RouteNode, routeEdge)

	g.AddNode(DirectNode, directNode(cfg))
	g.AddEdge(DirectNode, graph.END)

	g.AddNode(WebNode, webNode(cfg))
	g.AddEdge(WebNode, graph.END)

	g.AddNode(AgentNode, agentNode(cfg))
	g.AddEdge(AgentNode, graph.END)

	g.AddNode(DeepNode, deepNode(cfg))
	// ultra routes like deep but falls through to agent_node afterward
	// instead of ending the turn, per the router's recorded open
	// question: "ultra" is only reachable via an explicit override, and
	// its distinguishing behavior lives entirely in this edge.
	g.AddConditionalEdge(DeepNode, deepEdge)
}

func routeEdge(state *models.ConversationState) string {
	switch router.Mode(state.Mode) {
	case router.ModeWeb:
		return WebNode
	case router.ModeAgent:
		return AgentNode
	case router.ModeDeep, router.ModeUltra:
		return DeepNode
	default:
		return DirectNode
	}
}

func deepEdge(state *models.ConversationState) string {
	if router.Mode(state.Mode) == router.ModeUltra {
		return AgentNode
	}
	return graph.END
}
