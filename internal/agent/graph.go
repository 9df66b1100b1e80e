package agent

import "context"

// End is the terminal routing value for a node that should stop the
// run without visiting Fallback.
const End = "END"

// NodeFunc mutates and returns the state; it never returns an error
// (spec §4.8 cross-cutting contract).
type NodeFunc func(ctx context.Context, state *AgentState) *AgentState

// RouteFunc decides the next node name, or End, given the state after
// its node ran.
type RouteFunc func(state *AgentState) string

// Graph is a small directed-graph executor: a start node, a node
// table, and a routing table. Unlike a generic FSM library, routing
// here is a plain function per node rather than declarative edges,
// which is sufficient for the fixed seven-node topology in spec §4.8.
type Graph struct {
	start  string
	nodes  map[string]NodeFunc
	routes map[string]RouteFunc
}

// NewGraph builds an empty graph starting at start.
func NewGraph(start string) *Graph {
	return &Graph{start: start, nodes: map[string]NodeFunc{}, routes: map[string]RouteFunc{}}
}

// AddNode registers a node and its routing function. route may be nil
// for a node that always proceeds to End.
func (g *Graph) AddNode(name string, fn NodeFunc, route RouteFunc) {
	g.nodes[name] = fn
	if route == nil {
		route = func(*AgentState) string { return End }
	}
	g.routes[name] = route
}

// Run executes the graph from its start node until a route returns
// End, mutating and returning state. Every route is short-circuited
// to "Fallback" first if state.Aborted is set, covering fatal errors
// uniformly across all nodes (spec §4.8).
func (g *Graph) Run(ctx context.Context, state *AgentState) *AgentState {
	current := g.start
	visited := map[string]bool{}

	for {
		if visited[current] && current != "Fallback" {
			// Defensive: a cycle would violate the linear topology
			// spec §4.8 requires; abort rather than loop forever.
			state.abort("graph cycle detected")
			current = "Fallback"
		}
		visited[current] = true

		fn, ok := g.nodes[current]
		if !ok {
			state.abort("unknown node " + current)
			return state
		}
		state = fn(ctx, state)

		if state.Aborted && current != "Fallback" {
			current = "Fallback"
			continue
		}

		next := g.routes[current](state)
		if next == End {
			if state.FinalResponse == "" {
				state.FinalResponse = state.GeneratedResponse
			}
			return state
		}
		current = next
	}
}
