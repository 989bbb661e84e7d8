package platform

import "github.com/morganhein/netshell/nerrors"

// Graph is the directed privilege graph induced by a Definition's parent
// links. Nodes are keyed by stable string name; parent edges are read from
// each level's Parent field, and child adjacency is derived once at
// construction and kept in a single children map.
type Graph struct {
	levels   map[string]*PrivilegeLevel
	children map[string][]string
}

// NewGraph builds a Graph from levels, keyed by name, iterated in order
// for deterministic child-adjacency construction.
func NewGraph(order []string, levels map[string]*PrivilegeLevel) *Graph {
	g := &Graph{
		levels:   levels,
		children: make(map[string][]string),
	}
	for _, name := range order {
		level := levels[name]
		if level.Parent != "" {
			g.children[level.Parent] = append(g.children[level.Parent], name)
		}
	}
	return g
}

// Path returns the unique sequence of level names to traverse from "from"
// to "to", inclusive of both endpoints, walking up to the common ancestor
// then down. An empty path ([from] alone) is returned when from == to.
func (g *Graph) Path(from, to string) ([]string, error) {
	if _, ok := g.levels[from]; !ok {
		return nil, nerrors.New(nerrors.KindUnknownPrivilege, "platform.Graph.Path", "unknown source level "+from)
	}
	if _, ok := g.levels[to]; !ok {
		return nil, nerrors.New(nerrors.KindUnknownPrivilege, "platform.Graph.Path", "unknown target level "+to)
	}
	if from == to {
		return []string{from}, nil
	}

	// BFS over the bidirectional adjacency (parent + derived child edges).
	type frame struct {
		name string
		path []string
	}
	visited := map[string]bool{from: true}
	queue := []frame{{name: from, path: []string{from}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range g.neighbors(cur.name) {
			if visited[next] {
				continue
			}
			nextPath := append(append([]string{}, cur.path...), next)
			if next == to {
				return nextPath, nil
			}
			visited[next] = true
			queue = append(queue, frame{name: next, path: nextPath})
		}
	}

	return nil, nerrors.New(nerrors.KindInvalidPrivilegePath, "platform.Graph.Path", "no path from "+from+" to "+to)
}

func (g *Graph) neighbors(name string) []string {
	var out []string
	if parent := g.levels[name].Parent; parent != "" {
		out = append(out, parent)
	}
	out = append(out, g.children[name]...)
	return out
}

// DetermineFromPrompt returns the name of the first level (in order) whose
// pattern matches prompt, honoring each level's NotContains disambiguation
// list. order should be the Definition's deterministic LevelOrder.
func DetermineFromPrompt(order []string, levels map[string]*PrivilegeLevel, prompt string) (string, error) {
	for _, name := range order {
		if levels[name].Matches(prompt) {
			return name, nil
		}
	}
	return "", nerrors.New(nerrors.KindUnknownPrivilege, "platform.DetermineFromPrompt", "no privilege level matches prompt")
}
