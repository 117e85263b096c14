package pdg

import (
	"container/list"
	"sort"
	"strings"
)

// Dependencies holds the edges touching one statement. Control dependence is
// containment: a statement depends on the statement that encloses it.
type Dependencies struct {
	ControlIn  []int  // Enclosing statement
	ControlOut []int  // Directly contained statements
	DataIn     []Edge // Def-use edges into the statement
	DataOut    []Edge // Def-use edges out of the statement
}

type adjacency struct {
	dataIn, dataOut      map[int][]Edge
	parentOf, childrenOf map[int][]int
}

func buildAdjacency(g *Graph) adjacency {
	adj := adjacency{
		dataIn:     make(map[int][]Edge),
		dataOut:    make(map[int][]Edge),
		parentOf:   make(map[int][]int),
		childrenOf: make(map[int][]int),
	}
	for _, e := range g.Edges {
		adj.dataOut[e.SrcSID] = append(adj.dataOut[e.SrcSID], e)
		adj.dataIn[e.DstSID] = append(adj.dataIn[e.DstSID], e)
	}
	for _, pc := range g.ASTEdges.ParentChild {
		adj.childrenOf[pc[0]] = append(adj.childrenOf[pc[0]], pc[1])
		adj.parentOf[pc[1]] = append(adj.parentOf[pc[1]], pc[0])
	}
	return adj
}

// EdgeKey returns the variable key of e, recovering it from the debug
// companion of a decoded graph.
func EdgeKey(e Edge) string {
	if e.Key != "" {
		return e.Key
	}
	if e.Debug != nil {
		if i := strings.LastIndexByte(e.Debug.VarKey, '@'); i >= 0 {
			return e.Debug.VarKey[:i]
		}
	}
	return ""
}

func (g *Graph) hasNode(sid int) bool {
	for _, n := range g.Nodes {
		if n.SID == sid {
			return true
		}
	}
	return false
}

// BackwardSlice returns the sorted sids that may affect statement sid. When
// variable is non-empty only data edges carrying that key are followed.
func BackwardSlice(g *Graph, sid int, variable string) []int {
	if g == nil || !g.hasNode(sid) {
		return nil
	}
	adj := buildAdjacency(g)
	return traverse(sid, func(cur int) []int {
		next := append([]int(nil), adj.parentOf[cur]...)
		for _, e := range adj.dataIn[cur] {
			if variable == "" || EdgeKey(e) == variable {
				next = append(next, e.SrcSID)
			}
		}
		return next
	})
}

// ForwardSlice returns the sorted sids that statement sid may affect.
func ForwardSlice(g *Graph, sid int, variable string) []int {
	if g == nil || !g.hasNode(sid) {
		return nil
	}
	adj := buildAdjacency(g)
	return traverse(sid, func(cur int) []int {
		next := append([]int(nil), adj.childrenOf[cur]...)
		for _, e := range adj.dataOut[cur] {
			if variable == "" || EdgeKey(e) == variable {
				next = append(next, e.DstSID)
			}
		}
		return next
	})
}

// traverse runs a breadth-first walk from start and returns every visited
// sid in ascending order.
func traverse(start int, next func(int) []int) []int {
	visited := map[int]bool{start: true}
	queue := list.New()
	queue.PushBack(start)

	var out []int
	for queue.Len() > 0 {
		cur := queue.Remove(queue.Front()).(int)
		out = append(out, cur)
		for _, n := range next(cur) {
			if visited[n] {
				continue
			}
			visited[n] = true
			queue.PushBack(n)
		}
	}
	sort.Ints(out)
	return out
}

// GetDependencies returns the control and data edges touching sid.
func GetDependencies(g *Graph, sid int) Dependencies {
	if g == nil || !g.hasNode(sid) {
		return Dependencies{}
	}
	adj := buildAdjacency(g)
	deps := Dependencies{
		ControlIn:  append([]int(nil), adj.parentOf[sid]...),
		ControlOut: append([]int(nil), adj.childrenOf[sid]...),
		DataIn:     append([]Edge(nil), adj.dataIn[sid]...),
		DataOut:    append([]Edge(nil), adj.dataOut[sid]...),
	}
	sort.Ints(deps.ControlOut)
	sortEdges(deps.DataIn)
	sortEdges(deps.DataOut)
	return deps
}

func sortEdges(edges []Edge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].SrcSID != edges[j].SrcSID {
			return edges[i].SrcSID < edges[j].SrcSID
		}
		return edges[i].DstSID < edges[j].DstSID
	})
}

// VariableKeys returns the distinct keys carried by data edges.
func VariableKeys(g *Graph) []string {
	if g == nil {
		return nil
	}
	set := make(map[string]bool)
	for _, e := range g.Edges {
		if k := EdgeKey(e); k != "" {
			set[k] = true
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
