package flow

import (
	"github.com/aliciakaith/flowgrid/pkg/core/dag"
)

// checkAcyclic 无环校验，委托给dag包
func checkAcyclic(g *Graph) error {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	edges := make([]dag.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, dag.Edge{From: e.From, To: e.To})
	}
	return dag.Validate(ids, edges)
}

// PlanEdges 转换为dag包的边类型（执行计划构建用）
func (g *Graph) PlanEdges() []dag.Edge {
	edges := make([]dag.Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, dag.Edge{From: e.From, To: e.To})
	}
	return edges
}

// NodeIDs 按声明顺序返回全部节点ID
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
