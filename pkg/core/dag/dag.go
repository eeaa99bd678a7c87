// Package dag 提供图的无环校验与执行计划构建
// 校验在版本写入时执行；计划在执行启动时构建
package dag

import (
	"fmt"

	godag "github.com/begmaroman/go-dag"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// Edge 有向边（from -> to）
type Edge struct {
	From string
	To   string
}

// vertex go-dag节点包装（实现Identifiable接口）
// 字段需导出：go-dag 按导出字段计算节点哈希
type vertex struct {
	NodeID string
}

// ID 实现 go-dag 的 Identifiable 接口
func (v *vertex) ID() string {
	return v.NodeID
}

// Validate 校验图无环（对外导出）
// 先用三色DFS一次性检测循环，再交给 go-dag 构建做二次确认
// （go-dag 的 AddEdge 内部也做循环检查，双保险对大图仍然够快）
func Validate(nodeIDs []string, edges []Edge) error {
	// 1. 构建邻接表
	graph := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		graph[id] = make([]string, 0)
	}
	for _, e := range edges {
		graph[e.From] = append(graph[e.From], e.To)
	}

	// 2. 三色DFS检测循环：0=白（未访问），1=灰（访问中），2=黑（已访问）
	if hasCycle, path := detectCycleDFS(graph); hasCycle {
		return apperr.E(apperr.InvalidGraph, "graph_cycle", fmt.Sprintf("检测到循环依赖 (cycle): %v", path))
	}

	// 3. go-dag 构建确认
	d := godag.NewDAG[*vertex]()
	for _, id := range nodeIDs {
		if _, err := d.AddVertex(&vertex{NodeID: id}); err != nil {
			return apperr.Wrap(apperr.InvalidGraph, "graph_build_failed", fmt.Sprintf("添加节点失败: %s", id), err)
		}
	}
	for _, e := range edges {
		if err := d.AddEdge(e.From, e.To); err != nil {
			return apperr.Wrap(apperr.InvalidGraph, "graph_cycle", fmt.Sprintf("添加边失败: %s -> %s", e.From, e.To), err)
		}
	}

	return nil
}

// detectCycleDFS 三色标记法循环检测
// graph: 邻接表，key是节点ID，value是子节点ID列表
func detectCycleDFS(graph map[string][]string) (bool, []string) {
	color := make(map[string]int)
	parent := make(map[string]string)
	cyclePath := make([]string, 0)

	for nodeID := range graph {
		color[nodeID] = 0
	}

	var dfs func(nodeID string) bool
	dfs = func(nodeID string) bool {
		color[nodeID] = 1

		for _, childID := range graph[nodeID] {
			if color[childID] == 0 {
				parent[childID] = nodeID
				if dfs(childID) {
					return true
				}
			} else if color[childID] == 1 {
				// 灰色节点，存在后向边，构建循环路径
				cyclePath = append(cyclePath, childID)
				cur := nodeID
				for cur != childID && cur != "" {
					cyclePath = append(cyclePath, cur)
					cur = parent[cur]
				}
				cyclePath = append(cyclePath, childID)
				return true
			}
		}

		color[nodeID] = 2
		return false
	}

	for nodeID := range graph {
		if color[nodeID] == 0 {
			if dfs(nodeID) {
				return true, cyclePath
			}
		}
	}

	return false, nil
}

// BuildPlan 构建顺序执行计划（对外导出）
// Kahn算法，FIFO队列；入度同为0时按节点声明顺序入队
// 计划长度 ≠ 节点数时说明存在环或悬空节点
func BuildPlan(nodeIDs []string, edges []Edge) ([]string, error) {
	inDegree := make(map[string]int, len(nodeIDs))
	successors := make(map[string][]string, len(nodeIDs))
	for _, id := range nodeIDs {
		inDegree[id] = 0
	}
	for _, e := range edges {
		successors[e.From] = append(successors[e.From], e.To)
		inDegree[e.To]++
	}

	// 按声明顺序初始化队列，保证平局时的确定性
	queue := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	plan := make([]string, 0, len(nodeIDs))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		plan = append(plan, current)

		for _, succ := range successors[current] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}

	if len(plan) != len(nodeIDs) {
		return nil, apperr.E(apperr.InvalidGraph, "graph_cycle", "cycle or disconnected node")
	}

	return plan, nil
}
