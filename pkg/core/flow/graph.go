// Package flow 定义流程图的数据结构与载入时校验
// FlowVersion.graph 的JSON在此解码；节点配置按 (type, kind) 解为带标签的变体
package flow

import (
	"encoding/json"
	"fmt"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// 引擎识别的节点类型
const (
	NodeTypeStart     = "start"
	NodeTypeEnd       = "end"
	NodeTypeTrigger   = "trigger"
	NodeTypeCondition = "condition"
	NodeTypeTransform = "transform"
	NodeTypeAction    = "action"
)

// 动作节点kind
const (
	KindHTTP       = "http"
	KindEmail      = "email"
	KindDatabase   = "database"
	KindSalesforce = "salesforce"
)

// Node 图节点
type Node struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Kind   string          `json:"kind,omitempty"`
	Label  string          `json:"label,omitempty"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Config json.RawMessage `json:"config,omitempty"`

	// decoded 为载入时解出的配置变体，不参与序列化
	decoded NodeConfig
}

// DecodedConfig 返回载入时解出的配置变体
func (n *Node) DecodedConfig() NodeConfig {
	return n.decoded
}

// Edge 有向边
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph 流程图：节点集合加有向边，必须构成DAG
type Graph struct {
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// ParseGraph 解码并校验图JSON（对外导出）
// 版本写入前必须通过此校验；节点配置在此一次性解为变体
func ParseGraph(raw []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid_graph_json", "图JSON解析失败", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate 校验节点ID唯一、边端点存在、无环（对外导出）
func (g *Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return apperr.E(apperr.Validation, "empty_graph", "图中没有节点")
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return apperr.E(apperr.Validation, "node_missing_id", "节点缺少id")
		}
		if _, dup := seen[n.ID]; dup {
			return apperr.E(apperr.Validation, "duplicate_node_id", fmt.Sprintf("节点id重复: %s", n.ID))
		}
		seen[n.ID] = struct{}{}

		// 解码配置变体；未知 (type, kind) 解为unrecognized哨兵，执行时报错而不是静默执行
		n.decoded = DecodeNodeConfig(n.Type, n.Kind, n.Config)
	}

	for _, e := range g.Edges {
		if _, ok := seen[e.From]; !ok {
			return apperr.E(apperr.Validation, "edge_endpoint_missing", fmt.Sprintf("边的起点不存在: %s", e.From))
		}
		if _, ok := seen[e.To]; !ok {
			return apperr.E(apperr.Validation, "edge_endpoint_missing", fmt.Sprintf("边的终点不存在: %s", e.To))
		}
	}

	if err := checkAcyclic(g); err != nil {
		return err
	}

	return nil
}

// Node 按ID查找节点
func (g *Graph) Node(id string) (*Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return nil, false
}

// Predecessors 返回指向nodeID的前驱节点ID（按边声明顺序）
func (g *Graph) Predecessors(nodeID string) []string {
	preds := make([]string, 0)
	for _, e := range g.Edges {
		if e.To == nodeID {
			preds = append(preds, e.From)
		}
	}
	return preds
}
