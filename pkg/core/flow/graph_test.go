package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

func TestParseGraph_Valid(t *testing.T) {
	raw := []byte(`{
		"nodes": [
			{"id": "start", "type": "start"},
			{"id": "call", "type": "action", "kind": "http", "config": {"url": "https://example.test", "method": "POST"}},
			{"id": "end", "type": "end"}
		],
		"edges": [
			{"from": "start", "to": "call"},
			{"from": "call", "to": "end"}
		]
	}`)

	g, err := ParseGraph(raw)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)

	node, ok := g.Node("call")
	require.True(t, ok)
	cfg, ok := node.DecodedConfig().(HTTPActionConfig)
	require.True(t, ok, "http节点应解码为HTTPActionConfig")
	assert.Equal(t, "https://example.test", cfg.URL)
	assert.Equal(t, "POST", cfg.Method)
}

func TestParseGraph_Cycle(t *testing.T) {
	raw := []byte(`{
		"nodes": [{"id": "a", "type": "start"}, {"id": "b", "type": "end"}],
		"edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}]
	}`)

	_, err := ParseGraph(raw)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidGraph, apperr.KindOf(err))
}

func TestParseGraph_DanglingEdge(t *testing.T) {
	raw := []byte(`{
		"nodes": [{"id": "a", "type": "start"}],
		"edges": [{"from": "a", "to": "ghost"}]
	}`)

	_, err := ParseGraph(raw)
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestParseGraph_DuplicateNodeID(t *testing.T) {
	raw := []byte(`{
		"nodes": [{"id": "a", "type": "start"}, {"id": "a", "type": "end"}],
		"edges": []
	}`)

	_, err := ParseGraph(raw)
	require.Error(t, err)
}

func TestDecodeNodeConfig_Variants(t *testing.T) {
	// 点号provider类型
	cfg := DecodeNodeConfig("mtn.requestToPay", "", []byte(`{"amount": 100}`))
	pc, ok := cfg.(ProviderActionConfig)
	require.True(t, ok)
	assert.Equal(t, "mtn.requestToPay", pc.Operation)
	assert.Equal(t, float64(100), pc.Params["amount"])

	// transform默认passthrough
	tc, ok := DecodeNodeConfig(NodeTypeTransform, "", nil).(TransformConfig)
	require.True(t, ok)
	assert.Equal(t, "passthrough", tc.Transformation)

	// http默认GET
	hc, ok := DecodeNodeConfig(NodeTypeAction, KindHTTP, []byte(`{"url": "https://x.test"}`)).(HTTPActionConfig)
	require.True(t, ok)
	assert.Equal(t, "GET", hc.Method)

	// 未知组合得到哨兵
	_, ok = DecodeNodeConfig("mystery", "wat", nil).(UnrecognizedConfig)
	assert.True(t, ok, "未知(type,kind)应解码为UnrecognizedConfig")
}

func TestDecodeNodeConfig_MalformedJSON(t *testing.T) {
	// 畸形配置不应panic，退化为零值
	cfg := DecodeNodeConfig(NodeTypeCondition, "", []byte(`{not json`))
	cc, ok := cfg.(ConditionConfig)
	require.True(t, ok)
	assert.Empty(t, cc.Condition)
}

func TestPredecessors(t *testing.T) {
	g := &Graph{
		Nodes: []*Node{{ID: "a", Type: "start"}, {ID: "b", Type: "start"}, {ID: "c", Type: "end"}},
		Edges: []Edge{{From: "a", To: "c"}, {From: "b", To: "c"}},
	}
	require.NoError(t, g.Validate())
	assert.Equal(t, []string{"a", "b"}, g.Predecessors("c"))
	assert.Empty(t, g.Predecessors("a"))
}
