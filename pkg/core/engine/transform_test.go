package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aliciakaith/flowgrid/pkg/core/flow"
)

func TestApplyTransform_Passthrough(t *testing.T) {
	inputs := map[string]any{"prev": map[string]any{"a": 1}}
	out, err := applyTransform(flow.TransformConfig{Transformation: "passthrough"}, inputs)
	require.NoError(t, err)
	assert.Equal(t, inputs, out)

	// 未知transformation按passthrough处理
	out, err = applyTransform(flow.TransformConfig{Transformation: "reverse"}, inputs)
	require.NoError(t, err)
	assert.Equal(t, inputs, out)
}

func TestApplyTransform_Merge(t *testing.T) {
	inputs := map[string]any{
		"a":   map[string]any{"x": 1},
		"b":   map[string]any{"y": 2},
		"raw": "scalar",
	}
	out, err := applyTransform(flow.TransformConfig{Transformation: "merge"}, inputs)
	require.NoError(t, err)
	assert.Equal(t, 1, out["x"])
	assert.Equal(t, 2, out["y"])
	assert.Equal(t, "scalar", out["raw"], "非map输出按前驱ID保留")
}

func TestApplyTransform_Extract(t *testing.T) {
	inputs := map[string]any{
		"http1": map[string]any{
			"body": map[string]any{"user": map[string]any{"id": "u-1", "name": "Ada"}},
		},
	}
	out, err := applyTransform(flow.TransformConfig{
		Transformation: "extract",
		Fields:         []string{"http1.body.user.id", "http1.body.user.missing"},
	}, inputs)
	require.NoError(t, err)
	assert.Equal(t, "u-1", out["http1.body.user.id"])
	_, exists := out["http1.body.user.missing"]
	assert.False(t, exists, "不存在的路径不应出现在结果中")
}
