package engine

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/aliciakaith/flowgrid/pkg/core/flow"
)

// applyTransform transform节点：passthrough / merge / extract
func applyTransform(cfg flow.TransformConfig, inputs map[string]any) (map[string]any, error) {
	switch cfg.Transformation {
	case "merge":
		return mergeInputs(inputs), nil

	case "extract":
		return extractFields(cfg.Fields, inputs)

	case "passthrough", "":
		return inputs, nil
	}

	// 未知transformation按passthrough处理（默认语义）
	return inputs, nil
}

// mergeInputs 将各前驱的map输出平铺合并；非map输出按前驱ID保留
func mergeInputs(inputs map[string]any) map[string]any {
	merged := make(map[string]any)
	for predID, out := range inputs {
		if m, ok := out.(map[string]any); ok {
			for k, v := range m {
				merged[k] = v
			}
			continue
		}
		merged[predID] = out
	}
	return merged
}

// extractFields 按gjson路径从输入中抽取字段
func extractFields(fields []string, inputs map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("序列化输入失败: %w", err)
	}

	result := make(map[string]any, len(fields))
	for _, field := range fields {
		if field == "" {
			continue
		}
		if v := gjson.GetBytes(raw, field); v.Exists() {
			result[field] = v.Value()
		}
	}
	return result, nil
}
