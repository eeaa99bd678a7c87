package flow

import (
	"encoding/json"
	"strings"
)

// NodeConfig 节点配置变体接口（对外导出）
// 载入时按 (type, kind) 解码；未知组合得到 UnrecognizedConfig 哨兵
type NodeConfig interface {
	configVariant()
}

// PassConfig start/trigger/end节点：无配置
type PassConfig struct{}

// ConditionConfig condition节点配置
type ConditionConfig struct {
	Condition string `json:"condition"`
}

// TransformConfig transform节点配置
// Transformation ∈ {passthrough, merge, extract}；extract时Fields为gjson路径
type TransformConfig struct {
	Transformation string   `json:"transformation"`
	Fields         []string `json:"fields,omitempty"`
}

// HTTPActionConfig http动作节点配置
type HTTPActionConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// EmailActionConfig email动作节点配置
type EmailActionConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ProviderActionConfig 第三方provider动作配置
// Operation 为点号操作名（如 mtn.requestToPay）或 database/salesforce 等kind
type ProviderActionConfig struct {
	Operation string         `json:"-"`
	Params    map[string]any `json:"-"`
}

// UnrecognizedConfig 未知 (type, kind) 的哨兵；执行该节点时步骤直接失败
type UnrecognizedConfig struct {
	Type string
	Kind string
}

func (PassConfig) configVariant()           {}
func (ConditionConfig) configVariant()      {}
func (TransformConfig) configVariant()      {}
func (HTTPActionConfig) configVariant()     {}
func (EmailActionConfig) configVariant()    {}
func (ProviderActionConfig) configVariant() {}
func (UnrecognizedConfig) configVariant()   {}

// DecodeNodeConfig 按 (type, kind) 解码节点配置（对外导出）
// 解码保证全函数：畸形JSON退化为零值配置，不在载入阶段报错
func DecodeNodeConfig(nodeType, kind string, raw json.RawMessage) NodeConfig {
	switch nodeType {
	case NodeTypeStart, NodeTypeTrigger, NodeTypeEnd:
		return PassConfig{}

	case NodeTypeCondition:
		var c ConditionConfig
		_ = json.Unmarshal(raw, &c)
		return c

	case NodeTypeTransform:
		var c TransformConfig
		_ = json.Unmarshal(raw, &c)
		if c.Transformation == "" {
			c.Transformation = "passthrough"
		}
		return c
	}

	// 点号provider类型（mtn.requestToPay、fW.fWVerifyPayment…）视为provider动作
	if strings.Contains(nodeType, ".") {
		params := make(map[string]any)
		_ = json.Unmarshal(raw, &params)
		return ProviderActionConfig{Operation: nodeType, Params: params}
	}

	switch kind {
	case KindHTTP:
		var c HTTPActionConfig
		_ = json.Unmarshal(raw, &c)
		if c.Method == "" {
			c.Method = "GET"
		}
		return c

	case KindEmail:
		var c EmailActionConfig
		_ = json.Unmarshal(raw, &c)
		return c

	case KindDatabase, KindSalesforce:
		params := make(map[string]any)
		_ = json.Unmarshal(raw, &params)
		return ProviderActionConfig{Operation: kind, Params: params}
	}

	return UnrecognizedConfig{Type: nodeType, Kind: kind}
}
