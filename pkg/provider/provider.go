// Package provider 第三方服务的窄能力适配器
// 每个provider按操作名暴露能力；所有对外调用统一6秒超时并记录TxEvent采样
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// CallTimeout 对外调用的连接/读取超时
const CallTimeout = 6 * time.Second

// TxRecorder 调用采样记录能力（由storage.TxEventRepo实现）
type TxRecorder interface {
	Insert(ctx context.Context, orgID string, success bool, latencyMs int64) error
}

// Registry provider注册表（对外导出）
// 按操作名分发：mtn.* → MTN客户端，fW.*/flutterwave.* → Flutterwave客户端
type Registry struct {
	MTN         *MTNClient
	Flutterwave *FlutterwaveClient

	txEvents TxRecorder
	client   *http.Client
}

// NewRegistry 创建注册表；凭证来自配置（Vault解密后仅在调用期间持有）
func NewRegistry(tx TxRecorder, mtnCreds MTNCredentials, flwCreds FlutterwaveCredentials) *Registry {
	client := &http.Client{Timeout: CallTimeout}
	r := &Registry{
		txEvents: tx,
		client:   client,
	}
	r.MTN = &MTNClient{registry: r, creds: mtnCreds}
	r.Flutterwave = &FlutterwaveClient{registry: r, creds: flwCreds}
	return r
}

// Execute 按操作名分发调用（对外导出，引擎的动作节点入口）
func (r *Registry) Execute(ctx context.Context, orgID, operation string, params map[string]any) (map[string]any, error) {
	switch {
	case strings.HasPrefix(operation, "mtn."):
		return r.MTN.Execute(ctx, orgID, strings.TrimPrefix(operation, "mtn."), params)

	case strings.HasPrefix(operation, "fW."), strings.HasPrefix(operation, "flutterwave."):
		op := strings.TrimPrefix(strings.TrimPrefix(operation, "fW."), "flutterwave.")
		return r.Flutterwave.Execute(ctx, orgID, op, params)

	case operation == "database", operation == "salesforce":
		// 内部适配器尚未接入真实后端：返回规范化的排队结果
		log.Printf("⚠️ provider %s 以直通模式执行", operation)
		return map[string]any{"queued": true, "provider": operation, "params": params}, nil
	}

	return nil, apperr.E(apperr.Validation, "unknown_operation", fmt.Sprintf("未知的provider操作: %s", operation))
}

// doCall 执行一次对外HTTP调用并记录采样
// 传输层错误（网络/超时）返回错误；协议层非2xx作为数据返回
func (r *Registry) doCall(ctx context.Context, orgID string, req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := r.client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		r.recordTx(ctx, orgID, false, latency)
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return 0, nil, apperr.Wrap(apperr.Timeout, "provider_timeout", "provider调用超时", err)
		}
		return 0, nil, apperr.Wrap(apperr.UpstreamUnavailable, "provider_unreachable", "provider调用失败", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		r.recordTx(ctx, orgID, false, latency)
		return resp.StatusCode, nil, apperr.Wrap(apperr.UpstreamUnavailable, "provider_read_failed", "读取provider响应失败", readErr)
	}

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	r.recordTx(ctx, orgID, success, latency)
	return resp.StatusCode, body, nil
}

// recordTx 记录采样；失败只记日志，不影响调用结果
func (r *Registry) recordTx(ctx context.Context, orgID string, success bool, latencyMs int64) {
	if r.txEvents == nil || orgID == "" {
		return
	}
	if err := r.txEvents.Insert(ctx, orgID, success, latencyMs); err != nil {
		log.Printf("⚠️ 记录TxEvent失败: %v", err)
	}
}

// newJSONRequest 构建JSON请求体
func newJSONRequest(ctx context.Context, method, url string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// jsonMarshal 序列化辅助（gjson路径读取用）
func jsonMarshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("序列化失败: %w", err)
	}
	return data, nil
}

// decodeBody 将响应体解为map；非JSON时退化为raw字段
func decodeBody(status int, body []byte) map[string]any {
	result := make(map[string]any)
	if err := json.Unmarshal(body, &result); err != nil {
		result = map[string]any{"raw": string(body)}
	}
	result["status"] = status
	return result
}
