package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
	"github.com/aliciakaith/flowgrid/pkg/core/flow"
)

// httpAction HTTP动作节点
// 传输层错误（网络/超时）使步骤失败；协议层非2xx作为数据返回，
// 下游节点可以据此分支——这是传输错误与协议错误的刻意不对称
func (e *Engine) httpAction(ctx context.Context, cfg flow.HTTPActionConfig) (map[string]any, error) {
	if cfg.URL == "" {
		return nil, apperr.E(apperr.Validation, "missing_url", "http节点缺少url")
	}

	if err := e.guard.CheckURL(cfg.URL); err != nil {
		return nil, err
	}

	var body io.Reader
	if len(cfg.Body) > 0 {
		body = bytes.NewReader(cfg.Body)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, body)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid_request", "构建请求失败", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if len(cfg.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.actionClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, apperr.Wrap(apperr.Timeout, "action_timeout", "http动作超时", err)
		}
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "action_unreachable", "http动作网络错误", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Wrap(apperr.UpstreamUnavailable, "action_read_failed", "读取响应失败", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 协议错误作为数据：步骤成功，载荷呈错误形状
		return map[string]any{
			"status":  resp.StatusCode,
			"error":   string(respBody),
			"headers": headers,
		}, nil
	}

	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		parsed = string(respBody)
	}

	return map[string]any{
		"status":  resp.StatusCode,
		"body":    parsed,
		"headers": headers,
	}, nil
}
