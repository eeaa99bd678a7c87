package provider

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// FlutterwaveCredentials Flutterwave凭证（Vault解密产物，仅在调用期间持有）
type FlutterwaveCredentials struct {
	BaseURL       string `json:"base_url"`
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
}

// Configured 凭证是否齐备
func (c FlutterwaveCredentials) Configured() bool {
	return c.SecretKey != ""
}

// FlutterwaveClient Flutterwave支付客户端（对外导出）
// 能力：托管支付、按引用校验、webhook签名校验
type FlutterwaveClient struct {
	registry *Registry
	creds    FlutterwaveCredentials
}

// Execute 按操作名分发
func (c *FlutterwaveClient) Execute(ctx context.Context, orgID, op string, params map[string]any) (map[string]any, error) {
	switch op {
	case "fWHostedPayment", "hostedPayment":
		return c.HostedPayment(ctx, orgID, params)
	case "fWVerifyPayment", "verifyPayment":
		txRef, _ := params["tx_ref"].(string)
		return c.VerifyByReference(ctx, orgID, txRef)
	}
	return nil, apperr.E(apperr.Validation, "unknown_operation", fmt.Sprintf("未知的Flutterwave操作: %s", op))
}

func (c *FlutterwaveClient) baseURL() string {
	if c.creds.BaseURL != "" {
		return c.creds.BaseURL
	}
	return "https://api.flutterwave.com"
}

// HostedPayment 创建托管支付链接
func (c *FlutterwaveClient) HostedPayment(ctx context.Context, orgID string, params map[string]any) (map[string]any, error) {
	if !c.creds.Configured() {
		return nil, apperr.E(apperr.Validation, "flutterwave_not_configured", "Flutterwave凭证未配置")
	}

	payload := map[string]any{
		"tx_ref":       stringOr(params, "tx_ref", ""),
		"amount":       fmt.Sprintf("%v", params["amount"]),
		"currency":     stringOr(params, "currency", "NGN"),
		"redirect_url": stringOr(params, "redirect_url", ""),
		"customer": map[string]any{
			"email": stringOr(params, "email", ""),
		},
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL()+"/v3/payments", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.SecretKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(status, body), nil
}

// VerifyByReference 按交易引用校验支付
func (c *FlutterwaveClient) VerifyByReference(ctx context.Context, orgID, txRef string) (map[string]any, error) {
	if !c.creds.Configured() {
		return nil, apperr.E(apperr.Validation, "flutterwave_not_configured", "Flutterwave凭证未配置")
	}
	if txRef == "" {
		return nil, apperr.E(apperr.Validation, "missing_tx_ref", "缺少tx_ref")
	}

	endpoint := fmt.Sprintf("%s/v3/transactions/verify_by_reference?tx_ref=%s", c.baseURL(), url.QueryEscape(txRef))
	req, err := newJSONRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.SecretKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(status, body), nil
}

// VerifyWebhookSignature 校验webhook签名（verif-hash头，常量时间比较）
func (c *FlutterwaveClient) VerifyWebhookSignature(signature string) bool {
	if c.creds.WebhookSecret == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(c.creds.WebhookSecret)) == 1
}
