package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// MTNCredentials MTN MoMo凭证（Vault解密产物，仅在调用期间持有）
type MTNCredentials struct {
	BaseURL         string `json:"base_url"`
	SubscriptionKey string `json:"subscription_key"`
	APIUser         string `json:"api_user"`
	APIKey          string `json:"api_key"`
	TargetEnv       string `json:"target_env"`
}

// Configured 凭证是否齐备
func (c MTNCredentials) Configured() bool {
	return c.SubscriptionKey != "" && c.APIUser != "" && c.APIKey != ""
}

// MTNClient MTN MoMo收款客户端（对外导出）
// 能力：token交换、request-to-pay、状态查询、余额、账户持有人校验
type MTNClient struct {
	registry *Registry
	creds    MTNCredentials
}

// Execute 按操作名分发
func (c *MTNClient) Execute(ctx context.Context, orgID, op string, params map[string]any) (map[string]any, error) {
	switch op {
	case "token":
		return c.Token(ctx, orgID)
	case "requestToPay":
		return c.RequestToPay(ctx, orgID, params)
	case "requestToPayStatus", "status":
		refID, _ := params["reference_id"].(string)
		return c.Status(ctx, orgID, refID)
	case "balance":
		return c.Balance(ctx, orgID)
	case "accountHolder":
		msisdn, _ := params["msisdn"].(string)
		return c.AccountHolder(ctx, orgID, msisdn)
	}
	return nil, apperr.E(apperr.Validation, "unknown_operation", fmt.Sprintf("未知的MTN操作: %s", op))
}

// baseURL 默认指向沙箱环境
func (c *MTNClient) baseURL() string {
	if c.creds.BaseURL != "" {
		return c.creds.BaseURL
	}
	return "https://sandbox.momodeveloper.mtn.com"
}

func (c *MTNClient) targetEnv() string {
	if c.creds.TargetEnv != "" {
		return c.creds.TargetEnv
	}
	return "sandbox"
}

// Token 交换访问令牌
func (c *MTNClient) Token(ctx context.Context, orgID string) (map[string]any, error) {
	if !c.creds.Configured() {
		return nil, apperr.E(apperr.Validation, "mtn_not_configured", "MTN凭证未配置")
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL()+"/collection/token/", nil)
	if err != nil {
		return nil, err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.creds.APIUser + ":" + c.creds.APIKey))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.creds.SubscriptionKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(status, body), nil
}

// RequestToPay 发起收款请求
// 成功时MTN返回202且无响应体，reference_id 用于后续状态查询
func (c *MTNClient) RequestToPay(ctx context.Context, orgID string, params map[string]any) (map[string]any, error) {
	token, err := c.accessToken(ctx, orgID)
	if err != nil {
		return nil, err
	}

	referenceID := uuid.NewString()
	payload := map[string]any{
		"amount":     fmt.Sprintf("%v", params["amount"]),
		"currency":   stringOr(params, "currency", "EUR"),
		"externalId": stringOr(params, "external_id", referenceID),
		"payer": map[string]any{
			"partyIdType": "MSISDN",
			"partyId":     stringOr(params, "msisdn", ""),
		},
		"payerMessage": stringOr(params, "payer_message", ""),
		"payeeNote":    stringOr(params, "payee_note", ""),
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL()+"/collection/v1_0/requesttopay", payload)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Reference-Id", referenceID)
	req.Header.Set("X-Target-Environment", c.targetEnv())
	req.Header.Set("Ocp-Apim-Subscription-Key", c.creds.SubscriptionKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}

	result := decodeBody(status, body)
	result["reference_id"] = referenceID
	result["accepted"] = status >= 200 && status < 300
	return result, nil
}

// Status 查询收款状态
func (c *MTNClient) Status(ctx context.Context, orgID, referenceID string) (map[string]any, error) {
	if referenceID == "" {
		return nil, apperr.E(apperr.Validation, "missing_reference_id", "缺少reference_id")
	}

	token, err := c.accessToken(ctx, orgID)
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(ctx, http.MethodGet, c.baseURL()+"/collection/v1_0/requesttopay/"+referenceID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", c.targetEnv())
	req.Header.Set("Ocp-Apim-Subscription-Key", c.creds.SubscriptionKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(status, body), nil
}

// Balance 查询账户余额
func (c *MTNClient) Balance(ctx context.Context, orgID string) (map[string]any, error) {
	token, err := c.accessToken(ctx, orgID)
	if err != nil {
		return nil, err
	}

	req, err := newJSONRequest(ctx, http.MethodGet, c.baseURL()+"/collection/v1_0/account/balance", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", c.targetEnv())
	req.Header.Set("Ocp-Apim-Subscription-Key", c.creds.SubscriptionKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(status, body), nil
}

// AccountHolder 校验账户持有人是否有效
func (c *MTNClient) AccountHolder(ctx context.Context, orgID, msisdn string) (map[string]any, error) {
	if msisdn == "" {
		return nil, apperr.E(apperr.Validation, "missing_msisdn", "缺少msisdn")
	}

	token, err := c.accessToken(ctx, orgID)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/collection/v1_0/accountholder/msisdn/%s/active", c.baseURL(), msisdn)
	req, err := newJSONRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Target-Environment", c.targetEnv())
	req.Header.Set("Ocp-Apim-Subscription-Key", c.creds.SubscriptionKey)

	status, body, err := c.registry.doCall(ctx, orgID, req)
	if err != nil {
		return nil, err
	}
	return decodeBody(status, body), nil
}

// accessToken 取一次访问令牌（每次调用换取，不在内存长期持有）
func (c *MTNClient) accessToken(ctx context.Context, orgID string) (string, error) {
	result, err := c.Token(ctx, orgID)
	if err != nil {
		return "", err
	}
	raw, err := jsonMarshal(result)
	if err != nil {
		return "", err
	}
	token := gjson.GetBytes(raw, "access_token").String()
	if token == "" {
		return "", apperr.E(apperr.UpstreamUnavailable, "mtn_token_failed", "MTN令牌交换失败")
	}
	return token, nil
}

// stringOr 从参数map取字符串，缺失时返回默认值
func stringOr(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}
