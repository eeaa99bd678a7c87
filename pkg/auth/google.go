package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// GoogleIssuer Google的OIDC发现端点
const GoogleIssuer = "https://accounts.google.com"

// GoogleClaims Google ID token中提取的身份信息
type GoogleClaims struct {
	Subject    string `json:"sub"`
	Email      string `json:"email"`
	Verified   bool   `json:"email_verified"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// GoogleProvider Google OIDC登录（对外导出）
type GoogleProvider struct {
	oauth2Conf *oauth2.Config
	verifier   *oidc.IDTokenVerifier
}

// NewGoogleProvider 通过OIDC发现创建provider
func NewGoogleProvider(ctx context.Context, clientID, clientSecret, redirectURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("创建OIDC provider失败: %w", err)
	}

	return &GoogleProvider{
		oauth2Conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// AuthCodeURL 生成授权跳转URL
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth2Conf.AuthCodeURL(state)
}

// Exchange 用授权码换取并校验ID token，返回身份claims
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleClaims, error) {
	token, err := p.oauth2Conf.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "oauth_exchange_failed", "授权码交换失败", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, apperr.E(apperr.Unauthenticated, "missing_id_token", "响应缺少id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid_id_token", "ID token校验失败", err)
	}

	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("提取claims失败: %w", err)
	}
	if claims.Email == "" || !claims.Verified {
		return nil, apperr.E(apperr.Unauthenticated, "email_unverified", "Google账号邮箱未验证")
	}

	return &claims, nil
}
