// Package auth 会话令牌、口令散列与Google OIDC登录
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aliciakaith/flowgrid/pkg/apperr"
)

// 会话有效期
const (
	SessionTTLDefault  = 24 * time.Hour      // 常规登录
	SessionTTLRemember = 30 * 24 * time.Hour // remember=true
	SessionTTLOAuth    = 7 * 24 * time.Hour  // OAuth登录
)

// Principal 已验证的调用方身份
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	OrgID  string `json:"org_id"`
}

// sessionClaims JWT载荷
type sessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	OrgID  string `json:"org_id"`
	jwt.RegisteredClaims
}

// SessionKind 会话种类，决定有效期
type SessionKind int

const (
	SessionDefault SessionKind = iota
	SessionRemember
	SessionOAuth
)

// TTL 返回会话种类对应的有效期
func (k SessionKind) TTL() time.Duration {
	switch k {
	case SessionRemember:
		return SessionTTLRemember
	case SessionOAuth:
		return SessionTTLOAuth
	default:
		return SessionTTLDefault
	}
}

// IssueSession 签发会话令牌（对外导出）
func IssueSession(secret []byte, p Principal, kind SessionKind) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		UserID: p.UserID,
		Email:  p.Email,
		OrgID:  p.OrgID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(kind.TTL())),
			Subject:   p.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("签发会话令牌失败: %w", err)
	}
	return signed, nil
}

// ParseSession 解析并校验会话令牌（对外导出）
// 签名或有效期校验失败一律返回Unauthenticated
func ParseSession(secret []byte, raw string) (*Principal, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid_session", "会话无效或已过期", err)
	}

	if claims.UserID == "" || claims.OrgID == "" {
		return nil, apperr.E(apperr.Unauthenticated, "invalid_session", "会话载荷不完整")
	}

	return &Principal{
		UserID: claims.UserID,
		Email:  claims.Email,
		OrgID:  claims.OrgID,
	}, nil
}
